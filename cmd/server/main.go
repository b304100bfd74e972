package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alcyxob/video-catalog/internal/api"
	"alcyxob/video-catalog/internal/cache"
	"alcyxob/video-catalog/internal/config"
	"alcyxob/video-catalog/internal/events"
	"alcyxob/video-catalog/internal/leaderboard"
	"alcyxob/video-catalog/internal/repository/elastic"
	"alcyxob/video-catalog/internal/repository/mongo"
	"alcyxob/video-catalog/internal/service"
	"alcyxob/video-catalog/internal/storage"
	"alcyxob/video-catalog/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("Starting Video Catalog Server...")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("WARN: Could not read .env file: %v", err)
	}

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}
	if cfg.JWT.Secret == "" {
		log.Fatal("FATAL: jwt.secret must be set")
	}
	log.Println("Configuration loaded.")

	// --- Document Store ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to MongoDB: %v", err)
	}
	defer func() {
		log.Println("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Printf("ERROR: Failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Println("Database connection established.")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureVideoIndexes(ctx, appDB.Collection(cfg.Database.Collection))
		log.Println("Index creation process completed.")
	}()

	// --- Search Index ---
	esClient, err := elastic.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("FATAL: Could not create Elasticsearch client: %v", err)
	}
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := elastic.EnsureIndex(indexCtx, esClient, cfg.Elasticsearch.Index); err != nil {
		log.Printf("WARN: Could not ensure Elasticsearch index %q: %v", cfg.Elasticsearch.Index, err)
	}
	cancelIndex()

	// --- Cache and Leaderboard Store ---
	rdb := cache.NewClient(cfg.Redis)
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		// Reads and streams degrade without Redis, so keep going.
		log.Printf("WARN: Redis at %s is unreachable: %v", cfg.Redis.Address, err)
	}
	cancelPing()

	// --- Media Storage ---
	log.Println("Initializing media storage...")
	var media stream.MediaStore
	switch cfg.Media.Backend {
	case "s3":
		media, err = storage.NewS3Storage(context.Background(), cfg.S3)
	case "local", "":
		media, err = stream.NewLocalStore(cfg.Media.Root, stream.VideoContentType)
	default:
		log.Fatalf("FATAL: Unknown media backend %q", cfg.Media.Backend)
	}
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media storage: %v", err)
	}

	var assets stream.MediaStore
	if cfg.Media.AssetsRoot != "" {
		assets, err = stream.NewLocalStore(cfg.Media.AssetsRoot, stream.FileContentType)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize asset storage: %v", err)
		}
	}

	// --- Initialize Repositories ---
	log.Println("Initializing repositories...")
	videoDocs := mongo.NewMongoVideoRepository(appDB, cfg.Database.Collection)
	videoIndex := elastic.NewVideoIndex(esClient, cfg.Elasticsearch.Index, cfg.Elasticsearch.SearchSize)

	board := leaderboard.NewEngine(rdb, leaderboard.Options{
		KeyPrefix: cfg.Leaderboard.KeyPrefix,
		Retention: &leaderboard.Retention{
			DailyFrom:  cfg.Leaderboard.DailyRetentionFrom,
			DailyTo:    cfg.Leaderboard.DailyRetentionTo,
			WeeklyFrom: cfg.Leaderboard.WeeklyRetentionFrom,
			WeeklyTo:   cfg.Leaderboard.WeeklyRetentionTo,
		},
	})

	// --- Initialize Services ---
	log.Println("Initializing services...")
	catalogService := service.NewCatalogService(videoIndex, videoDocs, cache.NewRedisStore(rdb), service.CacheTTLs{
		Entity:    cfg.Cache.EntityTTL,
		Aggregate: cfg.Cache.AggregateTTL,
	})

	// --- View Events ---
	// With a queue, streams publish and this process also consumes; without
	// one, views are applied in-process.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	recorder := events.NewViewRecorder(catalogService, board)
	var delivery events.Recorder = recorder
	if cfg.Events.QueueURL != "" {
		sqsClient, err := events.NewSQSClient(bgCtx, cfg.Events)
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize SQS client: %v", err)
		}
		delivery = events.NewSQSPublisher(sqsClient, cfg.Events.QueueURL)
		consumer := events.NewSQSConsumer(sqsClient, cfg.Events.QueueURL, cfg.Events.WaitSeconds, recorder)
		go consumer.Run(bgCtx)
	} else {
		log.Println("INFO: events.queue_url not set, recording views in-process")
	}
	viewSink := events.NewAsyncSink(delivery, cfg.Events.Buffer, cfg.Events.Workers)
	defer viewSink.Close()

	streamService := service.NewStreamService(catalogService, media, assets, viewSink)

	// --- Leaderboard Sweep ---
	go runSweeper(bgCtx, board, cfg.Leaderboard.SweepInterval)

	// --- Initialize Gin Engine ---
	router := gin.Default() // Includes Logger and Recovery middleware

	log.Println("Setting up API routes...")
	api.SetupRoutes(router, cfg.JWT.Secret, catalogService, streamService, board, assets != nil)

	// --- Start HTTP Server ---
	// No WriteTimeout: a stream lasts as long as the client keeps reading.
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Server.Address)

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe Error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Printf("ERROR: Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}

// runSweeper deletes expired leaderboard windows once at startup and then on
// every tick. Every instance may sweep; deletes are idempotent.
func runSweeper(ctx context.Context, board *leaderboard.Engine, interval time.Duration) {
	if interval <= 0 {
		log.Println("INFO: Leaderboard sweep disabled")
		return
	}

	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		removed, err := board.SweepExpired(sweepCtx)
		if err != nil {
			log.Printf("WARN: Leaderboard sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("INFO: Leaderboard sweep removed %d expired window(s)", removed)
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
