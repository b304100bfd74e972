package api

import (
	"net/http"

	"alcyxob/video-catalog/internal/service"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers every endpoint. Reads and streams are public; writes
// need a bearer token from the user service. Asset routes are only added when
// serveAssets is set.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	catalogService service.CatalogService,
	streamService service.StreamService,
	rankings Rankings,
	serveAssets bool,
) {
	videoHandler := NewVideoHandler(catalogService, streamService)
	leaderboardHandler := NewLeaderboardHandler(rankings)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")

	videos := apiV1.Group("/videos")
	{
		videos.GET("", videoHandler.ListVideos)
		videos.GET("/search", videoHandler.SearchVideos)
		videos.GET("/title/:title", videoHandler.GetVideoByTitle)
		videos.GET("/owner/:ownerId", videoHandler.GetVideosByOwner)

		// --- Leaderboards ---
		videos.GET("/leaderboard", leaderboardHandler.GetTop)
		videos.GET("/leaderboard/:period", leaderboardHandler.GetTop)

		videos.GET("/:id", videoHandler.GetVideo)
		videos.GET("/:id/metadata", videoHandler.GetVideoMetadata)
		videos.GET("/:id/rank", leaderboardHandler.GetRank)

		// --- Streaming ---
		videos.GET("/:id/stream", videoHandler.StreamVideo)
		videos.HEAD("/:id/stream", videoHandler.ProbeVideo)
	}

	protected := apiV1.Group("/videos")
	protected.Use(authMiddleware)
	{
		protected.POST("", videoHandler.CreateVideo)
		protected.PUT("/:id", videoHandler.UpdateVideo)
		protected.DELETE("/title/:title", videoHandler.DeleteVideoByTitle)
		protected.POST("/:id/comments", videoHandler.AddComment)
	}

	if serveAssets {
		assetHandler := NewAssetHandler(streamService)
		apiV1.GET("/assets/*path", assetHandler.StreamAsset)
	}
}
