package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Media         MediaConfig         `mapstructure:"media"`
	S3            S3Config            `mapstructure:"s3"`
	Events        EventsConfig        `mapstructure:"events"`
	Leaderboard   LeaderboardConfig   `mapstructure:"leaderboard"`
	JWT           JWTConfig           `mapstructure:"jwt"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI        string `mapstructure:"uri"`
	Name       string `mapstructure:"name"`
	Collection string `mapstructure:"collection"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Index      string   `mapstructure:"index"`
	SearchSize int      `mapstructure:"search_size"` // Max hits returned by free-text search
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheConfig controls the cache-aside expiry policy.
type CacheConfig struct {
	EntityTTL time.Duration `mapstructure:"entity_ttl"`
	// AggregateTTL bounds list/query entries on top of explicit invalidation. Zero disables it.
	AggregateTTL time.Duration `mapstructure:"aggregate_ttl"`
}

type MediaConfig struct {
	Backend    string `mapstructure:"backend"` // "local" or "s3"
	Root       string `mapstructure:"root"`
	AssetsRoot string `mapstructure:"assets_root"` // Optional; enables generic file streaming
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// EventsConfig selects how "viewed" events travel. An empty QueueURL keeps delivery in-process.
type EventsConfig struct {
	QueueURL    string `mapstructure:"queue_url"`
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"` // Optional, e.g. a local SQS emulator
	Buffer      int    `mapstructure:"buffer"`
	Workers     int    `mapstructure:"workers"`
	WaitSeconds int32  `mapstructure:"wait_seconds"`
}

type LeaderboardConfig struct {
	KeyPrefix           string        `mapstructure:"key_prefix"`
	DailyRetentionFrom  int           `mapstructure:"daily_retention_from"`  // days
	DailyRetentionTo    int           `mapstructure:"daily_retention_to"`    // days, exclusive
	WeeklyRetentionFrom int           `mapstructure:"weekly_retention_from"` // weeks
	WeeklyRetentionTo   int           `mapstructure:"weekly_retention_to"`   // weeks, exclusive
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
}

// JWTConfig defines JWT specific configuration. Tokens are issued by the user service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Use replacer for nested keys e.g., redis.address -> REDIS_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	// A missing config file is fine, env vars and defaults cover everything.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")

	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "video_catalog")
	v.SetDefault("database.collection", "videos")

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index", "videos")
	v.SetDefault("elasticsearch.search_size", 10)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.entity_ttl", "60s")
	v.SetDefault("cache.aggregate_ttl", "5m")

	v.SetDefault("media.backend", "local")
	v.SetDefault("media.root", "uploads/videos")
	v.SetDefault("media.assets_root", "")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "videos")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("events.queue_url", "")
	v.SetDefault("events.region", "")
	v.SetDefault("events.endpoint", "")
	v.SetDefault("events.buffer", 1024)
	v.SetDefault("events.workers", 2)
	v.SetDefault("events.wait_seconds", 20)

	v.SetDefault("leaderboard.key_prefix", "leaderboard")
	v.SetDefault("leaderboard.daily_retention_from", 7)
	v.SetDefault("leaderboard.daily_retention_to", 30)
	v.SetDefault("leaderboard.weekly_retention_from", 8)
	v.SetDefault("leaderboard.weekly_retention_to", 20)
	v.SetDefault("leaderboard.sweep_interval", "1h")

	v.SetDefault("jwt.secret", "")
}
