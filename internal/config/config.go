package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-level config.
type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// MongoConfig holds the MongoDB connection settings used for the tracking
// store and the loan/user directory. Durations are plain numbers in the
// units their keys name so they round-trip through YAML.
type MongoConfig struct {
	URI                   string `yaml:"uri"`
	DBName                string `yaml:"db_name"`
	MaxPoolSize           uint64 `yaml:"max_pool_size"`
	MinPoolSize           uint64 `yaml:"min_pool_size"`
	MaxConnIdleMinutes    int    `yaml:"max_conn_idle_minutes"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
}

// MaxConnIdleTime converts the configured minutes.
func (c MongoConfig) MaxConnIdleTime() time.Duration {
	return time.Duration(c.MaxConnIdleMinutes) * time.Minute
}

// ConnectTimeout converts the configured seconds.
func (c MongoConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// RedisConfig holds the optional status-cache settings.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL converts the configured seconds.
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// TrackingConfig selects the tracking store backend.
type TrackingConfig struct {
	// Backend is one of "mongo", "firestore", "memory".
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
}

// FirestoreConfig applies when tracking.backend is "firestore".
type FirestoreConfig struct {
	ProjectID string `yaml:"project_id"`
}

// StorageConfig selects the content store backend.
type StorageConfig struct {
	// Backend is one of "filesystem", "gcs".
	Backend string `yaml:"backend"`
	Root    string `yaml:"root"`
	Bucket  string `yaml:"bucket"`
}

// AssetsConfig points at the static branding inputs of the renderer and
// compositor. Explicit paths, no candidate-location probing.
type AssetsConfig struct {
	LenderName          string `yaml:"lender_name"`
	BrandingPath        string `yaml:"branding_path"`
	LenderSignaturePath string `yaml:"lender_signature_path"`
}

// PubSubConfig holds the lifecycle event publisher settings.
type PubSubConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
	Topic     string `yaml:"topic"`
}

// SweeperConfig controls the stale unsigned-artifact sweep.
type SweeperConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	MaxAgeHours     int  `yaml:"max_age_hours"`
}

// Interval converts the configured minutes.
func (c SweeperConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// MaxAge converts the configured hours.
func (c SweeperConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// TracingConfig holds the OTLP exporter settings.
type TracingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	CollectorURL string `yaml:"collector_url"`
}

// AppConfig is the main config struct that holds all configs.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LogConfig       `yaml:"logging"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Storage   StorageConfig   `yaml:"storage"`
	Assets    AssetsConfig    `yaml:"assets"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

func assignDefaultConfigValues(cfg *AppConfig) *AppConfig {
	cfg.Server.Port = GetEnvOrDefaultAsInt("SERVER_PORT", defaultInt(cfg.Server.Port, 8080))
	cfg.Logging.Level = GetEnvOrDefaultAsString("LOGGING_LEVEL", defaultString(cfg.Logging.Level, "info"))

	cfg.Mongo.URI = GetEnvOrDefaultAsString("MONGO_URI", defaultString(cfg.Mongo.URI, "mongodb://localhost:27017"))
	cfg.Mongo.DBName = GetEnvOrDefaultAsString("MONGO_DB_NAME", defaultString(cfg.Mongo.DBName, "agreementflow"))
	cfg.Mongo.MaxPoolSize = GetEnvOrDefaultAsUint64("MONGO_MAX_POOL_SIZE", defaultUint64(cfg.Mongo.MaxPoolSize, 20))
	cfg.Mongo.MinPoolSize = GetEnvOrDefaultAsUint64("MONGO_MIN_POOL_SIZE", defaultUint64(cfg.Mongo.MinPoolSize, 1))
	cfg.Mongo.MaxConnIdleMinutes = GetEnvOrDefaultAsInt("MONGO_MAX_CONN_IDLE_MINUTES", defaultInt(cfg.Mongo.MaxConnIdleMinutes, 30))
	cfg.Mongo.ConnectTimeoutSeconds = GetEnvOrDefaultAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", defaultInt(cfg.Mongo.ConnectTimeoutSeconds, 10))

	cfg.Redis.Enabled = GetEnvOrDefaultAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = GetEnvOrDefaultAsString("REDIS_ADDR", defaultString(cfg.Redis.Addr, "localhost:6379"))
	cfg.Redis.Password = GetEnvOrDefaultAsString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvOrDefaultAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.TTLSeconds = GetEnvOrDefaultAsInt("REDIS_STATUS_TTL_SECONDS", defaultInt(cfg.Redis.TTLSeconds, 300))

	cfg.Tracking.Backend = GetEnvOrDefaultAsString("TRACKING_BACKEND", defaultString(cfg.Tracking.Backend, "mongo"))
	cfg.Tracking.Collection = GetEnvOrDefaultAsString("TRACKING_COLLECTION", defaultString(cfg.Tracking.Collection, "documentTracking"))
	cfg.Firestore.ProjectID = GetEnvOrDefaultAsString("PROJECT_ID", cfg.Firestore.ProjectID)

	cfg.Storage.Backend = GetEnvOrDefaultAsString("STORAGE_BACKEND", defaultString(cfg.Storage.Backend, "filesystem"))
	cfg.Storage.Root = GetEnvOrDefaultAsString("STORAGE_ROOT", defaultString(cfg.Storage.Root, "./data"))
	cfg.Storage.Bucket = GetEnvOrDefaultAsString("STORAGE_BUCKET", cfg.Storage.Bucket)

	cfg.Assets.LenderName = GetEnvOrDefaultAsString("LENDER_NAME", defaultString(cfg.Assets.LenderName, "Pockett Loan"))
	cfg.Assets.BrandingPath = GetEnvOrDefaultAsString("BRANDING_ASSET_PATH", cfg.Assets.BrandingPath)
	cfg.Assets.LenderSignaturePath = GetEnvOrDefaultAsString("LENDER_SIGNATURE_ASSET_PATH", cfg.Assets.LenderSignaturePath)

	cfg.PubSub.Enabled = GetEnvOrDefaultAsBool("PUBSUB_ENABLED", cfg.PubSub.Enabled)
	cfg.PubSub.ProjectID = GetEnvOrDefaultAsString("PUBSUB_PROJECT_ID", defaultString(cfg.PubSub.ProjectID, cfg.Firestore.ProjectID))
	cfg.PubSub.Topic = GetEnvOrDefaultAsString("PUBSUB_TOPIC", defaultString(cfg.PubSub.Topic, "agreement-events"))

	cfg.Sweeper.Enabled = GetEnvOrDefaultAsBool("SWEEPER_ENABLED", cfg.Sweeper.Enabled)
	cfg.Sweeper.IntervalMinutes = GetEnvOrDefaultAsInt("SWEEPER_INTERVAL_MINUTES", defaultInt(cfg.Sweeper.IntervalMinutes, 60))
	cfg.Sweeper.MaxAgeHours = GetEnvOrDefaultAsInt("SWEEPER_MAX_AGE_HOURS", defaultInt(cfg.Sweeper.MaxAgeHours, 72))

	cfg.Tracing.Enabled = GetEnvOrDefaultAsBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ServiceName = GetEnvOrDefaultAsString("SERVICE_NAME", defaultString(cfg.Tracing.ServiceName, "agreement-service"))
	cfg.Tracing.CollectorURL = GetEnvOrDefaultAsString("OTEL_COLLECTOR_URL", cfg.Tracing.CollectorURL)

	return cfg
}

// Load parses the optional YAML file at configPath, then applies environment
// overrides and defaults. An empty configPath loads env/defaults only.
func Load(configPath string) (*AppConfig, error) {
	var cfg AppConfig

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	return assignDefaultConfigValues(&cfg), nil
}

// GetEnvOrDefaultAsString reads an environment variable or returns fallback.
func GetEnvOrDefaultAsString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func GetEnvOrDefaultAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func GetEnvOrDefaultAsUint64(key string, fallback uint64) uint64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func GetEnvOrDefaultAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func defaultUint64(v, fallback uint64) uint64 {
	if v == 0 {
		return fallback
	}
	return v
}
