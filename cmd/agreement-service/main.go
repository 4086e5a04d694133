package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pockett/agreementflow/internal/app/handlers"
	"github.com/pockett/agreementflow/internal/app/router"
	"github.com/pockett/agreementflow/internal/cache"
	"github.com/pockett/agreementflow/internal/compose"
	"github.com/pockett/agreementflow/internal/config"
	"github.com/pockett/agreementflow/internal/contentstore"
	"github.com/pockett/agreementflow/internal/db"
	"github.com/pockett/agreementflow/internal/directory"
	"github.com/pockett/agreementflow/internal/events"
	"github.com/pockett/agreementflow/internal/logger"
	"github.com/pockett/agreementflow/internal/otel"
	"github.com/pockett/agreementflow/internal/render"
	"github.com/pockett/agreementflow/internal/services"
	"github.com/pockett/agreementflow/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded:", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Service exited with error.", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	if cfg.Tracing.Enabled {
		shutdown, err := otel.Setup(ctx, cfg.Tracing.ServiceName, cfg.Tracing.CollectorURL)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("Failed to shut down tracer.", err)
			}
		}()
	}

	content, closeContent, err := buildContentStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeContent()

	// The loan/user directory always lives in MongoDB, so the connection is
	// shared with the tracking store when that also runs on Mongo. Fully
	// in-memory mode skips Mongo entirely.
	var mongoDB *db.MongoDB
	if cfg.Tracking.Backend != "memory" {
		mongoDB, err = db.NewMongoDB(ctx, cfg.Mongo)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoDB.Close(context.Background())
	}

	tracking, closeTracking, err := buildTrackingStore(ctx, cfg, mongoDB)
	if err != nil {
		return err
	}
	defer closeTracking()

	var dir directory.Directory = directory.NewMemoryDirectory()
	if mongoDB != nil {
		dir = directory.NewMongoDirectory(mongoDB.Database)
	}

	statusCache := buildStatusCache(cfg)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.PubSub.Enabled {
		p, err := events.NewPubSubPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return fmt.Errorf("failed to set up event publisher: %w", err)
		}
		defer p.Close()
		publisher = p
	}

	renderer := render.NewRenderer(content, render.Config{
		LenderName:        cfg.Assets.LenderName,
		BrandingAssetPath: cfg.Assets.BrandingPath,
	})
	compositor := compose.NewCompositor(content, compose.Config{
		LenderSignatureAssetPath: cfg.Assets.LenderSignaturePath,
	})

	service := services.NewAgreementService(dir, tracking, content, renderer, compositor, statusCache, publisher)

	if cfg.Sweeper.Enabled {
		sweeper := services.NewSweeper(tracking, content, cfg.Sweeper.Interval(), cfg.Sweeper.MaxAge())
		go sweeper.Run(ctx)
	}

	r := router.New(cfg.Tracing.ServiceName, cfg.Tracing.Enabled, handlers.NewAgreementHandler(service))

	logger.CtxInfo(ctx, "Starting agreement service.",
		"port", cfg.Server.Port,
		"trackingBackend", cfg.Tracking.Backend,
		"storageBackend", cfg.Storage.Backend)
	return r.Run(fmt.Sprintf(":%d", cfg.Server.Port))
}

func buildContentStore(ctx context.Context, cfg *config.AppConfig) (contentstore.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "gcs":
		gcs, err := contentstore.NewGCSStore(ctx, cfg.Storage.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up GCS store: %w", err)
		}
		return gcs, func() {
			if err := gcs.Close(); err != nil {
				logger.Error("Failed to close GCS client.", err)
			}
		}, nil
	case "filesystem":
		fs, err := contentstore.NewFilesystemStore(cfg.Storage.Root)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up filesystem store: %w", err)
		}
		return fs, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildTrackingStore(ctx context.Context, cfg *config.AppConfig, mongoDB *db.MongoDB) (store.TrackingStore, func(), error) {
	switch cfg.Tracking.Backend {
	case "mongo":
		s, err := store.NewMongoStore(ctx, mongoDB.Database, cfg.Tracking.Collection)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "firestore":
		client, err := store.NewFirestoreClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to set up Firestore: %w", err)
		}
		return store.NewFirestoreStore(client, cfg.Tracking.Collection), func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close Firestore client.", err)
			}
		}, nil
	case "memory":
		return store.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown tracking backend %q", cfg.Tracking.Backend)
	}
}

func buildStatusCache(cfg *config.AppConfig) cache.StatusCache {
	if !cfg.Redis.Enabled {
		return cache.NoopStatusCache{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return cache.NewRedisStatusCache(client, cfg.Redis.TTL())
}
