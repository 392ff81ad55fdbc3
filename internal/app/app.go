package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sundayezeilo/shorttag/internal/analytics"
	"github.com/sundayezeilo/shorttag/internal/clientid"
	"github.com/sundayezeilo/shorttag/internal/config"
	"github.com/sundayezeilo/shorttag/internal/directory"
	"github.com/sundayezeilo/shorttag/internal/directory/memory"
	"github.com/sundayezeilo/shorttag/internal/directory/postgres"
	"github.com/sundayezeilo/shorttag/internal/directory/redisdir"
	"github.com/sundayezeilo/shorttag/internal/directory/sqlitedir"
	"github.com/sundayezeilo/shorttag/internal/idgen"
	"github.com/sundayezeilo/shorttag/internal/server"
	"github.com/sundayezeilo/shorttag/internal/shortener"
	"github.com/sundayezeilo/shorttag/internal/tagcache"
	"github.com/sundayezeilo/shorttag/internal/tagcheck"
	"github.com/sundayezeilo/shorttag/sluggen"
)

// App holds the application dependencies and configuration.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Directory directory.Backend
	Cache     *tagcache.Cache
	Emitter   *analytics.Emitter
	Server    *server.Server
	Handler   *shortener.Handler
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)
	logger.Info("starting application", "env", cfg.App.Environment)

	return Build(ctx, cfg, logger)
}

// Build wires the application from an already loaded configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	codec, err := clientid.New(cfg.ClientID.FirstPart, cfg.ClientID.SecondPart)
	if err != nil {
		return nil, fmt.Errorf("failed to create client id codec: %w", err)
	}

	sink, err := openSink(cfg.Analytics, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics sink: %w", err)
	}

	dir, err := openDirectory(ctx, cfg.Directory, logger)
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}

	cache := tagcache.New(tagcache.Config{
		TTL:           cfg.Cache.TTL,
		SweepInterval: cfg.Cache.SweepInterval,
		Logger:        logger,
	})
	cache.Start(ctx)

	emitter := analytics.NewEmitter(analytics.EmitterConfig{
		Sink:    sink,
		IDs:     idgen.NewV7(idgen.WithRetries(3)),
		Logger:  logger,
		Timeout: cfg.Analytics.Timeout,
	})

	svc := shortener.NewService(shortener.ServiceConfig{
		Directory: dir,
		Cache:     cache,
		Validator: tagcheck.New(
			tagcheck.WithWords(cfg.Tags.Blacklist...),
			tagcheck.WithHosts(cfg.Tags.DomainBlacklist...),
		),
		Generator:        sluggen.NewNanoID(),
		ClientIDs:        codec,
		Emitter:          emitter,
		Logger:           logger,
		Domain:           cfg.Server.Domain,
		TagLength:        cfg.Tags.Length,
		GenerateAttempts: cfg.Tags.GenerateAttempts,
	})
	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service:    svc,
		Logger:     logger,
		TrustProxy: cfg.Server.TrustProxy,
	})

	srv := server.New(cfg, logger, handler, dir)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"domain", cfg.Server.Domain,
		"directory", dir.Name(),
		"analytics", cfg.Analytics.Sink,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Directory: dir,
		Cache:     cache,
		Emitter:   emitter,
		Server:    srv,
		Handler:   handler,
	}, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops the cache sweep, flushes pending usage events and closes
// the directory. ctx bounds the flush.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	a.Cache.Close()

	var errs []error
	if err := a.Emitter.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush analytics: %w", err))
	}
	if err := a.Directory.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close directory: %w", err))
	} else {
		a.Logger.Info("directory closed", "directory", a.Directory.Name())
	}

	return errors.Join(errs...)
}

func openDirectory(ctx context.Context, cfg config.DirectoryConfig, logger *slog.Logger) (directory.Backend, error) {
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}

	switch backend {
	case config.BackendPostgres:
		return postgres.Open(ctx, postgres.Config{
			URL:      cfg.URL,
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
			Migrate:  cfg.Migrate,
			Logger:   logger,
		})
	case config.BackendRedis:
		return redisdir.Open(ctx, cfg.URL, cfg.KeyPrefix, logger)
	case config.BackendSQLite:
		dsn, err := sqlitedir.DSN(cfg.URL)
		if err != nil {
			return nil, err
		}
		return sqlitedir.Open(ctx, dsn, cfg.Migrate, logger)
	case config.BackendMemory:
		logger.Warn("using in-memory directory, bindings are lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported directory backend %q", backend)
	}
}

func openSink(cfg config.AnalyticsConfig, logger *slog.Logger) (analytics.Sink, error) {
	switch cfg.Sink {
	case config.SinkMeasurement:
		return analytics.NewMeasurement(analytics.MeasurementConfig{
			Endpoint:      cfg.Endpoint,
			MeasurementID: cfg.MeasurementID,
			APISecret:     cfg.APISecret,
			Timeout:       cfg.Timeout,
		})
	case config.SinkNATS:
		return analytics.DialNATS(cfg.NATSURL, cfg.NATSSubject, logger)
	default:
		return analytics.Noop{}, nil
	}
}

// loadEnv loads a .env file in development and test environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
