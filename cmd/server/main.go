// Command server runs the collaborative whiteboard service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ericfitz/whiteboard/api"
	"github.com/ericfitz/whiteboard/auth"
	"github.com/ericfitz/whiteboard/internal/collab"
	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/database"
	"github.com/ericfitz/whiteboard/internal/eventlog"
	"github.com/ericfitz/whiteboard/internal/profile"
	"github.com/ericfitz/whiteboard/internal/secrets"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/ericfitz/whiteboard/internal/telemetry"
)

var version = "dev"

const (
	// hubQueueSize is the number of inbound frames buffered across all connections
	hubQueueSize = 1024
	// shutdownGrace bounds the whole shutdown when no timeout is configured
	shutdownGrace = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "whiteboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile, generateConfig, err := config.ParseFlags()
	if err != nil {
		return err
	}
	if generateConfig {
		return config.GenerateExampleConfig(os.Stdout)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := secrets.NewProvider(ctx, cfg.Secrets)
	if err != nil {
		return fmt.Errorf("failed to create secrets provider: %w", err)
	}
	if err := secrets.Apply(ctx, provider, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateSecrets(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := slogging.Initialize(slogging.Config{
		Level:            cfg.GetLogLevel(),
		IsDev:            cfg.Logging.IsDev,
		LogDir:           cfg.Logging.LogDir,
		MaxAgeDays:       cfg.Logging.MaxAgeDays,
		MaxSizeMB:        cfg.Logging.MaxSizeMB,
		MaxBackups:       cfg.Logging.MaxBackups,
		AlsoLogToConsole: cfg.Logging.AlsoLogToConsole,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := slogging.Get()
	defer func() { _ = logger.Close() }()
	logger.Info("Starting whiteboard %s (database=%s, redis=%t, secrets=%s)",
		version, cfg.Database.Type, cfg.Redis.Enabled, provider.Name())

	tel, err := telemetry.NewService(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := telemetry.NewCollabMetrics(tel.Meter())
	if err != nil {
		return fmt.Errorf("failed to register collaboration metrics: %w", err)
	}

	db, err := database.Open(cfg.Database, database.Options{Tracing: cfg.Telemetry.TracingEnabled})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database: %v", err)
		}
	}()
	if err := db.AutoMigrate(); err != nil {
		return err
	}

	health := map[string]api.HealthCheck{"database": db.Ping}

	var directory profile.Directory = profile.NewGormDirectory(db.Gorm())
	var revocations auth.RevocationList
	var blacklist *auth.TokenBlacklist
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.OpenRedis(ctx, cfg, cfg.Telemetry.TracingEnabled)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()

		blacklist = auth.NewTokenBlacklist(redisClient)
		revocations = blacklist
		directory = profile.NewCachedDirectory(directory, redisClient, cfg.Profile.CacheTTL)
		health["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWT, revocations)
	if err != nil {
		return err
	}
	var revoke api.RevokeFunc
	if blacklist != nil {
		revoke = func(ctx context.Context, token string) error {
			return verifier.Revoke(ctx, blacklist, token)
		}
	}

	store := eventlog.NewGormStore(db.Gorm())
	writer := eventlog.NewWriter(store, eventlog.WriterOptions{
		QueueSize:    cfg.EventLog.QueueSize,
		WriteTimeout: cfg.EventLog.WriteTimeout,
		Observe: func(ev eventlog.Event, err error) {
			metrics.EventPersisted(string(ev.Kind), err)
		},
	})
	writer.Start()

	dispatcher := collab.NewDispatcher(collab.Deps{
		Events:    writer,
		Directory: directory,
		Metrics:   metrics,
		Tracer:    tel.Tracer("github.com/ericfitz/whiteboard/internal/collab"),
	}, collab.Options{
		DragDebounce:   cfg.WebSocket.DragDebounce,
		DrawingTimeout: cfg.WebSocket.DrawingTimeout,
	})
	hub := collab.NewHub(dispatcher, hubQueueSize)

	if !cfg.Logging.IsDev {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(api.Options{
		Hub:         hub,
		Verifier:    verifier,
		Events:      store,
		Revoke:      revoke,
		Metrics:     tel.MetricsHandler(),
		Health:      health,
		WebSocket:   cfg.WebSocket,
		Logging:     cfg.WebSocketLogging(),
		ServiceName: cfg.Telemetry.ServiceName,
	})
	httpServer := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		grace := cfg.Server.ShutdownTimeout
		if grace <= 0 {
			grace = shutdownGrace
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := hub.Wait(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		dispatcher.Shutdown()
		if err := writer.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		db.LogStats()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error: %v", err)
		return err
	}
	logger.Info("Server stopped")
	return nil
}
