package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/i474232898/weather-etl/internal/api/http"
	"github.com/i474232898/weather-etl/internal/config"
	"github.com/i474232898/weather-etl/internal/metrics"
	"github.com/i474232898/weather-etl/internal/observe"
	"github.com/i474232898/weather-etl/internal/scheduler"
	"github.com/i474232898/weather-etl/internal/storage"
	"github.com/i474232898/weather-etl/internal/store"
	"github.com/i474232898/weather-etl/internal/weather"
	"github.com/i474232898/weather-etl/internal/weather/providers"
	"github.com/i474232898/weather-etl/pkg/logger"
)

func main() {
	// Registered first so it runs after every other deferred cleanup.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Structured logging, teed into Sentry when a DSN is configured.
	writers := []io.Writer{os.Stdout}
	if cfg.SentryDSN != "" {
		hook, err := observe.NewSentryHook(cfg.AppEnv, cfg.AppName, cfg.SentryDSN, false)
		if err != nil {
			log.Fatalf("failed to init sentry: %v", err)
		}
		defer hook.Flush()
		writers = append(writers, hook)
	}
	l := logger.NewZapLogger(logger.Config{
		AppName: cfg.AppName,
		AppEnv:  cfg.AppEnv,
		Level:   cfg.LogLevel,
	}, writers...)
	defer l.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewOpenWeatherProvider(httpClient, providers.OpenWeatherOptions{
		BaseURL:      cfg.OpenWeather.BaseURL,
		APIKey:       cfg.OpenWeather.APIKey,
		City:         cfg.OpenWeather.City,
		ReadyTimeout: cfg.Readiness.Timeout,
		PokeInterval: cfg.Readiness.PokeInterval,
	}, l, m)

	sink, err := newSink(ctx, cfg.Storage)
	if err != nil {
		l.Fatal("failed to configure storage", map[string]any{"err": err.Error(), "driver": cfg.Storage.Driver})
	}
	uploader := storage.NewUploader(sink, cfg.Storage.Prefix, l, m)

	history, closeHistory, err := newStore(cfg.Store)
	if err != nil {
		l.Fatal("failed to open run history", map[string]any{"err": err.Error(), "driver": cfg.Store.Driver})
	}
	defer closeHistory()

	// Core service orchestrating readiness, fetch, transform and upload.
	service := weather.NewService(provider, uploader, history, l, m)

	sched := scheduler.New(service, scheduler.Options{
		Schedule:   cfg.Schedule.Cron,
		Retries:    cfg.Schedule.Retries,
		RetryDelay: cfg.Schedule.RetryDelay,
		RunTimeout: cfg.Schedule.RunTimeout,
	}, l)

	if cfg.RunOnce {
		run, err := sched.RunNow(ctx)
		if err != nil {
			l.Error(err, map[string]any{"run_id": run.ID})
			exitCode = 1
			return
		}
		l.Info("weather run complete", map[string]any{"run_id": run.ID, "key": run.ObjectKey})
		return
	}

	if err := sched.Start(); err != nil {
		l.Fatal("failed to start scheduler", map[string]any{"err": err.Error()})
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.Schedule.RunTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterOps(app, cfg.AppName, reg)
	httpapi.RegisterRoutes(app, service, sched)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			l.Warning("fiber server stopped", map[string]any{"err": err.Error()})
		}
	}()
	l.Info("weather-etl started", map[string]any{
		"port":     cfg.Port,
		"schedule": cfg.Schedule.Cron,
		"city":     cfg.OpenWeather.City,
	})

	// Wait for termination signal
	<-ctx.Done()

	// Cancels a scheduled run mid-attempt or mid-retry-wait.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		l.Warning("error during shutdown", map[string]any{"err": err.Error()})
	}
}

func newSink(ctx context.Context, cfg config.StorageConfig) (storage.Sink, error) {
	if cfg.Driver == "file" {
		return storage.NewFileSink(cfg.FileDir)
	}
	return storage.NewS3Sink(ctx, storage.S3Options{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		Endpoint:        cfg.Endpoint,
		UsePathStyle:    cfg.UsePathStyle,
	})
}

func newStore(cfg config.StoreConfig) (weather.Store, func(), error) {
	if cfg.Driver == "sqlite" {
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	return store.NewMemoryStore(cfg.MaxHistory, cfg.MaxAge), func() {}, nil
}
