package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/bike-occupancy/internal/api/http"
	"github.com/i474232898/bike-occupancy/internal/archive"
	"github.com/i474232898/bike-occupancy/internal/config"
	"github.com/i474232898/bike-occupancy/internal/logging"
	"github.com/i474232898/bike-occupancy/internal/mqtt"
	"github.com/i474232898/bike-occupancy/internal/occupancy"
	"github.com/i474232898/bike-occupancy/internal/scheduler"
	"github.com/i474232898/bike-occupancy/internal/sources"
	"github.com/i474232898/bike-occupancy/internal/store"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file (overrides CONFIG_FILE)")
	port := pflag.StringP("port", "p", "", "HTTP port (overrides PORT)")
	noReplay := pflag.Bool("no-replay", false, "start with an empty store instead of replaying the archive")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port != "" {
		cfg.Port = *port
	}

	zlog, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for outbound feed calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	memStore := store.NewMemoryStore(cfg.Location)

	archiveBackend, err := archive.Open(ctx, archive.Config{
		Backend: cfg.Archive.Backend,
		Dir:     cfg.Archive.Dir,
		DSN:     cfg.Archive.DSN,
	})
	if err != nil {
		zlog.Fatal("failed to open archive", zap.Error(err))
	}
	var rawArchive occupancy.Archive
	if archiveBackend != nil {
		rawArchive = archiveBackend
		defer func() {
			if err := archiveBackend.Close(); err != nil {
				zlog.Warn("failed to close archive", zap.Error(err))
			}
		}()
	}

	srcs := []occupancy.Source{
		sources.NewKCGSource(httpClient, cfg.FeedURL, cfg.Location),
	}

	service := occupancy.NewService(memStore, srcs, rawArchive, zlog.Named("service"))

	if !*noReplay {
		if _, err := service.Replay(ctx); err != nil {
			zlog.Error("archive replay failed", zap.Error(err))
		}
	}

	// Scheduler that periodically fetches the feed and ingests it.
	sched := scheduler.New(cfg.FetchInterval, 30*time.Second, service, zlog.Named("scheduler"))
	if err := sched.Start(); err != nil {
		zlog.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	if cfg.MQTT.Enabled() {
		sub := mqtt.NewSubscriber(cfg.MQTT, func(ctx context.Context, payload []byte) error {
			_, err := service.Upload(ctx, "mqtt", payload)
			return err
		}, zlog.Named("mqtt"))
		go func() {
			if err := sub.Connect(ctx); err != nil {
				zlog.Error("mqtt connect failed", zap.Error(err))
			}
		}()
		defer sub.Disconnect()
	}

	app := fiber.New(fiber.Config{
		AppName:               "bike-occupancy",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  "bike-occupancy",
			"stations": len(service.Stations()),
		})
	})

	httpapi.RegisterRoutes(app, service)

	go func() {
		zlog.Info("http server listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zlog.Error("error during shutdown", zap.Error(err))
	}
}
