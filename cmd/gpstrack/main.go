package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vbonduro/gpstrack/internal/assetstore/local"
	"github.com/vbonduro/gpstrack/internal/config"
	"github.com/vbonduro/gpstrack/internal/db"
	"github.com/vbonduro/gpstrack/internal/hub"
	"github.com/vbonduro/gpstrack/internal/imaging"
	"github.com/vbonduro/gpstrack/internal/logging"
	"github.com/vbonduro/gpstrack/internal/service"
	"github.com/vbonduro/gpstrack/internal/store"
	"github.com/vbonduro/gpstrack/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	cameraStore := store.NewCameraStore(database)
	eventStore := store.NewEventStore(database)

	assets, err := local.NewLocalAssetStore(cfg.AssetPath, imaging.NewNormalizer(cfg.ImageMaxEdge, cfg.ImageQuality), logger)
	if err != nil {
		return err
	}

	broadcaster := hub.New(logger)
	registry := service.NewCameraRegistry(cameraStore, logger)
	detections := service.NewDetectionService(registry, eventStore, assets, broadcaster, logger, service.DetectionOptions{
		RecentWindow:  cfg.RecentWindow,
		FileURLPrefix: cfg.APIPrefix + "/files",
	})
	reset := service.NewResetService(eventStore, assets, cfg.ClearPassword, logger)
	if cfg.ClearPassword == "" {
		logger.Warn("CLEAR_PASSWORD is not set; clear-all is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CameraSeedFile != "" {
		if err := provisionCameras(ctx, registry, cfg.CameraSeedFile, logger); err != nil {
			return err
		}
	}

	server := web.NewServer(web.Services{
		Detections: detections,
		Registry:   registry,
		Guard:      service.NewGuard(cameraStore),
		Reset:      reset,
		Assets:     assets,
		Hub:        broadcaster,
	}, web.Options{
		APIPrefix:      cfg.APIPrefix,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	return server.ListenAndServe(ctx, cfg.ListenAddr)
}

func provisionCameras(ctx context.Context, registry *service.CameraRegistry, path string, logger *slog.Logger) error {
	seeds, err := config.LoadCameraSeeds(path)
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		if _, err := registry.Provision(ctx, seed); err != nil {
			return err
		}
	}
	logger.Info("cameras provisioned", "count", len(seeds), "file", path)
	return nil
}
