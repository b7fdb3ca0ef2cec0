// Package main runs the background reconciler that sweeps non-terminal
// recordings against the egress API, closing the gap left by lost webhooks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/echo-sphere/backend/config"
	"github.com/echo-sphere/backend/internal/egress"
	"github.com/echo-sphere/backend/internal/recordings"
	"github.com/echo-sphere/backend/internal/worker"
	"github.com/echo-sphere/backend/pkg/database"
	"github.com/echo-sphere/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.S3.Region,
		AccessKeyID:          cfg.S3.AccessKeyID,
		SecretAccessKey:      cfg.S3.SecretAccessKey,
		EndpointURL:          cfg.S3.EndpointURL,
		RecordingsBucket:     cfg.S3.RecordingsBucket,
		PresignExpireSeconds: cfg.S3.PresignExpireSeconds,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	egressClient := egress.NewLiveKitClient(egress.LiveKitConfig{
		URL:         cfg.LiveKit.URL,
		APIKey:      cfg.LiveKit.APIKey,
		APISecret:   cfg.LiveKit.APISecret,
		S3Endpoint:  cfg.S3.EndpointURL,
		S3AccessKey: cfg.S3.AccessKeyID,
		S3SecretKey: cfg.S3.SecretAccessKey,
		S3Region:    cfg.S3.Region,
	}, logger)

	repo := recordings.NewRepository(pool)
	service := recordings.NewService(repo, egressClient, s3Client, recordings.Defaults{
		Bucket:          cfg.S3.RecordingsBucket,
		Width:           cfg.Recording.OutputWidth,
		Height:          cfg.Recording.OutputHeight,
		SegmentDuration: cfg.Recording.SegmentDuration,
		PresignExpire:   time.Duration(cfg.S3.PresignExpireSeconds) * time.Second,
	}, logger)

	interval := time.Duration(cfg.Recording.ReconcileIntervalS) * time.Second
	reconciler := worker.NewReconciler(repo, service, egressClient, interval, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	logger.Info("reconciler starting", zap.Duration("interval", interval))
	reconciler.Run(ctx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
