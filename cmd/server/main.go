// Package main runs the voice assistant recording backend: session and
// recording endpoints, the LiveKit webhook ingress, and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/echo-sphere/backend/config"
	"github.com/echo-sphere/backend/internal/egress"
	"github.com/echo-sphere/backend/internal/middleware"
	"github.com/echo-sphere/backend/internal/recordings"
	"github.com/echo-sphere/backend/internal/sessions"
	"github.com/echo-sphere/backend/pkg/database"
	"github.com/echo-sphere/backend/pkg/redis"
	"github.com/echo-sphere/backend/pkg/response"
	"github.com/echo-sphere/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis only backs webhook dedupe; the service stays correct without it.
	var rdbClient *goredis.Client
	if rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger); err != nil {
		logger.Warn("redis unavailable, webhook dedupe disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		rdbClient = rdb.Client
	}

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

	recordingRepo := recordings.NewRepository(pool)
	recordingService := recordings.NewService(recordingRepo, egressClient, s3Client, recordings.Defaults{
		Bucket:          cfg.S3.RecordingsBucket,
		Width:           cfg.Recording.OutputWidth,
		Height:          cfg.Recording.OutputHeight,
		SegmentDuration: cfg.Recording.SegmentDuration,
		PresignExpire:   time.Duration(cfg.S3.PresignExpireSeconds) * time.Second,
	}, logger)
	recordingHandler := recordings.NewHandler(recordingRepo, recordingService, logger)
	recordingWebhook := recordings.NewWebhookHandler(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, recordingService, rdbClient, logger)

	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, recordingService, cfg.Recording.EnabledByDefault, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Sessions (created by the voice worker when a user joins a room)
	router.POST("/sessions", sessionHandler.Create)
	router.GET("/sessions/active", sessionHandler.ListActive)
	router.GET("/sessions/:id", sessionHandler.GetByID)
	router.POST("/sessions/:id/end", sessionHandler.End)
	router.POST("/sessions/:id/recording/start", recordingHandler.Start)
	router.POST("/sessions/:id/recording/stop", recordingHandler.Stop)

	// Recordings
	router.GET("/recordings", recordingHandler.List)
	router.GET("/recordings/:id", recordingHandler.GetByID)
	router.GET("/recordings/:id/playback-url", recordingHandler.PlaybackURL)

	// Webhooks (signature verified in handler, no other auth)
	router.POST("/webhooks/livekit", recordingWebhook.Handle)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
