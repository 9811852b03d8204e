package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yxzhang/storycut/internal/api"
	"github.com/yxzhang/storycut/internal/assemble"
	"github.com/yxzhang/storycut/internal/assets"
	"github.com/yxzhang/storycut/internal/cache"
	"github.com/yxzhang/storycut/internal/config"
	"github.com/yxzhang/storycut/internal/db"
	"github.com/yxzhang/storycut/internal/jimeng"
	"github.com/yxzhang/storycut/internal/media"
	"github.com/yxzhang/storycut/internal/publish"
	"github.com/yxzhang/storycut/internal/runner"
	"github.com/yxzhang/storycut/internal/tasks"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	logger := newLogger(cfg.PrettyLogging)
	logger.Info().Msg("starting storycut API")

	// Connect to database
	database, err := db.New(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()
	logger.Info().Msg("connected to database")

	// Optional terminal-task cache
	var taskCache *cache.Cache
	if cfg.RedisURL != "" {
		taskCache, err = cache.New(cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer taskCache.Close()
		logger.Info().Msg("terminal-task cache enabled")
	}

	// Remote generation client
	genClient := jimeng.New(jimeng.Config{
		AccessKeyID:     cfg.GenAccessKeyID,
		SecretAccessKey: cfg.GenSecretAccessKey,
		Endpoint:        cfg.GenEndpoint,
		Region:          cfg.GenRegion,
		Service:         cfg.GenService,
		Schema:          cfg.GenSchema,
	}, cfg.VideosDir, cfg.PublicBaseURL+"/v1/videos/files", logger)

	orchestrator := tasks.New(database, genClient, taskCache, cfg.DefaultAspectRatio, logger)

	// Assembly pipeline
	procRunner := runner.New(logger)
	engine := media.NewEngine(procRunner, logger)
	assembler := assemble.New(
		assets.NewResolver(cfg.SceneCatalog, logger),
		engine,
		publish.New(cfg.WorksDir, logger),
		cfg.TempDir,
		cfg.MusicDir,
		logger,
	)

	if !engine.Available(context.Background()) {
		logger.Warn().Msg("ffmpeg not found on PATH, assembly requests will fail")
	}

	handler := api.NewHandler(
		database, orchestrator, assembler, engine,
		cfg.WorksDir, cfg.VideosDir, cfg.MusicDir, cfg.PublicBaseURL,
		logger,
	)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	}, logger)

	if cfg.BackendAPIKey != "" {
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Warn().Msg("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("port", cfg.APIPort).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
