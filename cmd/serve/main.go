package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/api"
	"github.com/Symbiosis-Lab/moss-social/internal/api/middleware"
	"github.com/Symbiosis-Lab/moss-social/internal/config"
	"github.com/Symbiosis-Lab/moss-social/internal/handlers"
	"github.com/Symbiosis-Lab/moss-social/internal/signer"
	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Named-value store: Redis when configured, local files otherwise
	var (
		kv      store.KV
		redisKV *store.RedisKV
	)
	if cfg.RedisURL != "" {
		redisKV, err = store.NewRedisKV(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisKV.Close()
		kv = redisKV
		logger.Info().Msg("connected to Redis")
	} else {
		kv, err = store.NewFileKV(cfg.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("opening data directory failed")
		}
	}

	// Publication tracking
	tracking, err := store.OpenTracking(ctx, cfg.DatabaseURL, filepath.Join(cfg.DataDir, "moss-social.db"))
	if err != nil {
		logger.Fatal().Err(err).Msg("opening tracking store failed")
	}
	defer tracking.Close()

	// Comment signing chain: hosted bridge when configured, otherwise a
	// persisted local key
	signCfg := signer.Options{
		BridgeURL: cfg.BridgeURL,
		KV:        kv,
		Log:       logger,
	}

	h := handlers.NewHandler(cfg.Relays, kv, tracking, redisKV, signCfg, logger)

	var limiter *middleware.RateLimiter
	if redisKV != nil {
		limiter = middleware.NewRateLimiter(redisKV.Client(), logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		})
	}

	router := api.NewRouter(logger, api.Options{
		Handler:  h,
		Limiter:  limiter,
		PagesDir: os.Getenv("MOSS_PAGES_DIR"),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Strs("relays", cfg.Relays).
			Msg("starting moss-social server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
