package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroti/Psi/internal/app"
	"github.com/neuroti/Psi/internal/config"
	"github.com/neuroti/Psi/internal/logging"
	"github.com/neuroti/Psi/internal/recipe"
	"github.com/neuroti/Psi/internal/telegram"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.RequireTelegram(); err != nil {
		logging.Fatal().Err(err).Msg("telegram is not configured")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx := context.Background()

	// 2. Storage, classifiers and services
	rt, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer rt.Close()

	importer := recipe.NewImporter(&http.Client{Timeout: 30 * time.Second}, rt.App.Recipes())

	// 3. Telegram Bot
	bot, err := telegram.NewBot(cfg, rt.App, importer, rt.Metrics)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}

	mux := http.NewServeMux()
	bot.RegisterHandlers(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// 4. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Telegram.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("port", cfg.Telegram.Port).Msg("telegram bot server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logging.Error().Err(err).Msg("server forced to shutdown")
	}

	logging.Info().Msg("server exiting")
}
