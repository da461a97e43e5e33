package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"outfit-studio/internal/app"
	"outfit-studio/internal/catalog"
	"outfit-studio/internal/config"
	"outfit-studio/internal/httpclient"
	"outfit-studio/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := app.NewLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	styles := catalog.Default()
	sessions := app.NewSessionStore(cfg, httpClient, styles, logger)
	go sessions.RunJanitor(ctx, time.Minute)

	s := web.New(web.Options{
		Sessions:       sessions,
		Catalog:        styles,
		Prepare:        app.PrepareOptions(cfg, logger),
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.CORSOrigins,
		BaseContext:    ctx,
		RunTimeout:     cfg.RunTimeout,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started", "addr", cfg.WebAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}
