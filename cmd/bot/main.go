package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"outfit-studio/internal/app"
	"outfit-studio/internal/bot"
	"outfit-studio/internal/catalog"
	"outfit-studio/internal/config"
	"outfit-studio/internal/httpclient"
	"outfit-studio/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		panic(err)
	}

	logger := app.NewLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     logger,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	styles := catalog.Default()
	sessions := app.NewSessionStore(cfg, httpClient, styles, logger)
	go sessions.RunJanitor(ctx, time.Minute)

	handler := bot.New(bot.Options{
		Telegram:         tg,
		Sessions:         sessions,
		Catalog:          styles,
		Prepare:          app.PrepareOptions(cfg, logger),
		BaseContext:      ctx,
		RunTimeout:       cfg.RunTimeout,
		ProgressDebounce: cfg.ProgressDebounce,
		Logger:           logger,
	})

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}
