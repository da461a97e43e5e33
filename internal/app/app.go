package app

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/classifier"
	"outfit-studio/internal/config"
	"outfit-studio/internal/gemini"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/lookgen"
	"outfit-studio/internal/orchestrator"
	"outfit-studio/internal/session"
)

func NewLogger(cfg config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg.LogLevel)
}

func newLogger(w io.Writer, levelName string) *slog.Logger {
	level := slog.LevelInfo
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func PrepareOptions(cfg config.Config, logger *slog.Logger) imaging.PrepareOptions {
	return imaging.PrepareOptions{
		MaxDimension: cfg.MaxImageDimension,
		JPEGQuality:  cfg.JPEGQuality,
		Logger:       logger,
	}
}

// NewSessionStore wires the Gemini-backed classifier and generator into a
// session store. Classifier and generator are shared by all sessions; each
// session gets its own orchestrator.
func NewSessionStore(cfg config.Config, httpClient *http.Client, cat *catalog.Catalog, logger *slog.Logger) *session.Store {
	if cat == nil {
		cat = catalog.Default()
	}
	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	base := classifier.New(classifier.Options{
		Client: gem,
		Model:  cfg.ClassifyModel,
		Logger: logger,
	})
	var classify orchestrator.Classifier = base
	if cfg.ClassifyCacheTTL > 0 {
		classify = classifier.NewCached(base, cfg.ClassifyCacheTTL, logger)
	}

	gen := lookgen.New(lookgen.Options{
		Client:   gem,
		Model:    cfg.ImageModel,
		Interval: cfg.GenerateInterval,
		Burst:    cfg.BatchSize,
		Logger:   logger,
	})

	return session.NewStore(session.Options{
		MaxSessions: cfg.MaxSessions,
		IdleTimeout: cfg.SessionIdleTimeout,
		NewOrchestrator: func() *orchestrator.Orchestrator {
			return orchestrator.New(orchestrator.Options{
				Classifier: classify,
				Generator:  gen,
				Styles:     cat,
				BatchSize:  cfg.BatchSize,
				Logger:     logger,
			})
		},
	})
}
