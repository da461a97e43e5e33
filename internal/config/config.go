package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	HTTPTimeout      time.Duration
	RunTimeout       time.Duration
	GeminiBaseURL    string
	GeminiAPIVersion string
	ClassifyModel    string
	ImageModel       string

	BatchSize          int
	GenerateInterval   time.Duration
	ClassifyCacheTTL   time.Duration
	MaxImageDimension  int
	JPEGQuality        int
	MaxSessions        int
	SessionIdleTimeout time.Duration
	ProgressDebounce   time.Duration

	WebAddr        string
	MaxUploadBytes int64
	MaxConcurrent  int
	CORSOrigins    []string
}

// Load reads the environment. The Telegram token is not validated here;
// RequireTelegram does that for the bot entrypoint.
func Load() (Config, error) {
	cfg := Config{
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:              getEnvBool("DEBUG", false),
		PreferIPv4:         getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		RunTimeout:         time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 600)) * time.Second,
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiAPIVersion:   getEnv("GEMINI_API_VERSION", "v1beta"),
		ClassifyModel:      getEnv("CLASSIFY_MODEL", "gemini-2.5-flash"),
		ImageModel:         getEnv("IMAGE_MODEL", "gemini-2.5-flash-image"),
		BatchSize:          getEnvInt("BATCH_SIZE", 3),
		GenerateInterval:   time.Duration(getEnvInt("GENERATE_INTERVAL_MS", 0)) * time.Millisecond,
		ClassifyCacheTTL:   time.Duration(getEnvInt("CLASSIFY_CACHE_MINUTES", 30)) * time.Minute,
		MaxImageDimension:  getEnvInt("MAX_IMAGE_DIMENSION", 1024),
		JPEGQuality:        getEnvInt("JPEG_QUALITY", 80),
		MaxSessions:        getEnvInt("MAX_SESSIONS", 1000),
		SessionIdleTimeout: time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 60)) * time.Minute,
		ProgressDebounce:   time.Duration(getEnvInt("PROGRESS_DEBOUNCE_MS", 1500)) * time.Millisecond,
		WebAddr:            getEnv("WEB_ADDR", ":8080"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_MB", 25)) << 20,
		MaxConcurrent:      getEnvInt("MAX_CONCURRENT", 8),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.GenerateInterval < 0 {
		cfg.GenerateInterval = 0
	}
	if cfg.ClassifyCacheTTL < 0 {
		cfg.ClassifyCacheTTL = 0
	}
	if cfg.MaxImageDimension < 64 {
		cfg.MaxImageDimension = 64
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 80
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 1
	}
	if cfg.SessionIdleTimeout <= 0 {
		cfg.SessionIdleTimeout = 60 * time.Minute
	}
	if cfg.ProgressDebounce < 0 {
		cfg.ProgressDebounce = 0
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 600 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	return cfg, nil
}

func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
