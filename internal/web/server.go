package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/imaging"
	"outfit-studio/internal/session"
)

const (
	defaultMaxUploadBytes = 25 << 20
	sseHeartbeatInterval  = 15 * time.Second
)

type Options struct {
	Sessions       *session.Store
	Catalog        *catalog.Catalog
	Prepare        imaging.PrepareOptions
	MaxUploadBytes int64
	AllowedOrigins []string

	// BaseContext outlives single requests; runs derive from it.
	BaseContext context.Context
	RunTimeout  time.Duration
	Logger      *slog.Logger
}

type Server struct {
	sessions       *session.Store
	catalog        *catalog.Catalog
	prepare        imaging.PrepareOptions
	maxUploadBytes int64
	allowedOrigins []string
	baseCtx        context.Context
	runTimeout     time.Duration
	heartbeat      time.Duration
	logger         *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	runTimeout := opts.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}

	return &Server{
		sessions:       opts.Sessions,
		catalog:        cat,
		prepare:        opts.Prepare,
		maxUploadBytes: maxUpload,
		allowedOrigins: origins,
		baseCtx:        baseCtx,
		runTimeout:     runTimeout,
		heartbeat:      sseHeartbeatInterval,
		logger:         logger,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/styles", s.handleListStyles)
		r.Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Put("/image", s.handleUploadImage)
			r.Post("/runs", s.handleStartRun)
			r.Delete("/run", s.handleResetRun)
			r.Get("/events", s.handleEvents)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"dur_ms", time.Since(start).Milliseconds(),
		)
	})
}
