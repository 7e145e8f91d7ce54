// Package api serves classification over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/choropleth/internal/classify"
	"github.com/sells-group/choropleth/internal/config"
	"github.com/sells-group/choropleth/internal/palette"
	"github.com/sells-group/choropleth/internal/store"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	cfg      config.ServerConfig
	defaults classify.Options
	palette  string
	palettes *palette.Registry
	// store is nil when persistence is disabled.
	store store.Store
	log   *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables saving and listing runs.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithPalettes replaces the built-in palette registry.
func WithPalettes(r *palette.Registry) Option {
	return func(s *Server) { s.palettes = r }
}

// NewServer creates a Server. defaults fill in fields a request omits; defaultPalette is
// used when a request names none.
func NewServer(cfg config.ServerConfig, defaults classify.Options, defaultPalette string, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		defaults: defaults,
		palette:  defaultPalette,
		palettes: palette.NewRegistry(),
		log:      zap.L().With(zap.String("component", "api")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			burst := s.cfg.RateBurst
			if burst < 1 {
				burst = 1
			}
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.cfg.RateLimit), burst)))
		}
		r.Get("/schemes", s.handleSchemes)
		r.Get("/palettes", s.handlePalettes)
		r.Post("/classify", s.handleClassify)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func rateLimit(lim *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
