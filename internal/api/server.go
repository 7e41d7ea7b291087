// Package api exposes the forest analyses over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/forest-cli/internal/analysis"
	"github.com/sells-group/forest-cli/internal/store"
)

// Analyzer runs the analyses behind the API.
type Analyzer interface {
	Forma250(ctx context.Context, req analysis.FormaRequest) (*analysis.FormaResult, error)
	Extent(ctx context.Context, req analysis.ExtentRequest) (*analysis.ExtentResult, error)
}

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins  []string
	MaxBodyBytes int64
	DefaultTiles int
}

// Server routes API requests to the analysis service and run store.
type Server struct {
	analyzer Analyzer
	runs     store.Store
	opts     Options
	router   chi.Router
}

// NewServer builds the router. runs may be nil, in which case the run
// history endpoints answer 404.
func NewServer(a Analyzer, runs store.Store, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	if opts.DefaultTiles <= 0 {
		opts.DefaultTiles = 1
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{analyzer: a, runs: runs, opts: opts}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/forma250", s.handleForma)
		r.Get("/forma250/admin/{iso}", s.handleFormaAdmin)
		r.Get("/forma250/admin/{iso}/{adm1}", s.handleFormaAdmin)
		r.Post("/extent", s.handleExtent)
		r.Post("/stats/select", s.handleStatsSelect)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

// requestLogger logs one line per request at info level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
