package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/star/tlestate/internal/auth"
	"github.com/star/tlestate/internal/health"
	"github.com/star/tlestate/internal/httputil"
	"github.com/star/tlestate/internal/metrics"
	"github.com/star/tlestate/internal/propagation"
	"github.com/star/tlestate/internal/tle"
)

// Options carries the server's collaborators and limits.
type Options struct {
	Store      *tle.Store
	Loader     *tle.Loader
	Propagator *propagation.Propagator

	// FetchInterval is the minimum spacing between manual refreshes.
	FetchInterval time.Duration
	// MaxConcurrentPerIP bounds in-flight ephemeris requests per client.
	MaxConcurrentPerIP int
	// TrustProxy makes client IPs come from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, opts Options) *Server {
	if opts.FetchInterval <= 0 {
		opts.FetchInterval = time.Minute
	}
	if opts.MaxConcurrentPerIP <= 0 {
		opts.MaxConcurrentPerIP = 4
	}

	h := &handlers{
		store:      opts.Store,
		loader:     opts.Loader,
		prop:       opts.Propagator,
		logger:     logger,
		fetchLimit: rate.NewLimiter(rate.Every(opts.FetchInterval), 1),
		series:     httputil.NewLimiter(opts.MaxConcurrentPerIP),
		trustProxy: opts.TrustProxy,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(opts.Store))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/tle/metadata", h.tleMetadata)
	mux.HandleFunc("POST /api/v1/tle/fetch", h.tleFetch)
	mux.HandleFunc("GET /api/v1/tle/{norad_id}", h.tleEntry)
	mux.HandleFunc("GET /api/v1/propagate/{norad_id}", h.propagateSingle)
	mux.HandleFunc("POST /api/v1/propagate", h.propagateAdHoc)

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
