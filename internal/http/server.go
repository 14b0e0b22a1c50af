package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"adboard/internal/cache"
	"adboard/internal/core"
	"adboard/internal/dashboard"
	"adboard/internal/log"
	"adboard/internal/metrics"
)

// Options carries everything the server needs beyond the listen address.
type Options struct {
	Service   *dashboard.Service
	Countries core.CountryCodes
	CacheTTL  time.Duration

	// AuthSecret enables the bearer-token gate when non-empty.
	AuthSecret    string
	AllowedEmails []string

	Metrics *metrics.Metrics
	Logger  *log.Logger
}

type Server struct {
	http.Server
	svc       *dashboard.Service
	countries core.CountryCodes
	auth      *authenticator
	metrics   *metrics.Metrics
	log       *log.Logger

	rateLimiter *rateLimiter

	// Rendered dashboard responses, keyed by snapshot time plus filter.
	respCache *cache.LRU[[]byte]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	mux := http.NewServeMux()

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(slog.LevelInfo, log.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:              opts.Service,
		countries:        opts.Countries,
		metrics:          opts.Metrics,
		log:              logger,
		rateLimiter:      newRateLimiter(),
		respCache:        cache.NewLRU[[]byte](200, ttl),
		stopCacheCleanup: make(chan struct{}),
	}
	if opts.AuthSecret != "" {
		s.auth = newAuthenticator(opts.AuthSecret, opts.AllowedEmails, logger)
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/api/dashboard", s.withSecurityHeaders(s.withAuth(s.handleDashboard)))
	mux.HandleFunc("/api/dashboard/export", s.withSecurityHeaders(s.withAuth(s.handleExport)))
	mux.HandleFunc("/api/dashboard/brands", s.withSecurityHeaders(s.withAuth(s.handleBrands)))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics.Handler())
	}

	return s
}

// startCacheCleanup periodically evicts expired response cache entries.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.respCache.CleanExpired(); cleaned > 0 {
				s.log.Debug("response cache cleanup", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup routines before shutting down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		s.log.DebugContext(ctx, "request started",
			log.FieldRequestID, requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if !s.rateLimiter.allow(clientIP) {
			s.log.WarnContext(ctx, "rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(r.URL.Path, fmt.Sprintf("%d", rw.statusCode)).Inc()
		}
		s.log.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
