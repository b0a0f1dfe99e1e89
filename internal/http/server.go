// Package http serves the cost ledger as a JSON API.
package http

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"costmanager/internal/core"
	"costmanager/internal/log"
	"costmanager/internal/middleware/trace"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxBodySize           = 64 << 10
)

// CostService is the ledger as seen by the HTTP layer.
type CostService interface {
	AddCost(ctx context.Context, in core.CostInput) (core.CostRecord, error)
	GetReport(ctx context.Context, year, month int, currency core.Currency) (core.Report, error)
	CategoryTotals(ctx context.Context, year, month int, currency core.Currency) ([]core.CategoryTotal, error)
	YearMonthlyTotals(ctx context.Context, year int, currency core.Currency) ([]core.MonthTotal, error)
	Rates() map[core.Currency]float64
	SetRatesJSON(raw []byte)
	RefreshRatesFrom(ctx context.Context, url string) error
}

// Server is an http.Server wired to a CostService.
type Server struct {
	http.Server

	svc            CostService
	logger         *log.Logger
	tracer         *trace.Middleware
	rateLimiter    *rateLimiter
	security       *securityMetrics
	requestTimeout time.Duration
	ready          func(context.Context) error
	now            func() time.Time
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRequestTimeout bounds the context of every request.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// WithReadiness sets the check behind /readyz.
func WithReadiness(check func(context.Context) error) Option {
	return func(s *Server) { s.ready = check }
}

// WithWriteLimit sets how many write requests a client may make per window.
// Non-positive values keep the defaults of 60 per minute.
func WithWriteLimit(n int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimiter.stop()
		s.rateLimiter = newRateLimiter(n, window)
	}
}

// WithNow sets the clock used for default report periods.
func WithNow(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc CostService, opts ...Option) *Server {
	s := &Server{
		svc:            svc,
		logger:         log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP),
		tracer:         trace.NewMiddleware(extractClientIP),
		rateLimiter:    newRateLimiter(defaultWriteLimit, defaultWriteWindow),
		security:       &securityMetrics{},
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/costs", s.handleCosts)
	mux.HandleFunc("/reports", s.handleReport)
	mux.HandleFunc("/reports/categories", s.handleCategoryTotals)
	mux.HandleFunc("/reports/yearly", s.handleYearlyTotals)
	mux.HandleFunc("/rates", s.handleRates)
	mux.HandleFunc("/rates/refresh", s.handleRefreshRates)

	var handler http.Handler = mux
	handler = s.withTimeout(handler)
	handler = s.withSecurity(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(s.logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Shutdown stops accepting requests, drains in-flight ones and stops the
// rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	s.rateLimiter.stop()
	return s.Server.Shutdown(ctx)
}

// withSecurity sets security headers, logs probing requests and rate limits writes.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.security) {
			log.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		setSecurityHeaders(w)

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			if ok, retryAfter := s.rateLimiter.allow(clientIP, s.security); !ok {
				log.FromContext(ctx).WarnContext(ctx, "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					"retry_after", retryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
