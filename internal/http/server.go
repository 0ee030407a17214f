package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Tracker is the application service behind the API
type Tracker interface {
	Entries(ctx context.Context) ([]core.Entry, error)
	Entry(ctx context.Context, id int64) (core.Entry, error)
	CreateEntry(ctx context.Context, f core.EntryFields) (core.Entry, error)
	PatchEntry(ctx context.Context, id int64, merge ledger.MergeFunc) (core.Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
	Totals(ctx context.Context, display core.Currency) (services.TotalsResult, error)
}

var _ Tracker = (*services.Tracker)(nil)

type Server struct {
	http.Server
	tracker         Tracker
	defaultCurrency core.Currency
	logger          *log.Logger

	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	mutations   atomic.Int64
	staleTotals atomic.Int64
	uptime      time.Time
}

// Options tunes the server middleware
type Options struct {
	RequestsPerMinute int
	TrustedProxies    []string // CIDRs trusted for forwarded client addresses
	Logger            *log.Logger
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, tracker Tracker, defaultCurrency core.Currency, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	ipResolver := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ipResolver.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s := &Server{
		tracker:         tracker,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		rateLimiter:     ratelimit.NewLimiter(ratelimit.Config{Limit: opts.RequestsPerMinute, Window: time.Minute}),
		traceMiddleware: trace.NewMiddleware(logger, ipResolver.ClientIP),
		appMetrics:      &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/currencies", s.handleCurrencies)
	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("PUT /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("GET /api/totals", s.handleTotals)

	limited := s.rateLimiter.Middleware(ipResolver.ClientIP, s.handleRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(headers.Middleware(limited(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
