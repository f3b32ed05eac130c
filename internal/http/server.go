// Package http serves the expense tracker JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"expenso/internal/auth"
	"expenso/internal/cache"
	applog "expenso/internal/log"
	"expenso/internal/middleware/ratelimit"
	"expenso/internal/middleware/security"
	"expenso/internal/middleware/trace"
	"expenso/internal/report"
	"expenso/internal/services"
	"expenso/internal/users"
)

const (
	reportCacheSize       = 500
	cacheCleanupInterval  = 10 * time.Minute
	defaultRequestTimeout = 7 * time.Second
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Expenses *services.ExpenseService
	Users    *users.Service
	Signer   *auth.Signer
	// Checks are pinged by /readyz, keyed by the name reported back.
	Checks map[string]Pinger
}

type Options struct {
	RateLimitPerMinute int
	CacheTTL           time.Duration
	RequestTimeout     time.Duration
	TrustedProxies     []string
	CORSOrigins        []string
	// ReportWindowDays is the moving average window when a reports
	// request names none.
	ReportWindowDays int
}

type Server struct {
	http.Server
	expenses *services.ExpenseService
	users    *users.Service
	signer   *auth.Signer
	checks   map[string]Pinger
	logger   *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	reportCache  *cache.LRUCache[report.Trend]
	reports      *cache.Loader[report.Trend]
	cacheManager *cache.Manager

	reportWindow int

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime        time.Time
	totalExpenses int64
	cacheHits     int64
	cacheMisses   int64
}

// NewServer wires routes and middleware. Call Shutdown to stop the
// background sweepers along with the listener.
func NewServer(addr string, deps Deps, opts Options, logger *applog.Logger) (*Server, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	reportCache := cache.NewLRUCache[report.Trend](reportCacheSize, opts.CacheTTL)
	manager := cache.NewManager(logger)
	manager.Register(reportCache)
	manager.StartCleanup(cacheCleanupInterval)

	s := &Server{
		expenses:         deps.Expenses,
		users:            deps.Users,
		signer:           deps.Signer,
		checks:           deps.Checks,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, logger),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		reportCache:      reportCache,
		reports:          cache.NewLoader[report.Trend](reportCache),
		cacheManager:     manager,
		reportWindow:     opts.ReportWindowDays,
		appMetrics:       appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = withTimeout(opts.RequestTimeout, handler)
	handler = security.CORS(opts.CORSOrigins)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("POST /api/auth/signup", s.limited(http.HandlerFunc(s.handleSignup)))
	mux.Handle("POST /api/auth/login", s.limited(http.HandlerFunc(s.handleLogin)))
	// legacy login path used by older clients
	mux.Handle("POST /login", s.limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /api/auth/me", s.protected(s.handleMe))

	mux.Handle("GET /api/expenses", s.protected(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.limited(s.protected(s.handleCreateExpense)))
	mux.Handle("PUT /api/expenses", s.limited(s.protected(s.handleReplaceExpenses)))
	mux.Handle("DELETE /api/expenses", s.limited(s.protected(s.handleClearExpenses)))
	mux.Handle("DELETE /api/expenses/{id}", s.limited(s.protected(s.handleDeleteExpense)))

	mux.Handle("GET /api/income", s.protected(s.handleGetIncome))
	mux.Handle("PUT /api/income", s.limited(s.protected(s.handleSetIncome)))

	mux.Handle("GET /api/dashboard", s.protected(s.handleDashboard))
	mux.Handle("GET /api/reports", s.protected(s.handleReports))
	mux.Handle("GET /api/reports/{month}/csv", s.protected(s.handleMonthCSV))
	mux.Handle("GET /api/archives", s.protected(s.handleListArchives))
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.Handle("GET /api/export", s.protected(s.handleExport))
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return auth.Require(s.signer)(h)
}

// limited applies the per-client rate limit. Only writes and auth
// attempts are limited.
func (s *Server) limited(h http.Handler) http.Handler {
	return s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP)(h)
}

func withTimeout(d time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// invalidateUser drops every cached report of userID after a write.
func (s *Server) invalidateUser(ctx context.Context, userID string) {
	if n := s.reports.Invalidate(userCachePrefix(userID)); n > 0 {
		s.logger.DebugContext(ctx, "Report cache invalidated", applog.FieldUserID, userID, applog.FieldCount, n)
	}
}

// Shutdown stops the background sweepers and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
