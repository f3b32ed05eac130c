package http

import (
	"bytes"
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"expenso/internal/archive"
	"expenso/internal/auth"
	"expenso/internal/core"
	"expenso/internal/report"
	"expenso/internal/services"
	"expenso/internal/users"
)

// handleDashboard serves the filtered, sorted expense table with its
// summary boxes.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := report.ParseParams(r.URL.Query())
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	d, err := s.expenses.Dashboard(r.Context(), auth.UserIDFromContext(r.Context()), p)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().JSON(d).Write(w)
}

// handleReports serves the trend view from the report cache. Writes by the
// same user invalidate it.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	opts, err := parseTrendOptions(r.URL.Query())
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	if opts.WindowDays == 0 {
		opts.WindowDays = s.reportWindow
	}

	trend, hit, err := s.reports.Get(r.Context(), trendCacheKey(userID, opts), func(ctx context.Context) (report.Trend, error) {
		return s.expenses.Trend(ctx, userID, opts)
	})
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}

	cacheStatus := "MISS"
	if hit {
		cacheStatus = "HIT"
		atomic.AddInt64(&s.appMetrics.cacheHits, 1)
	} else {
		atomic.AddInt64(&s.appMetrics.cacheMisses, 1)
	}
	NewResponse().Header("X-Cache", cacheStatus).JSON(trend).Write(w)
}

// handleMonthCSV renders one month as the archive CSV.
func (s *Server) handleMonthCSV(w http.ResponseWriter, r *http.Request) {
	month, err := report.ParseYearMonth(r.PathValue("month"))
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	if month.IsZero() {
		BadRequestError("month is required").Write(w)
		return
	}

	ov, records, err := s.expenses.MonthReport(r.Context(), auth.UserIDFromContext(r.Context()), month)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	var buf bytes.Buffer
	if err := archive.RenderCSV(&buf, ov, records); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().
		Raw("text/csv; charset=utf-8", buf.Bytes()).
		Attachment("expenses_" + month.String() + ".csv").
		Write(w)
}

func (s *Server) handleListArchives(w http.ResponseWriter, r *http.Request) {
	archives, err := s.expenses.Archives(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	NewResponse().JSON(archives).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string][]core.Category{"categories": core.Categories()}).Write(w)
}

// handleExport loads the account and its data concurrently and serves them
// as a downloadable JSON file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var (
		u   users.User
		exp services.Export
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		u, err = s.users.Get(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		exp, err = s.expenses.Export(ctx, users.User{ID: userID})
		return err
	})
	if err := g.Wait(); err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	exp.User = u

	NewResponse().
		Attachment("expense_data_" + exp.ExportDate.Format(time.DateOnly) + ".json").
		JSON(exp).
		Write(w)
}
