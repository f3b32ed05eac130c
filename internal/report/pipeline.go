package report

import (
	"fmt"
	"strings"
	"time"

	"expenso/internal/core"
)

// DefaultLookbackDays is how far back the trend report reaches.
const DefaultLookbackDays = 60

type (
	// Dashboard is the expense table with its summary boxes.
	Dashboard struct {
		Month      string               `json:"month,omitempty"`
		Category   string               `json:"category"`
		SortField  SortField            `json:"sort"`
		SortOrder  SortOrder            `json:"order"`
		Expenses   []core.Expense       `json:"expenses"`
		Count      int                  `json:"count"`
		Total      core.Money           `json:"total"`
		Income     core.Money           `json:"income"`
		Balance    core.Money           `json:"balance"`
		ByCategory []core.CategoryTotal `json:"byCategory"`
		Warnings   []Issue              `json:"warnings,omitempty"`
	}

	// TrendOptions configure BuildTrend.
	TrendOptions struct {
		// Category filters on the resolved category, case-insensitively.
		// Empty or "all" keeps everything.
		Category     string
		LookbackDays int
		WindowDays   int
		Resolver     CategoryResolver
	}

	// Slice is one wedge of the income versus expenses pie.
	Slice struct {
		Name  string     `json:"name"`
		Value core.Money `json:"value"`
	}

	// Trend is the reports view: a daily series with its moving average
	// over the lookback period, plus category and pie breakdowns.
	Trend struct {
		From       string               `json:"from"`
		To         string               `json:"to"`
		Category   string               `json:"category"`
		WindowDays int                  `json:"windowDays"`
		Daily      []DailyPoint         `json:"daily"`
		Total      core.Money           `json:"total"`
		ByCategory []core.CategoryTotal `json:"byCategory"`
		Pie        []Slice              `json:"pie"`
		Categories []string             `json:"categories"`
		Warnings   []Issue              `json:"warnings,omitempty"`
	}
)

// BuildDashboard filters and sorts records, then totals what is shown.
// The category filter applies to the resolved category, case-insensitively,
// so it agrees with the ByCategory buckets. The balance is income minus the
// shown total.
func BuildDashboard(records []core.Expense, income core.Money, p Params, r CategoryResolver) (Dashboard, error) {
	valid, issues := Sanitize(records)
	label := categoryLabel(p.Category)
	selected := inCategory(valid, label, r)
	q := p
	q.Category = AllCategories
	shown, err := FilterAndSort(selected, q)
	if err != nil {
		return Dashboard{}, err
	}
	total := TotalAmount(shown)
	return Dashboard{
		Month:      p.Month.String(),
		Category:   label,
		SortField:  p.SortField,
		SortOrder:  p.SortOrder,
		Expenses:   shown,
		Count:      len(shown),
		Total:      total,
		Income:     income,
		Balance:    income.Sub(total),
		ByCategory: GroupByCategory(shown, r),
		Warnings:   issues,
	}, nil
}

// Since keeps records dated at or after cutoff.
func Since(records []core.Expense, cutoff time.Time) []core.Expense {
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if !e.Date.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// BuildTrend builds the reports view as of now.
func BuildTrend(records []core.Expense, income core.Money, opts TrendOptions, now time.Time) (Trend, error) {
	if opts.LookbackDays == 0 {
		opts.LookbackDays = DefaultLookbackDays
	}
	if opts.WindowDays == 0 {
		opts.WindowDays = DefaultWindowDays
	}
	if opts.LookbackDays < 1 {
		return Trend{}, fmt.Errorf("%w: lookback must be at least 1 day, got %d", ErrInvalidParams, opts.LookbackDays)
	}
	if opts.WindowDays < 1 {
		return Trend{}, fmt.Errorf("%w: window must be at least 1 day, got %d", ErrInvalidParams, opts.WindowDays)
	}

	valid, issues := Sanitize(records)
	cutoff := now.AddDate(0, 0, -opts.LookbackDays)
	recent := Since(valid, cutoff)

	label := categoryLabel(opts.Category)
	selected := inCategory(recent, label, opts.Resolver)

	total := TotalAmount(selected)
	return Trend{
		From:       cutoff.Format(time.DateOnly),
		To:         now.Format(time.DateOnly),
		Category:   label,
		WindowDays: opts.WindowDays,
		Daily:      MovingAverage(GroupByDay(selected), opts.WindowDays),
		Total:      total,
		ByCategory: GroupByCategory(selected, opts.Resolver),
		Pie: []Slice{
			{Name: "Income", Value: income},
			{Name: "Total Expenses", Value: total},
		},
		Categories: categoryOptions(recent, opts.Resolver),
		Warnings:   issues,
	}, nil
}

// categoryOptions lists "all" followed by each resolved category once, in
// order of first occurrence.
func categoryOptions(records []core.Expense, r CategoryResolver) []string {
	out := []string{AllCategories}
	for _, ct := range GroupByCategory(records, r) {
		out = append(out, string(ct.Category))
	}
	return out
}

// inCategory keeps records whose resolved category equals label, ignoring
// case. AllCategories keeps everything.
func inCategory(records []core.Expense, label string, r CategoryResolver) []core.Expense {
	if label == AllCategories {
		return records
	}
	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if strings.EqualFold(string(resolve(r, e)), label) {
			out = append(out, e)
		}
	}
	return out
}

func categoryLabel(c string) string {
	c = strings.TrimSpace(c)
	if c == "" || strings.EqualFold(c, AllCategories) {
		return AllCategories
	}
	return c
}

// BuildMonthOverview summarises one calendar month. Records outside the
// month and invalid ones are left out.
func BuildMonthOverview(records []core.Expense, income core.Money, month YearMonth, r CategoryResolver) (core.MonthOverview, error) {
	if month.IsZero() {
		return core.MonthOverview{}, fmt.Errorf("%w: month is required", ErrInvalidParams)
	}
	valid, _ := Sanitize(records)
	p := DefaultParams()
	p.Month = month
	p.SortOrder = Ascending
	shown, err := FilterAndSort(valid, p)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.MonthOverview{
		Month:      month.String(),
		Total:      TotalAmount(shown),
		Count:      len(shown),
		Income:     income,
		ByCategory: GroupByCategory(shown, r),
		ByDay:      GroupByDay(shown),
	}, nil
}
