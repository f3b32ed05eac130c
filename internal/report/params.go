package report

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	SortByDate     SortField = "date"
	SortByAmount   SortField = "amount"
	SortByName     SortField = "name"
	SortByCategory SortField = "category"

	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"

	// AllCategories disables the category filter.
	AllCategories = "all"

	DefaultWindowDays = 3
)

type (
	SortField string
	SortOrder string

	// YearMonth selects a calendar month. The zero value selects nothing,
	// meaning no month filter.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	// Params are the user's current selection on a view. They are passed
	// explicitly into every aggregation.
	Params struct {
		Month      YearMonth
		Category   string
		SortField  SortField
		SortOrder  SortOrder
		WindowDays int
	}
)

var ErrInvalidParams = errors.New("invalid aggregation parameters")

// DefaultParams sorts newest first with no filters, as the dashboard opens.
func DefaultParams() Params {
	return Params{
		Category:   AllCategories,
		SortField:  SortByDate,
		SortOrder:  Descending,
		WindowDays: DefaultWindowDays,
	}
}

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByDate, SortByAmount, SortByName, SortByCategory:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown sort field %q", ErrInvalidParams, s)
	}
}

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case Ascending, Descending:
		return o, nil
	default:
		return "", fmt.Errorf("%w: unknown sort order %q", ErrInvalidParams, s)
	}
}

// ParseYearMonth parses "YYYY-MM". An empty string yields the zero value.
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return YearMonth{}, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: month must be YYYY-MM, got %q", ErrInvalidParams, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Previous returns the month before ym.
func (ym YearMonth) Previous() YearMonth {
	t := time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the UTC month containing t.
func MonthOf(t time.Time) YearMonth {
	t = t.UTC()
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Validate rejects anything a constrained UI could not have produced.
func (p Params) Validate() error {
	if _, err := ParseSortField(string(p.SortField)); err != nil {
		return err
	}
	if _, err := ParseSortOrder(string(p.SortOrder)); err != nil {
		return err
	}
	if p.WindowDays < 1 {
		return fmt.Errorf("%w: window must be at least 1 day, got %d", ErrInvalidParams, p.WindowDays)
	}
	if !p.Month.IsZero() && (p.Month.Month < time.January || p.Month.Month > time.December) {
		return fmt.Errorf("%w: month out of range", ErrInvalidParams)
	}
	return nil
}

func (p Params) filtersCategory() bool {
	c := strings.TrimSpace(p.Category)
	return c != "" && !strings.EqualFold(c, AllCategories)
}

// ParseParams reads month, category, sort, order and window from a query
// string. Missing keys keep their defaults.
func ParseParams(q url.Values) (Params, error) {
	p := DefaultParams()

	month, err := ParseYearMonth(q.Get("month"))
	if err != nil {
		return Params{}, err
	}
	p.Month = month

	if c := strings.TrimSpace(q.Get("category")); c != "" {
		p.Category = c
	}
	if s := q.Get("sort"); s != "" {
		if p.SortField, err = ParseSortField(s); err != nil {
			return Params{}, err
		}
	}
	if o := q.Get("order"); o != "" {
		if p.SortOrder, err = ParseSortOrder(o); err != nil {
			return Params{}, err
		}
	}
	if w := q.Get("window"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil {
			return Params{}, fmt.Errorf("%w: window must be an integer, got %q", ErrInvalidParams, w)
		}
		p.WindowDays = n
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
