// Package report derives views from a list of expenses: the filtered and
// sorted table, category and daily totals, and the moving-average trend.
//
// Every function here is pure. Records and parameters come in as
// arguments, nothing is read from storage, and input slices are never
// modified. Sums are kept in integer cents; the only rounding happens when
// a moving average is divided out.
package report

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"expenso/internal/core"
)

// DailyPoint is a day of the trend series. MovingAverage is nil until the
// trailing window is full.
type DailyPoint struct {
	core.DailyTotal
	MovingAverage *core.Money `json:"movingAverage,omitempty"`
}

// FilterAndSort keeps records in p.Month and p.Category and orders them by
// p.SortField in p.SortOrder. The sort is stable, so ties keep input order.
func FilterAndSort(records []core.Expense, p Params) ([]core.Expense, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	out := make([]core.Expense, 0, len(records))
	for _, e := range records {
		if matches(e, p) {
			out = append(out, e)
		}
	}

	compare := comparator(p.SortField)
	if p.SortOrder == Descending {
		asc := compare
		compare = func(a, b core.Expense) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out, nil
}

func matches(e core.Expense, p Params) bool {
	if !p.Month.IsZero() && e.Date.YearMonth() != p.Month.String() {
		return false
	}
	if p.filtersCategory() {
		if categoryOf(e) != strings.TrimSpace(p.Category) {
			return false
		}
	}
	return true
}

func comparator(f SortField) func(a, b core.Expense) int {
	switch f {
	case SortByAmount:
		return func(a, b core.Expense) int { return cmp.Compare(a.Amount.Cents, b.Amount.Cents) }
	case SortByName:
		return func(a, b core.Expense) int { return foldCompare(a.Name, b.Name) }
	case SortByCategory:
		return func(a, b core.Expense) int { return foldCompare(categoryOf(a), categoryOf(b)) }
	default:
		return func(a, b core.Expense) int { return a.Date.Compare(b.Date.Time) }
	}
}

// categoryOf is the stored category as it is shown, with blank read as
// core.Uncategorized.
func categoryOf(e core.Expense) string {
	c := strings.TrimSpace(string(e.Category))
	if c == "" {
		return string(core.Uncategorized)
	}
	return c
}

func foldCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// TotalAmount sums the amounts. An empty slice totals zero.
func TotalAmount(records []core.Expense) core.Money {
	var total core.Money
	for _, e := range records {
		total = total.Add(e.Amount)
	}
	return total
}

// GroupByCategory totals records per category in order of first
// occurrence. A nil resolver uses each record's category field; blank
// results are bucketed as core.Uncategorized.
func GroupByCategory(records []core.Expense, r CategoryResolver) []core.CategoryTotal {
	index := make(map[core.Category]int)
	out := make([]core.CategoryTotal, 0)
	for _, e := range records {
		c := resolve(r, e)
		i, ok := index[c]
		if !ok {
			i = len(out)
			index[c] = i
			out = append(out, core.CategoryTotal{Category: c})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	return out
}

// GroupByDay totals records per calendar day, ascending by date. The day
// is read in each record's own location.
func GroupByDay(records []core.Expense) []core.DailyTotal {
	index := make(map[string]int)
	out := make([]core.DailyTotal, 0)
	for _, e := range records {
		day := e.Date.DayKey()
		i, ok := index[day]
		if !ok {
			i = len(out)
			index[day] = i
			out = append(out, core.DailyTotal{Date: day})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	slices.SortFunc(out, func(a, b core.DailyTotal) int { return strings.Compare(a.Date, b.Date) })
	return out
}

// MovingAverage attaches the trailing mean over window days to every point
// from index window-1 on, rounded half-up to the cent. A series shorter than
// the window, or a window below 1, comes back without averages.
func MovingAverage(days []core.DailyTotal, window int) []DailyPoint {
	out := make([]DailyPoint, len(days))
	for i, d := range days {
		out[i] = DailyPoint{DailyTotal: d}
	}
	if window < 1 || len(days) < window {
		return out
	}

	divisor := decimal.NewFromInt(int64(window))
	var sum int64
	for i, d := range days {
		sum += d.Total.Cents
		if i >= window {
			sum -= days[i-window].Total.Cents
		}
		if i < window-1 {
			continue
		}
		mean := decimal.New(sum, -2).Div(divisor).Round(2)
		avg := core.Money{Cents: mean.Shift(2).IntPart()}
		out[i].MovingAverage = &avg
	}
	return out
}
