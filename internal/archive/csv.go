package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"expenso/internal/core"
)

// RenderCSV writes a monthly report: a summary block, the category
// breakdown, the daily totals and then every expense of the month.
func RenderCSV(w io.Writer, ov core.MonthOverview, records []core.Expense) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Monthly Expense Report"},
		{"Month", ov.Month},
		{},
		{"SUMMARY"},
		{"Total Spent", ov.Total.String()},
		{"Total Transactions", strconv.Itoa(ov.Count)},
		{"Income", ov.Income.String()},
		{"Balance", ov.Income.Sub(ov.Total).String()},
		{},
	}

	if len(ov.ByCategory) > 0 {
		rows = append(rows, []string{"CATEGORY BREAKDOWN"}, []string{"Category", "Amount", "Percentage"})
		for _, ct := range ov.ByCategory {
			rows = append(rows, []string{ct.Category.String(), ct.Total.String(), percentage(ct.Total, ov.Total)})
		}
		rows = append(rows, []string{})
	}

	if len(ov.ByDay) > 0 {
		rows = append(rows, []string{"DAILY TOTALS"}, []string{"Date", "Amount", "Transactions"})
		for _, d := range ov.ByDay {
			rows = append(rows, []string{d.Date, d.Total.String(), strconv.Itoa(d.Count)})
		}
		rows = append(rows, []string{})
	}

	if len(records) > 0 {
		rows = append(rows, []string{"DETAILED TRANSACTIONS"}, []string{"Date", "Name", "Category", "Amount"})
		for _, e := range records {
			cat := e.Category
			if cat.IsBlank() {
				cat = core.Uncategorized
			}
			rows = append(rows, []string{e.Date.DayKey(), e.Name, cat.String(), e.Amount.String()})
		}
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func percentage(part, whole core.Money) string {
	if whole.IsZero() {
		return "0.0%"
	}
	return part.Decimal().Div(whole.Decimal()).Shift(2).StringFixed(1) + "%"
}
