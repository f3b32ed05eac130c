package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"expenso/internal/archive"
	"expenso/internal/core"
	applog "expenso/internal/log"
	"expenso/internal/report"
)

type runContext struct {
	*globals
	out    io.Writer
	logger *applog.Logger
}

// exportFile accepts the /api/export download or a bare expense array.
type exportFile struct {
	Income   core.Money        `json:"income"`
	Expenses []core.RawExpense `json:"expenses"`
}

func (c *runContext) resolver() (report.CategoryResolver, error) {
	var rules []report.Rule
	if c.Rules != "" {
		var err error
		if rules, err = report.ParseRules(c.Rules); err != nil {
			return nil, err
		}
	}
	return report.NewResolver(c.Resolver, rules)
}

// load reads path and returns its valid records. Skipped ones are logged.
func (c *runContext) load(path string) ([]core.Expense, core.Money, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Money{}, err
	}

	var f exportFile
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &f.Expenses)
	} else {
		err = json.Unmarshal(trimmed, &f)
	}
	if err != nil {
		return nil, core.Money{}, fmt.Errorf("decode %s: %w", path, err)
	}

	records, issues := report.FromRaw(f.Expenses)
	for _, is := range issues {
		c.logger.Warn("Skipped record", applog.FieldError, is.String())
	}
	c.logger.Debug("Loaded export", "file", path, "valid", len(records), "skipped", len(issues))
	return records, f.Income, nil
}

type summaryCmd struct {
	File     string `arg help:"Export file."`
	Month    string `help:"Month to show as YYYY-MM."`
	Category string `help:"Category to show." default:"all"`
	Sort     string `help:"Sort field: date, amount, name or category." default:"date"`
	Order    string `help:"Sort order: asc or desc." default:"desc"`
}

func (cmd *summaryCmd) Run(c *runContext) error {
	p := report.DefaultParams()
	var err error
	if p.Month, err = report.ParseYearMonth(cmd.Month); err != nil {
		return err
	}
	if p.SortField, err = report.ParseSortField(cmd.Sort); err != nil {
		return err
	}
	if p.SortOrder, err = report.ParseSortOrder(cmd.Order); err != nil {
		return err
	}
	p.Category = cmd.Category

	r, err := c.resolver()
	if err != nil {
		return err
	}
	records, income, err := c.load(cmd.File)
	if err != nil {
		return err
	}
	d, err := report.BuildDashboard(records, income, p, r)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tNAME\tCATEGORY\tAMOUNT")
	for _, e := range d.Expenses {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Date.DayKey(), e.Name, e.Category, e.Amount)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Expenses\t%d\t\t%s\n", d.Count, d.Total)
	fmt.Fprintf(tw, "Income\t\t\t%s\n", d.Income)
	fmt.Fprintf(tw, "Balance\t\t\t%s\n", d.Balance)
	fmt.Fprintln(tw)
	for _, ct := range d.ByCategory {
		fmt.Fprintf(tw, "%s\t\t\t%s\n", ct.Category, ct.Total)
	}
	return tw.Flush()
}

type dailyCmd struct {
	File   string `arg help:"Export file."`
	Month  string `help:"Month to show as YYYY-MM."`
	Window int    `help:"Moving average window in days." default:"3"`
}

func (cmd *dailyCmd) Run(c *runContext) error {
	if cmd.Window < 1 {
		return fmt.Errorf("%w: window must be at least 1 day, got %d", report.ErrInvalidParams, cmd.Window)
	}
	p := report.DefaultParams()
	p.SortOrder = report.Ascending
	var err error
	if p.Month, err = report.ParseYearMonth(cmd.Month); err != nil {
		return err
	}

	records, _, err := c.load(cmd.File)
	if err != nil {
		return err
	}
	valid, _ := report.Sanitize(records)
	shown, err := report.FilterAndSort(valid, p)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCOUNT\tTOTAL\tAVERAGE")
	for _, pt := range report.MovingAverage(report.GroupByDay(shown), cmd.Window) {
		avg := "-"
		if pt.MovingAverage != nil {
			avg = pt.MovingAverage.String()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", pt.Date, pt.Count, pt.Total, avg)
	}
	return tw.Flush()
}

type csvCmd struct {
	File  string `arg help:"Export file."`
	Month string `required help:"Month to render as YYYY-MM."`
	Out   string `short:"o" help:"Output file. Defaults to stdout."`
}

func (cmd *csvCmd) Run(c *runContext) error {
	month, err := report.ParseYearMonth(cmd.Month)
	if err != nil {
		return err
	}
	r, err := c.resolver()
	if err != nil {
		return err
	}
	records, income, err := c.load(cmd.File)
	if err != nil {
		return err
	}
	ov, err := report.BuildMonthOverview(records, income, month, r)
	if err != nil {
		return err
	}

	p := report.DefaultParams()
	p.Month = month
	p.SortOrder = report.Ascending
	valid, _ := report.Sanitize(records)
	rows, err := report.FilterAndSort(valid, p)
	if err != nil {
		return err
	}

	w := c.out
	if cmd.Out != "" {
		f, err := os.Create(cmd.Out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return archive.RenderCSV(w, ov, rows)
}
