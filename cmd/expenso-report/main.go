// Command expenso-report prints dashboard, daily and monthly reports from
// an expenso export file without a running server.
package main

import (
	"os"

	"github.com/alecthomas/kong"

	applog "expenso/internal/log"
)

// globals holds options shared by every command
type globals struct {
	Resolver string `help:"Category resolver: field, name or rules." default:"field"`
	Rules    string `help:"Keyword rules as keyword=Category pairs separated by ';'." env:"CATEGORY_RULES"`
	Verbose  bool   `short:"v" help:"Log skipped records."`
}

var cli struct {
	Globals globals `embed`

	Summary summaryCmd `cmd help:"Print the filtered expense table with totals and category breakdown."`
	Daily   dailyCmd   `cmd help:"Print daily totals with their moving average."`
	CSV     csvCmd     `cmd name:"csv" help:"Write one month as the archive CSV."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("expenso-report"),
		kong.Description("Offline reports over an expenso export file."),
	)

	level := applog.ParseLevel("warn")
	if cli.Globals.Verbose {
		level = applog.ParseLevel("debug")
	}
	logger := applog.New(applog.Config{Level: level, Component: applog.ComponentReport, Output: os.Stderr})

	err := ctx.Run(&runContext{globals: &cli.Globals, out: os.Stdout, logger: logger})
	ctx.FatalIfErrorf(err)
}
