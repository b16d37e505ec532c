package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/analytics"
	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/report"
	"github.com/rs/zerolog"
)

// windowFlags registers the shared --start/--end/--kind flags.
type windowFlags struct {
	start, end, kind *string
}

func addWindowFlags(fs *flag.FlagSet) windowFlags {
	return windowFlags{
		start: fs.String("start", "", "Earliest date, YYYY-MM-DD"),
		end:   fs.String("end", "", "Latest date, YYYY-MM-DD (inclusive)"),
		kind:  fs.String("kind", "", "income or expense"),
	}
}

func (w windowFlags) window(log zerolog.Logger) analytics.Window {
	start, end, err := parseRange(*w.start, *w.end)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid date range")
	}
	win := analytics.Window{Start: start, End: end}
	if *w.kind != "" {
		k, ok := command.NormalizeKind(*w.kind)
		if !ok {
			log.Fatal().Str("kind", *w.kind).Msg("Error: kind must be income or expense")
		}
		win.Kind = k
	}
	return win
}

func runSummary(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	wf := addWindowFlags(fs)
	fs.Parse(args)
	win := wf.window(log)

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	records := analytics.Filter(a.store.List(), win)
	if len(records) == 0 {
		fmt.Println("No records in range.")
		return
	}

	report.MonthlyTable(os.Stdout, analytics.Monthly(records))
	fmt.Println()
	report.TotalsTable(os.Stdout, analytics.Total(records))
}

func runTags(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("tags", flag.ExitOnError)
	wf := addWindowFlags(fs)
	suggest := fs.String("suggest", "", "Print suggested tags for this description instead of a summary")
	suggestKind := fs.String("suggest-kind", "", "Kind used with --suggest")
	fs.Parse(args)

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	if *suggest != "" {
		var kind ledger.Kind
		if *suggestKind != "" {
			k, ok := command.NormalizeKind(*suggestKind)
			if !ok {
				log.Fatal().Str("kind", *suggestKind).Msg("Error: kind must be income or expense")
			}
			kind = k
		}
		tags := a.tagger().Suggest(ctx, *suggest, kind)
		fmt.Println(strings.Join(tags, ", "))
		return
	}

	records := analytics.Filter(a.store.List(), wf.window(log))
	report.TagsTable(os.Stdout, analytics.Tags(records))
}

func runChart(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	wf := addWindowFlags(fs)
	by := fs.String("by", "month", "month or tag")
	out := fs.String("out", "", "Output PNG path (defaults to chart-<by>.png)")
	fs.Parse(args)
	win := wf.window(log)

	if *by != "month" && *by != "tag" {
		log.Fatal().Str("by", *by).Msg("Error: --by must be month or tag")
	}
	if *out == "" {
		*out = fmt.Sprintf("chart-%s.png", *by)
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	records := analytics.Filter(a.store.List(), win)

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Str("path", *out).Msg("Failed to create chart file")
	}

	if *by == "tag" {
		err = report.TagsChart(f, analytics.Tags(records))
	} else {
		err = report.MonthlyChart(f, analytics.Monthly(records))
	}
	f.Close()

	if err != nil {
		os.Remove(*out)
		if errors.Is(err, report.ErrNoData) {
			fmt.Println("No data to chart.")
			return
		}
		log.Fatal().Err(err).Msg("Failed to render chart")
	}
	fmt.Printf("Chart saved to: %s\n", *out)
}
