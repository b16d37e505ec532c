package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/report"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func runAdd(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	amount := fs.String("amount", "", "Amount, e.g. 12.50 (required)")
	kind := fs.String("kind", "expense", "income or expense")
	desc := fs.String("desc", "", "Description")
	tags := fs.String("tags", "", "Comma-separated tags (suggested when empty)")
	date := fs.String("date", "", "Date or timestamp, defaults to now")
	recurring := fs.Bool("recurring", false, "Mark as a recurring transaction")
	fs.Parse(args)

	if *amount == "" {
		log.Fatal().Msg("Error: --amount is required")
	}
	value, ok := command.CoerceAmount(*amount)
	if !ok {
		log.Fatal().Str("amount", *amount).Msg("Error: invalid amount")
	}
	k, ok := command.NormalizeKind(*kind)
	if !ok {
		log.Fatal().Str("kind", *kind).Msg("Error: kind must be income or expense")
	}

	rec := ledger.Record{
		Amount:      value,
		Kind:        k,
		Description: *desc,
		Tags:        splitTags(*tags),
		Recurring:   *recurring,
	}
	if *date != "" {
		ts, ok := command.ParseDate(*date, time.Local)
		if !ok {
			log.Fatal().Str("date", *date).Msg("Error: invalid date")
		}
		rec.Timestamp = ts
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	if len(rec.Tags) == 0 && cfg.AIAutoTag {
		rec.Tags = a.tagger().Suggest(ctx, rec.Description, rec.Kind)
		rec.AutoLabeled = len(rec.Tags) > 0
	}

	id, err := a.store.Add(ctx, rec)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add record")
	}

	fmt.Printf("Added %s %s %s [%s]\n", id, rec.Kind, rec.Amount.StringFixed(2), strings.Join(rec.Tags, ", "))
}

func runList(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	start := fs.String("start", "", "Earliest date, YYYY-MM-DD")
	end := fs.String("end", "", "Latest date, YYYY-MM-DD (inclusive)")
	kind := fs.String("kind", "", "income or expense")
	query := fs.String("q", "", "Description substring")
	tags := fs.String("tags", "", "Comma-separated tags that must all be present")
	minAmount := fs.String("min", "", "Minimum amount")
	maxAmount := fs.String("max", "", "Maximum amount")
	limit := fs.Int("limit", 0, "Show only the last N matching records")
	fs.Parse(args)

	filter := ledger.Filter{Description: *query, Tags: splitTags(*tags)}

	var err error
	filter.Start, filter.End, err = parseRange(*start, *end)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid date range")
	}
	if *kind != "" {
		k, ok := command.NormalizeKind(*kind)
		if !ok {
			log.Fatal().Str("kind", *kind).Msg("Error: kind must be income or expense")
		}
		filter.Kind = k
	}
	filter.MinAmount = parseBound(log, "min", *minAmount)
	filter.MaxAmount = parseBound(log, "max", *maxAmount)

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	records := a.store.Search(filter)
	if *limit > 0 && len(records) > *limit {
		records = records[len(records)-*limit:]
	}

	report.RecordsTable(os.Stdout, records)
	fmt.Printf("%d record(s)\n", len(records))
}

func parseBound(log zerolog.Logger, name, s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatal().Err(err).Str(name, s).Msg("Error: invalid amount bound")
	}
	return &d
}

func runUpdate(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "Record ID (required)")
	amount := fs.String("amount", "", "New amount")
	kind := fs.String("kind", "", "New kind: income or expense")
	desc := fs.String("desc", "", "New description")
	tags := fs.String("tags", "", "New comma-separated tags")
	date := fs.String("date", "", "New date or timestamp")
	recurring := fs.String("recurring", "", "true or false")
	fs.Parse(args)

	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	// Only flags given on the command line become patch slots, so an explicit
	// empty --desc or --tags clears the field.
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var patch ledger.Patch
	if set["amount"] {
		v, ok := command.CoerceAmount(*amount)
		if !ok {
			log.Fatal().Str("amount", *amount).Msg("Error: invalid amount")
		}
		patch.Amount = &v
	}
	if set["kind"] {
		k, ok := command.NormalizeKind(*kind)
		if !ok {
			log.Fatal().Str("kind", *kind).Msg("Error: kind must be income or expense")
		}
		patch.Kind = &k
	}
	if set["desc"] {
		patch.Description = desc
	}
	if set["tags"] {
		t := splitTags(*tags)
		if t == nil {
			t = []string{}
		}
		manual := false
		patch.Tags = &t
		patch.AutoLabeled = &manual
	}
	if set["date"] {
		ts, ok := command.ParseDate(*date, time.Local)
		if !ok {
			log.Fatal().Str("date", *date).Msg("Error: invalid date")
		}
		patch.Timestamp = &ts
	}
	if set["recurring"] {
		r := strings.EqualFold(*recurring, "true") || *recurring == "1"
		patch.Recurring = &r
	}
	if patch.IsEmpty() {
		log.Fatal().Msg("Error: nothing to update")
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	ok, err := a.store.Update(ctx, *id, patch)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to update record")
	}
	if !ok {
		log.Fatal().Str("id", *id).Msg("Record not found")
	}
	fmt.Printf("Updated %s\n", *id)
}

func runDelete(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "Record ID (required)")
	fs.Parse(args)

	if *id == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	ok, err := a.store.Delete(ctx, *id)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to delete record")
	}
	if !ok {
		fmt.Printf("No record with id %s\n", *id)
		return
	}
	fmt.Printf("Deleted %s\n", *id)
}
