package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/rs/zerolog"
)

func runAsk(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Apply without asking for confirmation")
	dryRun := fs.Bool("dry-run", false, "Only show what would change")
	fs.Parse(args)

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		log.Fatal().Msg(`Usage: cli ask [--yes] [--dry-run] "spent 12 on lunch today"`)
	}

	ctx, cancel := commandContext(log, cfg.LLMTimeout+time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	interp := a.interpreter()
	parsed, err := interp.Parse(ctx, text)
	if err != nil {
		var perr *llm.ParseError
		switch {
		case errors.Is(err, llm.ErrDisabled):
			log.Fatal().Msg("AI commands are disabled, set AI_ENABLED=true")
		case errors.Is(err, llm.ErrNotConfigured):
			log.Fatal().Err(err).Msg("AI commands are not configured")
		case errors.As(err, &perr):
			log.Fatal().Err(err).Str("raw_response", perr.Raw).Msg("Model reply could not be read")
		default:
			log.Fatal().Err(err).Msg("Model call failed")
		}
	}

	for _, w := range parsed.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if len(parsed.Operations) == 0 {
		fmt.Println("Nothing to do.")
		return
	}

	plan := interp.Plan(parsed.Operations)
	printPlan(os.Stdout, parsed.Operations, plan)

	if *dryRun {
		return
	}
	if !*yes && needsConfirmation(plan) && !confirm(os.Stdin, os.Stdout) {
		fmt.Println("Aborted.")
		return
	}

	res := interp.Apply(ctx, parsed.Operations)
	fmt.Printf("Added %d, updated %d, deleted %d\n", len(res.Added), len(res.Updated), len(res.Deleted))
	for _, f := range res.Failures {
		fmt.Printf("operation %d (%s) failed: %s\n", f.Operation, f.Type, f.Error)
	}
}

func printPlan(w io.Writer, ops []command.Operation, plan []command.PlanItem) {
	for i, item := range plan {
		op := ops[i]
		switch item.Type {
		case command.OpAdd:
			desc := ""
			if op.Description != nil {
				desc = *op.Description
			}
			amount := "0"
			if op.Amount != nil {
				amount = op.Amount.StringFixed(2)
			}
			fmt.Fprintf(w, "%d. ADD %s %q\n", item.Operation, amount, desc)
		default:
			fmt.Fprintf(w, "%d. %s %d record(s)", item.Operation, item.Type, item.Count)
			if len(item.Targets) > 0 {
				fmt.Fprintf(w, ": %s", strings.Join(item.Targets, ", "))
			}
			fmt.Fprintln(w)
		}
	}
}

// needsConfirmation reports whether any UPDATE or DELETE would touch existing records.
func needsConfirmation(plan []command.PlanItem) bool {
	for _, item := range plan {
		if item.Type != command.OpAdd && item.Count > 0 {
			return true
		}
	}
	return false
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "Apply these changes? [y/N] ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
