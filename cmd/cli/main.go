package main

import (
	"fmt"
	"os"

	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "add":
		runAdd(cfg, log, args)
	case "list":
		runList(cfg, log, args)
	case "update":
		runUpdate(cfg, log, args)
	case "delete":
		runDelete(cfg, log, args)
	case "summary":
		runSummary(cfg, log, args)
	case "tags":
		runTags(cfg, log, args)
	case "chart":
		runChart(cfg, log, args)
	case "ask":
		runAsk(cfg, log, args)
	case "backup":
		runBackup(cfg, log, args)
	case "restore":
		runRestore(cfg, log, args)
	case "export-bq":
		runExportBQ(cfg, log, args)
	case "sync-notion":
		runSyncNotion(cfg, log, args)
	case "migrate-backend":
		runMigrateBackend(cfg, log, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  add              Record an income or expense")
	fmt.Println("  list             List and search records")
	fmt.Println("  update           Change fields of a record by ID")
	fmt.Println("  delete           Delete a record by ID")
	fmt.Println("  summary          Monthly summary and totals")
	fmt.Println("  tags             Spending by tag, or suggest tags for a description")
	fmt.Println("  chart            Render a monthly or tag bar chart as PNG")
	fmt.Println("  ask              Apply a natural-language instruction")
	fmt.Println("  backup           Write a snapshot of the ledger")
	fmt.Println("  restore          Replace the ledger with a snapshot")
	fmt.Println("  export-bq        Append new records to BigQuery")
	fmt.Println("  sync-notion      Mirror records into a Notion database")
	fmt.Println("  migrate-backend  Copy all records between the json and sqlite backends")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}
