package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/config"
	infraBQ "github.com/dvloznov/ledger/internal/infra/bigquery"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/notionsync"
	"github.com/dvloznov/ledger/internal/storage"
	"github.com/rs/zerolog"
)

func runBackup(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	list := fs.Bool("list", false, "List local snapshots instead of creating one")
	fs.Parse(args)

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	mgr, closeMgr := newBackupManager(ctx, cfg, log, cfg.BackupBucket != "" && !*list)
	defer closeMgr()

	if *list {
		snaps, err := mgr.List()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list snapshots")
		}
		for _, s := range snaps {
			fmt.Printf("%s  %s  %d bytes\n", s.CreatedAt.Local().Format("2006-01-02 15:04:05"), s.Path, s.Size)
		}
		fmt.Printf("%d snapshot(s) in %s\n", len(snaps), mgr.Dir())
		return
	}

	p, err := storage.Open(cfg.Backend, cfg.DatabasePath, cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger storage")
	}
	defer p.Close()

	store := ledger.Open(ctx, p, log)
	snap, err := mgr.Create(ctx, store.List())
	if err != nil {
		log.Fatal().Err(err).Msg("Backup failed")
	}

	fmt.Printf("Backup written to %s\n", snap.Path)
	if snap.RemoteURI != "" {
		fmt.Printf("Uploaded to %s\n", snap.RemoteURI)
	}
}

func runRestore(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	from := fs.String("from", "", "Snapshot path or gs:// URI (defaults to the newest local snapshot)")
	fs.Parse(args)

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	mgr, closeMgr := newBackupManager(ctx, cfg, log, strings.HasPrefix(*from, "gs://"))
	defer closeMgr()

	records, err := mgr.Load(ctx, *from)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read snapshot")
	}

	a := openApp(ctx, cfg, log)
	defer a.Close()

	if _, err := mgr.Create(ctx, a.store.List()); err != nil {
		log.Warn().Err(err).Msg("Could not snapshot the current ledger before restoring")
	}

	if err := a.store.ReplaceAll(ctx, records); err != nil {
		log.Fatal().Err(err).Msg("Restore failed")
	}
	fmt.Printf("Restored %d record(s)\n", len(records))
}

func runExportBQ(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("export-bq", flag.ExitOnError)
	project := fs.String("project", cfg.BQProject, "GCP project ID (or set BQ_PROJECT)")
	dataset := fs.String("dataset", cfg.BQDataset, "BigQuery dataset ID (or set BQ_DATASET)")
	fs.Parse(args)

	if *project == "" {
		log.Fatal().Msg("Error: --project or BQ_PROJECT is required")
	}

	ctx, cancel := commandContext(log, 10*time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	repo, err := infraBQ.NewBigQueryRecordRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	if _, err := repo.EnsureSchema(ctx, "ledger-cli", log); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare BigQuery dataset")
	}

	res, err := infraBQ.NewExporter(repo, log).Export(ctx, a.store.List())
	if err != nil {
		log.Fatal().Err(err).Int("exported", res.Exported).Msg("Export failed")
	}
	fmt.Printf("Exported %d record(s), %d already present\n", res.Exported, res.Skipped)
}

func runSyncNotion(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("sync-notion", flag.ExitOnError)
	token := fs.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	dbID := fs.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (or set NOTION_DATABASE_ID)")
	dryRun := fs.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	fs.Parse(args)

	if *token == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *dbID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	ctx, cancel := commandContext(log, 10*time.Minute)
	defer cancel()

	a := openApp(ctx, cfg, log)
	defer a.Close()

	res, err := notionsync.SyncRecords(ctx, notionsync.NewNotionClient(*token), *dbID, a.store.List(), *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	prefix := ""
	if *dryRun {
		prefix = "[DRY RUN] "
	}
	fmt.Printf("%sCreated %d, updated %d, unchanged %d, archived %d, failed %d\n",
		prefix, res.Created, res.Updated, res.Unchanged, res.Archived, res.Failed)
	if res.Failed > 0 {
		os.Exit(1)
	}
}

func runMigrateBackend(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("migrate-backend", flag.ExitOnError)
	from := fs.String("from", storage.BackendJSON, "Source backend: json or sqlite")
	to := fs.String("to", storage.BackendSQLite, "Target backend: json or sqlite")
	force := fs.Bool("force", false, "Overwrite a target that already holds records")
	fs.Parse(args)

	if *from == *to {
		log.Fatal().Msg("Error: --from and --to must differ")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	src, err := storage.Open(*from, cfg.DatabasePath, cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open source backend")
	}
	defer src.Close()

	dst, err := storage.Open(*to, cfg.DatabasePath, cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open target backend")
	}
	defer dst.Close()

	n, err := migrateBackend(ctx, src, dst, *force)
	if err != nil {
		log.Fatal().Err(err).Str("from", *from).Str("to", *to).Msg("Migration failed")
	}
	fmt.Printf("Copied %d record(s) from %s to %s\n", n, *from, *to)
}
