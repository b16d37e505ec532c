package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/events"
	infraBQ "github.com/dvloznov/ledger/internal/infra/bigquery"
	"github.com/dvloznov/ledger/internal/logger"
	"github.com/dvloznov/ledger/internal/mirror"
	"github.com/dvloznov/ledger/internal/notionsync"
	"github.com/dvloznov/ledger/internal/storage"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	persister, err := storage.Open(cfg.Backend, cfg.DatabasePath, cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open ledger storage")
	}
	defer persister.Close()

	var opts []mirror.Option
	if cfg.NotionEnabled() {
		opts = append(opts, mirror.WithNotion(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID))
		log.Info().Str("database_id", cfg.NotionDatabaseID).Msg("Notion mirror enabled")
	}
	if cfg.BQProject != "" {
		repo, err := infraBQ.NewBigQueryRecordRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
		}
		defer repo.Close()
		if _, err := repo.EnsureSchema(ctx, "ledger-worker", log); err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare BigQuery dataset")
		}
		opts = append(opts, mirror.WithExporter(infraBQ.NewExporter(repo, log)))
		log.Info().Str("project", cfg.BQProject).Str("dataset", cfg.BQDataset).Msg("BigQuery export enabled")
	}

	m := mirror.New(persister, log, opts...)
	if !m.Enabled() {
		log.Fatal().Msg("Nothing to mirror: set NOTION_TOKEN and NOTION_DATABASE_ID or BQ_PROJECT")
	}

	log.Info().Msg("Starting worker service")

	// Catch up on anything written while the worker was down.
	if err := m.Sync(ctx); err != nil {
		log.Error().Err(err).Msg("Startup sync failed")
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		consumer, err := events.DialConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize AMQP consumer")
		}
		defer consumer.Close()

		g.Go(func() error {
			return consumer.Consume(gctx, m.HandleRecordEvent)
		})
	} else {
		log.Info().Dur("interval", cfg.MirrorInterval).Msg("No AMQP_URL, mirroring on the periodic schedule only")
	}

	g.Go(func() error {
		return m.Run(gctx, cfg.MirrorInterval)
	})

	log.Info().Msg("Worker service started, waiting for record events...")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Worker stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Worker service exited")
}
