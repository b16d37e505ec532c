package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger/internal/api/handlers"
	"github.com/dvloznov/ledger/internal/backup"
	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/events"
	"github.com/dvloznov/ledger/internal/gcsuploader"
	"github.com/dvloznov/ledger/internal/jobs"
	"github.com/dvloznov/ledger/internal/jobs/inmemory"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/dvloznov/ledger/internal/logger"
	"github.com/dvloznov/ledger/internal/storage"
	"github.com/dvloznov/ledger/internal/tagging"
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

	// Storage
	persister, err := storage.Open(cfg.Backend, cfg.DatabasePath, cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open ledger storage")
	}
	defer persister.Close()

	store := ledger.NewStore(persister, log)
	n := store.Load(ctx)
	log.Info().Str("backend", cfg.Backend).Int("records", n).Msg("Ledger loaded")

	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn().Err(err).Msg("Record events disabled")
		} else {
			defer pub.Close()
			store.Observe(pub)
		}
	}

	if cfg.BackupEnabled {
		runStartupBackup(ctx, cfg, store)
	}

	// Model-backed components
	model := llm.NewGemini(cfg.LLM())
	if err := cfg.LLM().Check(); err != nil {
		log.Info().Err(err).Msg("AI commands unavailable")
	}
	tagger := tagging.New(cfg.Tagging(), model, log)
	interp := command.New(model, store, tagger, cfg.Command(), log)

	// Command jobs
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(cfg.WorkerCount),
		inmemory.WithLogger(log),
	)

	router := handlers.NewRouter(handlers.Deps{
		Store:     store,
		Tagger:    tagger,
		AutoTag:   cfg.AIAutoTag,
		Commands:  interp,
		Publisher: jobQueue,
		Jobs:      jobStore,
		Log:       log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("workers", cfg.WorkerCount).Msg("Starting job worker")
		return jobQueue.Start(gctx, jobs.NewCommandHandler(interp, log))
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		return jobQueue.Close()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Server exited")
}

// runStartupBackup writes a snapshot when the newest one is older than the interval.
func runStartupBackup(ctx context.Context, cfg *config.Config, store *ledger.Store) {
	log := logger.FromContext(ctx)
	opts := []backup.Option{
		backup.WithKeep(cfg.BackupKeep),
		backup.WithInterval(time.Duration(cfg.BackupIntervalDays) * 24 * time.Hour),
	}

	if cfg.BackupBucket != "" {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("GCS unavailable, snapshots stay local")
		} else {
			defer svc.Close()
			opts = append(opts, backup.WithBucket(cfg.BackupBucket, svc))
		}
	}

	created, err := backup.NewManager(cfg.BackupPath, log, opts...).MaybeBackup(ctx, store.List())
	if err != nil {
		log.Warn().Err(err).Msg("Automatic backup failed")
		return
	}
	if created {
		log.Info().Msg("Startup backup written")
	}
}
