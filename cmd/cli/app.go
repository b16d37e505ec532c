package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/ledger/internal/backup"
	"github.com/dvloznov/ledger/internal/command"
	"github.com/dvloznov/ledger/internal/config"
	"github.com/dvloznov/ledger/internal/events"
	"github.com/dvloznov/ledger/internal/gcsuploader"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/llm"
	"github.com/dvloznov/ledger/internal/logger"
	"github.com/dvloznov/ledger/internal/storage"
	"github.com/dvloznov/ledger/internal/tagging"
	"github.com/rs/zerolog"
)

// app holds what every subcommand opens: the store and its observers.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	persister storage.Persister
	store     *ledger.Store
	events    *events.Publisher
	model     llm.Model
}

// openApp loads the configured ledger and takes a backup when one is due.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) *app {
	p, err := storage.Open(cfg.Backend, cfg.DatabasePath, cfg.SQLiteDBPath)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Backend).Msg("Failed to open ledger storage")
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		persister: p,
		store:     ledger.Open(ctx, p, log),
		model:     llm.NewGemini(cfg.LLM()),
	}

	if cfg.AMQPURL != "" {
		pub, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn().Err(err).Msg("Record events disabled")
		} else {
			a.events = pub
			a.store.Observe(pub)
		}
	}

	if cfg.BackupEnabled {
		mgr, closeMgr := newBackupManager(ctx, cfg, log, cfg.BackupBucket != "")
		if _, err := mgr.MaybeBackup(ctx, a.store.List()); err != nil {
			log.Warn().Err(err).Msg("Automatic backup failed")
		}
		closeMgr()
	}

	return a
}

func (a *app) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close AMQP connection")
		}
	}
	if err := a.persister.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close ledger storage")
	}
}

func (a *app) tagger() *tagging.Suggester {
	return tagging.New(a.cfg.Tagging(), a.model, a.log)
}

func (a *app) interpreter() *command.Interpreter {
	return command.New(a.model, a.store, a.tagger(), a.cfg.Command(), a.log)
}

// newBackupManager returns a manager for BACKUP_PATH. withStorage connects a
// GCS client; the returned func releases it.
func newBackupManager(ctx context.Context, cfg *config.Config, log zerolog.Logger, withStorage bool) (*backup.Manager, func()) {
	opts := []backup.Option{
		backup.WithKeep(cfg.BackupKeep),
		backup.WithInterval(time.Duration(cfg.BackupIntervalDays) * 24 * time.Hour),
	}
	closeFn := func() {}

	if withStorage {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("GCS unavailable, snapshots stay local")
		} else {
			closeFn = func() { svc.Close() }
			if cfg.BackupBucket != "" {
				opts = append(opts, backup.WithBucket(cfg.BackupBucket, svc))
			} else {
				opts = append(opts, backup.WithStorage(svc))
			}
		}
	}

	return backup.NewManager(cfg.BackupPath, log, opts...), closeFn
}

// commandContext returns a context carrying log, bounded by timeout.
func commandContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

// parseRange reads optional start and end dates. A date-only end covers the whole day.
func parseRange(start, end string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if start != "" {
		t, ok := command.ParseDate(start, time.Local)
		if !ok {
			return nil, nil, fmt.Errorf("invalid start date %q, use YYYY-MM-DD", start)
		}
		from = &t
	}
	if end != "" {
		t, ok := command.ParseDate(end, time.Local)
		if !ok {
			return nil, nil, fmt.Errorf("invalid end date %q, use YYYY-MM-DD", end)
		}
		if len(end) == len(time.DateOnly) {
			_, t = ledger.DayRange(t)
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, errors.New("end date must not be before start date")
	}
	return from, to, nil
}

// splitTags reads a comma-separated flag value.
func splitTags(s string) []string {
	return tagging.SplitLabels(s)
}
