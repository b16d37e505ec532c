// Package mirror keeps the Notion and BigQuery copies of the ledger in step
// with record events. Events only mark the mirror dirty; the sync itself
// always reads the full collection from storage, so a lost or duplicated
// message is repaired by the next run.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/ledger/internal/events"
	infraBQ "github.com/dvloznov/ledger/internal/infra/bigquery"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/logger"
	"github.com/dvloznov/ledger/internal/notionsync"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the mirror waits after an event before syncing.
const DefaultDebounce = 5 * time.Second

// Exporter appends records to the warehouse.
type Exporter interface {
	Export(ctx context.Context, records []ledger.Record) (infraBQ.ExportResult, error)
}

var _ Exporter = (*infraBQ.Exporter)(nil)

// Mirror pushes the stored ledger to Notion and BigQuery.
type Mirror struct {
	source   ledger.Persister
	notion   notionsync.NotionService
	notionDB string
	exporter Exporter
	debounce time.Duration
	pending  chan struct{}
	log      zerolog.Logger
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithNotion mirrors records into the Notion database dbID.
func WithNotion(client notionsync.NotionService, dbID string) Option {
	return func(m *Mirror) {
		m.notion = client
		m.notionDB = dbID
	}
}

// WithExporter appends new records to BigQuery.
func WithExporter(e Exporter) Option {
	return func(m *Mirror) { m.exporter = e }
}

// WithDebounce sets the delay between the first pending event and the sync.
func WithDebounce(d time.Duration) Option {
	return func(m *Mirror) { m.debounce = d }
}

// New returns a Mirror reading records from source.
func New(source ledger.Persister, log zerolog.Logger, opts ...Option) *Mirror {
	m := &Mirror{
		source:   source,
		debounce: DefaultDebounce,
		pending:  make(chan struct{}, 1),
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether at least one target is configured.
func (m *Mirror) Enabled() bool {
	return m.notion != nil || m.exporter != nil
}

// HandleRecordEvent marks the mirror dirty. It never fails, so the message is
// acknowledged; a missed sync is picked up by the periodic run.
func (m *Mirror) HandleRecordEvent(ctx context.Context, msg *events.RecordMessage) error {
	m.log.Debug().Str("event", msg.Event).Str("record_id", msg.RecordID).Msg("Record event received")
	select {
	case m.pending <- struct{}{}:
	default:
	}
	return nil
}

// Run syncs after each burst of events and every interval until ctx is done.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var debounced <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.pending:
			if debounced == nil {
				debounced = time.After(m.debounce)
			}
		case <-debounced:
			debounced = nil
			m.syncAndLog(ctx, "event")
		case <-ticker.C:
			m.syncAndLog(ctx, "periodic")
		}
	}
}

func (m *Mirror) syncAndLog(ctx context.Context, trigger string) {
	if err := m.Sync(ctx); err != nil {
		m.log.Error().Err(err).Str("trigger", trigger).Msg("Mirror sync failed")
	}
}

// Sync pushes the stored records to every configured target. A failing
// target does not stop the others.
func (m *Mirror) Sync(ctx context.Context) error {
	ctx = logger.WithContext(ctx, m.log)
	records, err := m.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("Sync: load records: %w", err)
	}

	var errs []error

	if m.notion != nil {
		res, err := notionsync.SyncRecords(ctx, m.notion, m.notionDB, records, false)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("notion: %w", err))
		case res.Failed > 0:
			errs = append(errs, fmt.Errorf("notion: %d page operation(s) failed", res.Failed))
		}
	}

	if m.exporter != nil {
		if _, err := m.exporter.Export(ctx, records); err != nil {
			errs = append(errs, fmt.Errorf("bigquery: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("Sync: %w", err)
	}

	m.log.Info().Int("records", len(records)).Msg("Mirror sync complete")
	return nil
}
