// Package bigquery exports ledger records to a BigQuery table for analysis.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/rs/zerolog"
)

// RecordRepository provides the warehouse operations the exporter needs.
type RecordRepository interface {
	// InsertRecords inserts a batch of rows.
	InsertRecords(ctx context.Context, rows []*RecordRow) error

	// ExportedIDs returns the set of record ids already in the table.
	ExportedIDs(ctx context.Context) (map[string]bool, error)

	// QueryRecordsByDateRange returns rows whose record date is within the range.
	QueryRecordsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*RecordRow, error)
}

// BigQueryRecordRepository is the RecordRepository backed by BigQuery.
// It holds a shared client to avoid creating a connection per operation.
type BigQueryRecordRepository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryRecordRepository creates a client for projectID.
func NewBigQueryRecordRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRecordRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRecordRepository: creating client: %w", err)
	}
	return &BigQueryRecordRepository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRecordRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertRecords delegates to InsertRecordsWithClient.
func (r *BigQueryRecordRepository) InsertRecords(ctx context.Context, rows []*RecordRow) error {
	return InsertRecordsWithClient(ctx, r.client, r.projectID, r.datasetID, rows)
}

// ExportedIDs delegates to ExportedIDsWithClient.
func (r *BigQueryRecordRepository) ExportedIDs(ctx context.Context) (map[string]bool, error) {
	return ExportedIDsWithClient(ctx, r.client, r.projectID, r.datasetID)
}

// QueryRecordsByDateRange delegates to QueryRecordsByDateRangeWithClient.
func (r *BigQueryRecordRepository) QueryRecordsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]*RecordRow, error) {
	return QueryRecordsByDateRangeWithClient(ctx, r.client, r.projectID, r.datasetID, startDate, endDate)
}

// EnsureSchema applies pending migrations to the dataset.
func (r *BigQueryRecordRepository) EnsureSchema(ctx context.Context, appliedBy string, log zerolog.Logger) (int, error) {
	return EnsureSchemaWithClient(ctx, r.client, r.projectID, r.datasetID, appliedBy, log)
}

var _ RecordRepository = (*BigQueryRecordRepository)(nil)

// ExportResult summarizes one Export call.
type ExportResult struct {
	Exported int
	Skipped  int
}

// Exporter appends ledger records that are not yet in the warehouse.
type Exporter struct {
	repo      RecordRepository
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// DefaultBatchSize is the number of rows sent per insert call.
const DefaultBatchSize = 500

// NewExporter returns an Exporter writing through repo.
func NewExporter(repo RecordRepository, log zerolog.Logger) *Exporter {
	return &Exporter{
		repo:      repo,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		log:       log,
	}
}

// Export inserts every record whose id is not already exported. Records
// edited after export are not re-sent; the table is append-only.
func (e *Exporter) Export(ctx context.Context, records []ledger.Record) (ExportResult, error) {
	var res ExportResult

	exported, err := e.repo.ExportedIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("Export: %w", err)
	}

	now := e.now().UTC()
	var rows []*RecordRow
	for _, r := range records {
		if exported[r.ID] {
			res.Skipped++
			continue
		}
		rows = append(rows, NewRecordRow(r, now))
	}

	for start := 0; start < len(rows); start += e.batchSize {
		end := start + e.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := e.repo.InsertRecords(ctx, rows[start:end]); err != nil {
			return res, fmt.Errorf("Export: batch at %d: %w", start, err)
		}
		res.Exported += end - start
		e.log.Debug().Int("rows", end-start).Msg("Inserted record batch")
	}

	e.log.Info().
		Int("exported", res.Exported).
		Int("skipped", res.Skipped).
		Msg("BigQuery export complete")

	return res, nil
}
