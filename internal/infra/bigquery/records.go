package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// RecordRow is one ledger record in the records table.
type RecordRow struct {
	RecordID string `bigquery:"record_id"` // REQUIRED

	RecordDate  civil.Date `bigquery:"record_date"`  // REQUIRED, local calendar day
	RecordedTS  time.Time  `bigquery:"recorded_ts"`  // REQUIRED
	Amount      *big.Rat   `bigquery:"amount"`       // REQUIRED NUMERIC
	Kind        string     `bigquery:"kind"`         // REQUIRED STRING
	Description string     `bigquery:"description"`  // REQUIRED STRING
	Recurring   bool       `bigquery:"recurring"`    // REQUIRED BOOL
	AutoLabeled bool       `bigquery:"auto_labeled"` // REQUIRED BOOL

	Tags []string `bigquery:"tags"` // REPEATED STRING

	ExportedTS time.Time              `bigquery:"exported_ts"` // REQUIRED
	UpdatedTS  bigquery.NullTimestamp `bigquery:"updated_ts"`  // NULLABLE
}

// NewRecordRow converts a ledger record for export.
func NewRecordRow(r ledger.Record, exportedAt time.Time) *RecordRow {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return &RecordRow{
		RecordID:    r.ID,
		RecordDate:  civil.DateOf(r.Timestamp),
		RecordedTS:  r.Timestamp,
		Amount:      r.Amount.Rat(),
		Kind:        string(r.Kind),
		Description: r.Description,
		Recurring:   r.Recurring,
		AutoLabeled: r.AutoLabeled,
		Tags:        tags,
		ExportedTS:  exportedAt,
	}
}

// Record converts a row back into a ledger record.
func (row *RecordRow) Record() ledger.Record {
	amount := decimal.Zero
	if row.Amount != nil {
		if d, err := decimal.NewFromString(row.Amount.FloatString(9)); err == nil {
			amount = d
		}
	}
	return ledger.Record{
		ID:          row.RecordID,
		Amount:      amount,
		Kind:        ledger.Kind(row.Kind),
		Timestamp:   row.RecordedTS,
		Description: row.Description,
		Tags:        row.Tags,
		Recurring:   row.Recurring,
		AutoLabeled: row.AutoLabeled,
	}
}
