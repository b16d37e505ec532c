package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies a record as money in or money out.
type Kind string

const (
	// KindIncome marks money received.
	KindIncome Kind = "INCOME"
	// KindExpense marks money spent.
	KindExpense Kind = "EXPENSE"
)

// IsIncome reports whether k is INCOME. Every other value, including unknown
// tokens loaded from disk, is treated as an expense by aggregation.
func (k Kind) IsIncome() bool {
	return k == KindIncome
}

// Record is a single income or expense transaction.
type Record struct {
	ID          string
	Amount      decimal.Decimal
	Kind        Kind
	Timestamp   time.Time
	Description string
	Tags        []string
	Recurring   bool
	AutoLabeled bool
}

// NewRecord builds a record with a fresh id and the current time.
func NewRecord(amount decimal.Decimal, kind Kind, description string, tags ...string) Record {
	return Record{
		ID:          uuid.New().String(),
		Amount:      amount,
		Kind:        kind,
		Timestamp:   time.Now(),
		Description: description,
		Tags:        append([]string(nil), tags...),
	}
}

// Clone returns a copy of r that shares no mutable state with it.
func (r Record) Clone() Record {
	c := r
	if r.Tags != nil {
		c.Tags = append(make([]string, 0, len(r.Tags)), r.Tags...)
	}
	return c
}

// HasTags reports whether r carries every label in tags.
func (r Record) HasTags(tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(r.Tags))
	for _, t := range r.Tags {
		have[t] = struct{}{}
	}
	for _, t := range tags {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// DayRange returns the first and last instant of the calendar day containing t,
// in t's location.
func DayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}
