package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Filter is a conjunctive predicate over records. Zero-valued fields match everything.
type Filter struct {
	// Start and End are inclusive bounds on Timestamp.
	Start *time.Time
	End   *time.Time

	Kind Kind

	// MinAmount and MaxAmount are inclusive bounds on Amount.
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal

	// Description is a case-insensitive substring.
	Description string

	// Tags must all be present on the record.
	Tags []string
}

// Match reports whether r satisfies every criterion of f.
func (f Filter) Match(r Record) bool {
	if f.Start != nil && r.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && r.Timestamp.After(*f.End) {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.MinAmount != nil && r.Amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && r.Amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	if f.Description != "" && !strings.Contains(strings.ToLower(r.Description), strings.ToLower(f.Description)) {
		return false
	}
	return r.HasTags(f.Tags)
}

// OnDay restricts f to the calendar day containing t.
func (f Filter) OnDay(t time.Time) Filter {
	start, end := DayRange(t)
	f.Start = &start
	f.End = &end
	return f
}
