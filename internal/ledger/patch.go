package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Patch is a partial update. Nil slots are left untouched.
type Patch struct {
	Amount      *decimal.Decimal
	Kind        *Kind
	Timestamp   *time.Time
	Description *string
	Tags        *[]string
	Recurring   *bool
	AutoLabeled *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Amount == nil && p.Kind == nil && p.Timestamp == nil &&
		p.Description == nil && p.Tags == nil && p.Recurring == nil && p.AutoLabeled == nil
}

// Apply writes every set slot onto r.
func (p Patch) Apply(r *Record) {
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	if p.Timestamp != nil {
		r.Timestamp = *p.Timestamp
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Tags != nil {
		r.Tags = append([]string{}, (*p.Tags)...)
	}
	if p.Recurring != nil {
		r.Recurring = *p.Recurring
	}
	if p.AutoLabeled != nil {
		r.AutoLabeled = *p.AutoLabeled
	}
}
