package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// timestampLayouts are tried in order when decoding a persisted timestamp.
// Layouts without a zone are read in local time.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

type recordJSON struct {
	ID          string      `json:"id"`
	Amount      json.Number `json:"amount"`
	Kind        Kind        `json:"kind"`
	Timestamp   string      `json:"timestamp"`
	Description string      `json:"description"`
	Recurring   bool        `json:"recurring"`
	AutoLabeled bool        `json:"auto_labeled"`
	Tags        []string    `json:"tags"`
}

// recordInJSON also accepts the key names used by older ledger files.
type recordInJSON struct {
	ID              string          `json:"id"`
	LegacyID        string          `json:"transaction_id"`
	Amount          decimal.Decimal `json:"amount"`
	Kind            Kind            `json:"kind"`
	LegacyKind      Kind            `json:"transaction_type"`
	Timestamp       string          `json:"timestamp"`
	LegacyDate      string          `json:"date"`
	Description     string          `json:"description"`
	Recurring       *bool           `json:"recurring"`
	LegacyRecurring *bool           `json:"is_recurring"`
	AutoLabeled     bool            `json:"auto_labeled"`
	Tags            []string        `json:"tags"`
}

// MarshalJSON encodes the amount as a bare JSON number and the timestamp as RFC 3339.
func (r Record) MarshalJSON() ([]byte, error) {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(recordJSON{
		ID:          r.ID,
		Amount:      json.Number(r.Amount.String()),
		Kind:        r.Kind,
		Timestamp:   r.Timestamp.Format(time.RFC3339Nano),
		Description: r.Description,
		Recurring:   r.Recurring,
		AutoLabeled: r.AutoLabeled,
		Tags:        tags,
	})
}

// UnmarshalJSON decodes both the current layout and the legacy key names.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordInJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := Record{
		ID:          firstNonEmpty(in.ID, in.LegacyID),
		Amount:      in.Amount,
		Kind:        in.Kind,
		Description: in.Description,
		AutoLabeled: in.AutoLabeled,
		Tags:        in.Tags,
	}
	if out.Kind == "" {
		out.Kind = in.LegacyKind
	}
	if in.Recurring != nil {
		out.Recurring = *in.Recurring
	} else if in.LegacyRecurring != nil {
		out.Recurring = *in.LegacyRecurring
	}

	if raw := firstNonEmpty(in.Timestamp, in.LegacyDate); raw != "" {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return fmt.Errorf("record %s: %w", out.ID, err)
		}
		out.Timestamp = ts
	}

	*r = out
	return nil
}

// ParseTimestamp reads an RFC 3339 timestamp, falling back to zone-less ISO layouts
// read in local time.
func ParseTimestamp(s string) (time.Time, error) {
	return ParseTimestampIn(s, time.Local)
}

// ParseTimestampIn is ParseTimestamp with zone-less layouts read in loc.
func ParseTimestampIn(s string, loc *time.Location) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
