package command

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// OpType is the kind of change an operation makes.
type OpType string

const (
	OpAdd    OpType = "ADD"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
)

// Operation is one normalized instruction. Nil pointer fields were not present in
// the model output.
type Operation struct {
	Index       int              `json:"index"`
	Type        OpType           `json:"type"`
	ID          string           `json:"id,omitempty"`
	Filter      *TargetFilter    `json:"filter,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Kind        *ledger.Kind     `json:"kind,omitempty"`
	Timestamp   *time.Time       `json:"timestamp,omitempty"`
	Description *string          `json:"description,omitempty"`
	Tags        *[]string        `json:"tags,omitempty"`
	Recurring   *bool            `json:"recurring,omitempty"`
}

// TargetFilter selects the records an UPDATE or DELETE applies to.
type TargetFilter struct {
	Date                *time.Time  `json:"date,omitempty"`
	Kind                ledger.Kind `json:"kind,omitempty"`
	DescriptionContains string      `json:"description_contains,omitempty"`
	Tags                []string    `json:"tags,omitempty"`
}

// IsEmpty reports whether f has no criteria. An empty filter selects nothing.
func (f TargetFilter) IsEmpty() bool {
	return f.Date == nil && f.Kind == "" && f.DescriptionContains == "" && len(f.Tags) == 0
}

// LedgerFilter converts f into a store filter; a date becomes a whole-day window.
func (f TargetFilter) LedgerFilter() ledger.Filter {
	lf := ledger.Filter{
		Kind:        f.Kind,
		Description: f.DescriptionContains,
		Tags:        f.Tags,
	}
	if f.Date != nil {
		lf = lf.OnDay(*f.Date)
	}
	return lf
}

// CoercionWarning records a field that could not be read and was replaced by a default.
type CoercionWarning struct {
	Operation int    `json:"operation"`
	Field     string `json:"field"`
	Input     string `json:"input"`
	Applied   string `json:"applied"`
}

func (w CoercionWarning) String() string {
	return fmt.Sprintf("operation %d: %s %q read as %s", w.Operation, w.Field, w.Input, w.Applied)
}

var (
	amountPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	dateLayouts   = []string{"2006-1-2", "2006/1/2", "2006.1.2"}

	kindTokens = map[string]ledger.Kind{
		"income":  ledger.KindIncome,
		"in":      ledger.KindIncome,
		"credit":  ledger.KindIncome,
		"收入":      ledger.KindIncome,
		"入账":      ledger.KindIncome,
		"expense": ledger.KindExpense,
		"out":     ledger.KindExpense,
		"debit":   ledger.KindExpense,
		"spend":   ledger.KindExpense,
		"支出":      ledger.KindExpense,
		"消费":      ledger.KindExpense,
	}
)

// normalizer turns loosely typed model output into Operations, collecting warnings.
type normalizer struct {
	now      time.Time
	warnings []CoercionWarning
	index    int
}

// Normalize converts raw model operations into typed ones. It never fails: malformed
// fields fall back to zero, now or EXPENSE and are reported as warnings.
func Normalize(raw []map[string]interface{}, now time.Time) ([]Operation, []CoercionWarning) {
	n := &normalizer{now: now}
	ops := make([]Operation, 0, len(raw))
	for i, item := range raw {
		n.index = i
		ops = append(ops, n.operation(item))
	}
	return ops, n.warnings
}

func (n *normalizer) operation(item map[string]interface{}) Operation {
	op := Operation{Index: n.index}

	rawType, _ := firstField(item, "type", "op", "action")
	op.Type = OpType(strings.ToUpper(strings.TrimSpace(toString(rawType))))

	if v, ok := firstField(item, "transaction_id", "id"); ok {
		op.ID = strings.TrimSpace(toString(v))
	}

	if v, ok := firstField(item, "amount"); ok {
		amount := n.amount("amount", v)
		op.Amount = &amount
	}
	if v, ok := firstField(item, "transaction_type", "tx_type", "kind"); ok {
		kind := n.kind("transaction_type", v)
		op.Kind = &kind
	}
	if v, ok := firstField(item, "date", "timestamp"); ok {
		ts := n.date("date", v)
		op.Timestamp = &ts
	}
	if v, ok := firstField(item, "description"); ok {
		desc := toString(v)
		op.Description = &desc
	}
	if v, ok := firstField(item, "tags"); ok {
		tags := toStrings(v)
		op.Tags = &tags
	}
	if v, ok := firstField(item, "recurring", "is_recurring"); ok {
		if b, isBool := v.(bool); isBool {
			op.Recurring = &b
		}
	}

	if v, ok := firstField(item, "filter"); ok {
		if m, isMap := v.(map[string]interface{}); isMap {
			f := n.filter(m)
			op.Filter = &f
		}
	}

	return op
}

func (n *normalizer) filter(m map[string]interface{}) TargetFilter {
	var f TargetFilter
	if v, ok := firstField(m, "date"); ok {
		d := n.date("filter.date", v)
		f.Date = &d
	}
	if v, ok := firstField(m, "transaction_type", "tx_type", "kind"); ok {
		f.Kind = n.kind("filter.transaction_type", v)
	}
	if v, ok := firstField(m, "description_contains", "description"); ok {
		f.DescriptionContains = toString(v)
	}
	if v, ok := firstField(m, "tags"); ok {
		f.Tags = toStrings(v)
	}
	return f
}

func (n *normalizer) amount(field string, v interface{}) decimal.Decimal {
	if d, ok := CoerceAmount(v); ok {
		return d
	}
	n.warn(field, v, "0")
	return decimal.Zero
}

func (n *normalizer) kind(field string, v interface{}) ledger.Kind {
	if k, ok := NormalizeKind(toString(v)); ok {
		return k
	}
	n.warn(field, v, string(ledger.KindExpense))
	return ledger.KindExpense
}

func (n *normalizer) date(field string, v interface{}) time.Time {
	if t, ok := ParseDate(toString(v), n.now.Location()); ok {
		return t
	}
	n.warn(field, v, n.now.Format(time.RFC3339))
	return n.now
}

func (n *normalizer) warn(field string, input interface{}, applied string) {
	n.warnings = append(n.warnings, CoercionWarning{
		Operation: n.index,
		Field:     field,
		Input:     toString(input),
		Applied:   applied,
	})
}

// CoerceAmount reads a number, or the first signed decimal inside a decorated
// string such as "¥45.50" or "36.5元".
func CoerceAmount(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(x.String()); err == nil {
			return d, true
		}
		return coerceAmountString(x.String())
	case float64:
		return decimal.NewFromFloat(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	case string:
		return coerceAmountString(x)
	}
	return decimal.Zero, false
}

func coerceAmountString(s string) (decimal.Decimal, bool) {
	match := amountPattern.FindString(s)
	if match == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeKind maps a case-insensitive income or expense token to a Kind.
func NormalizeKind(token string) (ledger.Kind, bool) {
	k, ok := kindTokens[strings.ToLower(strings.TrimSpace(token))]
	return k, ok
}

// ParseDate tries each supported date layout in loc, then full timestamps.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := ledger.ParseTimestampIn(s, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// firstField returns the first present, non-null value among keys.
func firstField(m map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toStrings(v interface{}) []string {
	out := []string{}
	switch x := v.(type) {
	case []interface{}:
		for _, item := range x {
			if s := strings.TrimSpace(toString(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.FieldsFunc(x, func(r rune) bool { return r == ',' || r == '，' }) {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
