// Package analytics derives summaries from a slice of records. Every function is
// pure: inputs are never modified and results do not depend on input order, except
// where noted for tag ties.
package analytics

import (
	"sort"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// UntaggedLabel groups records that carry no tags.
const UntaggedLabel = "untagged"

// monthLayout is the key format for MonthlySummary.Month.
const monthLayout = "2006-01"

// Window narrows records by time and kind. Zero fields match everything.
type Window struct {
	Start *time.Time
	End   *time.Time
	Kind  ledger.Kind
}

// MonthlySummary aggregates one calendar month.
type MonthlySummary struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// TagSummary aggregates one tag. Amount only sums expenses; Count covers every kind.
type TagSummary struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Totals aggregates a whole record set.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// Filter returns the records inside w, with the same semantics as the store's search.
func Filter(records []ledger.Record, w Window) []ledger.Record {
	f := ledger.Filter{Start: w.Start, End: w.End, Kind: w.Kind}
	var out []ledger.Record
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Monthly groups records by the calendar month of their timestamp, ascending.
func Monthly(records []ledger.Record) []MonthlySummary {
	byMonth := make(map[string]*MonthlySummary)
	for _, r := range records {
		key := r.Timestamp.Format(monthLayout)
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlySummary{Month: key}
			byMonth[key] = m
		}
		if r.Kind.IsIncome() {
			m.Income = m.Income.Add(r.Amount)
		} else {
			m.Expense = m.Expense.Add(r.Amount)
		}
		m.Count++
	}

	out := make([]MonthlySummary, 0, len(byMonth))
	for _, m := range byMonth {
		m.Net = m.Income.Sub(m.Expense)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// Tags groups records by tag, largest expense amount first. A record with several
// tags counts toward each. Ties keep the order in which labels were first seen.
func Tags(records []ledger.Record) []TagSummary {
	index := make(map[string]int)
	var out []TagSummary

	add := func(label string, r ledger.Record) {
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, TagSummary{Label: label})
		}
		if !r.Kind.IsIncome() {
			out[i].Amount = out[i].Amount.Add(r.Amount)
		}
		out[i].Count++
	}

	for _, r := range records {
		if len(r.Tags) == 0 {
			add(UntaggedLabel, r)
			continue
		}
		for _, tag := range r.Tags {
			add(tag, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	return out
}

// Total aggregates records into one row.
func Total(records []ledger.Record) Totals {
	var t Totals
	for _, r := range records {
		if r.Kind.IsIncome() {
			t.Income = t.Income.Add(r.Amount)
		} else {
			t.Expense = t.Expense.Add(r.Amount)
		}
		t.Count++
	}
	t.Net = t.Income.Sub(t.Expense)
	return t
}
