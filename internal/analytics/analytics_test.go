package analytics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

func rec(kind ledger.Kind, amount string, ts time.Time, tags ...string) ledger.Record {
	return ledger.Record{
		Amount:    decimal.RequireFromString(amount),
		Kind:      kind,
		Timestamp: ts,
		Tags:      tags,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sample() []ledger.Record {
	return []ledger.Record{
		rec(ledger.KindExpense, "50", date(2024, 1, 3), "food"),
		rec(ledger.KindIncome, "3000", date(2024, 1, 10), "salary"),
		rec(ledger.KindExpense, "1200", date(2024, 2, 1), "housing"),
		rec(ledger.KindExpense, "30.5", date(2023, 12, 31), "food", "transport"),
		rec(ledger.KindIncome, "500", date(2024, 2, 20)),
		rec("REFUND", "10", date(2024, 2, 21)),
	}
}

func TestTotal_Scenario(t *testing.T) {
	records := []ledger.Record{
		{Amount: decimal.NewFromInt(50), Kind: ledger.KindExpense, Description: "lunch", Timestamp: date(2024, 3, 1), Tags: []string{"food"}},
		{Amount: decimal.NewFromInt(3000), Kind: ledger.KindIncome, Description: "salary", Timestamp: date(2024, 3, 15), Tags: []string{"salary"}},
	}

	got := Total(records)
	if !got.Income.Equal(decimal.NewFromInt(3000)) || !got.Expense.Equal(decimal.NewFromInt(50)) ||
		!got.Net.Equal(decimal.NewFromInt(2950)) || got.Count != 2 {
		t.Errorf("Total = %+v", got)
	}
}

func TestTags_IncomeCountedButNotSummed(t *testing.T) {
	records := []ledger.Record{
		rec(ledger.KindExpense, "200", date(2024, 3, 1), "food"),
		rec(ledger.KindIncome, "1000", date(2024, 3, 2), "salary"),
	}

	got := Tags(records)
	if len(got) != 2 {
		t.Fatalf("got %d tag rows, want 2", len(got))
	}
	if got[0].Label != "food" || !got[0].Amount.Equal(decimal.NewFromInt(200)) || got[0].Count != 1 {
		t.Errorf("food row = %+v", got[0])
	}
	if got[1].Label != "salary" || !got[1].Amount.IsZero() || got[1].Count != 1 {
		t.Errorf("salary row = %+v", got[1])
	}
}

func TestTags_Untagged(t *testing.T) {
	got := Tags([]ledger.Record{rec(ledger.KindExpense, "5", date(2024, 1, 1))})
	if len(got) != 1 || got[0].Label != UntaggedLabel {
		t.Errorf("Tags = %+v", got)
	}
}

func TestTags_MultiTagAndUnknownKind(t *testing.T) {
	got := Tags(sample())

	byLabel := make(map[string]TagSummary)
	for _, ts := range got {
		byLabel[ts.Label] = ts
	}

	if food := byLabel["food"]; !food.Amount.Equal(decimal.RequireFromString("80.5")) || food.Count != 2 {
		t.Errorf("food = %+v", food)
	}
	if tr := byLabel["transport"]; !tr.Amount.Equal(decimal.RequireFromString("30.5")) || tr.Count != 1 {
		t.Errorf("transport = %+v", tr)
	}
	// REFUND is not INCOME, so it sums as an expense.
	if u := byLabel[UntaggedLabel]; !u.Amount.Equal(decimal.NewFromInt(10)) || u.Count != 2 {
		t.Errorf("untagged = %+v", u)
	}

	for i := 1; i < len(got); i++ {
		if got[i].Amount.GreaterThan(got[i-1].Amount) {
			t.Errorf("not sorted descending at %d: %+v", i, got)
		}
	}
}

func TestMonthly_SortedAndConserving(t *testing.T) {
	records := sample()
	got := Monthly(records)

	wantMonths := []string{"2023-12", "2024-01", "2024-02"}
	if len(got) != len(wantMonths) {
		t.Fatalf("got %d months, want %d", len(got), len(wantMonths))
	}
	for i, m := range got {
		if m.Month != wantMonths[i] {
			t.Errorf("month %d = %s, want %s", i, m.Month, wantMonths[i])
		}
		if !m.Net.Equal(m.Income.Sub(m.Expense)) {
			t.Errorf("%s net = %s", m.Month, m.Net)
		}
	}

	var income, expense decimal.Decimal
	count := 0
	for _, m := range got {
		income = income.Add(m.Income)
		expense = expense.Add(m.Expense)
		count += m.Count
	}
	total := Total(records)
	if !income.Equal(total.Income) || !expense.Equal(total.Expense) || count != len(records) {
		t.Errorf("monthly sums %s/%s/%d differ from totals %+v", income, expense, count, total)
	}
}

func TestSummaries_PermutationInvariant(t *testing.T) {
	base := sample()
	wantMonthly := Monthly(base)
	wantTags := tagMap(Tags(base))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]ledger.Record(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		gotMonthly := Monthly(shuffled)
		if len(gotMonthly) != len(wantMonthly) {
			t.Fatalf("monthly length changed under permutation")
		}
		for j := range gotMonthly {
			g, w := gotMonthly[j], wantMonthly[j]
			if g.Month != w.Month || !g.Income.Equal(w.Income) || !g.Expense.Equal(w.Expense) || g.Count != w.Count {
				t.Errorf("permutation %d month %d = %+v, want %+v", i, j, g, w)
			}
		}

		gotTags := tagMap(Tags(shuffled))
		for label, w := range wantTags {
			g := gotTags[label]
			if !g.Amount.Equal(w.Amount) || g.Count != w.Count {
				t.Errorf("permutation %d tag %s = %+v, want %+v", i, label, g, w)
			}
		}
	}
}

func TestFilter(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 1, 31)

	tests := []struct {
		name string
		w    Window
		want int
	}{
		{name: "no window", w: Window{}, want: 6},
		{name: "january", w: Window{Start: &start, End: &end}, want: 2},
		{name: "income only", w: Window{Kind: ledger.KindIncome}, want: 2},
		{name: "january expenses", w: Window{Start: &start, End: &end, Kind: ledger.KindExpense}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filter(sample(), tt.w); len(got) != tt.want {
				t.Errorf("Filter returned %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func tagMap(rows []TagSummary) map[string]TagSummary {
	m := make(map[string]TagSummary, len(rows))
	for _, r := range rows {
		m[r.Label] = r
	}
	return m
}
