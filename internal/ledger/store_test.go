package ledger

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MockPersister is a mock implementation of Persister for testing.
type MockPersister struct {
	LoadFunc func(ctx context.Context) ([]Record, error)
	SaveFunc func(ctx context.Context, records []Record) error

	saved [][]Record
}

func (m *MockPersister) Load(ctx context.Context) ([]Record, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil, nil
}

func (m *MockPersister) Save(ctx context.Context, records []Record) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, records); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, records)
	return nil
}

type recordingObserver struct {
	changes []Change
}

func (o *recordingObserver) RecordChanged(ctx context.Context, c Change) {
	o.changes = append(o.changes, c)
}

func newTestStore(p Persister) *Store {
	return Open(context.Background(), p, zerolog.New(io.Discard))
}

func TestStore_AddThenGet(t *testing.T) {
	p := &MockPersister{}
	s := newTestStore(p)
	ctx := context.Background()

	ts := time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC)
	in := Record{
		Amount:      decimal.RequireFromString("36.50"),
		Kind:        KindExpense,
		Timestamp:   ts,
		Description: "lunch",
		Tags:        []string{"food", "food"},
		Recurring:   true,
	}

	id, err := s.Add(ctx, in)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id == "" {
		t.Fatal("Add returned empty id")
	}

	got, ok := s.Get(id)
	if !ok {
		t.Fatalf("Get(%s) not found", id)
	}
	in.ID = id
	if !reflect.DeepEqual(got, in) {
		t.Errorf("Get = %+v, want %+v", got, in)
	}
	if len(p.saved) != 1 || len(p.saved[0]) != 1 {
		t.Errorf("expected one full save of one record, got %v", p.saved)
	}
}

func TestStore_AddDefaultsTimestamp(t *testing.T) {
	s := newTestStore(&MockPersister{})
	before := time.Now()

	id, err := s.Add(context.Background(), Record{Amount: decimal.NewFromInt(1), Kind: KindIncome})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got, _ := s.Get(id)
	if got.Timestamp.Before(before) {
		t.Errorf("timestamp %v was not defaulted to now", got.Timestamp)
	}
}

func TestStore_AddDuplicateID(t *testing.T) {
	s := newTestStore(&MockPersister{})
	ctx := context.Background()

	if _, err := s.Add(ctx, Record{ID: "a"}); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if _, err := s.Add(ctx, Record{ID: "a"}); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_SaveFailureKeepsState(t *testing.T) {
	boom := errors.New("disk full")
	p := &MockPersister{}
	s := newTestStore(p)
	ctx := context.Background()

	id, err := s.Add(ctx, Record{Description: "keep"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	p.SaveFunc = func(ctx context.Context, records []Record) error { return boom }

	if _, err := s.Add(ctx, Record{Description: "lost"}); !errors.Is(err, boom) {
		t.Errorf("Add error = %v, want %v", err, boom)
	}
	desc := "changed"
	if ok, err := s.Update(ctx, id, Patch{Description: &desc}); ok || !errors.Is(err, boom) {
		t.Errorf("Update = %v, %v; want false, %v", ok, err, boom)
	}
	if ok, err := s.Delete(ctx, id); ok || !errors.Is(err, boom) {
		t.Errorf("Delete = %v, %v; want false, %v", ok, err, boom)
	}

	all := s.List()
	if len(all) != 1 || all[0].Description != "keep" {
		t.Errorf("state changed after failed writes: %+v", all)
	}
}

func TestStore_LoadErrorDegradesToEmpty(t *testing.T) {
	s := newTestStore(&MockPersister{
		LoadFunc: func(ctx context.Context) ([]Record, error) {
			return nil, errors.New("invalid character")
		},
	})
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestStore_UpdateAppliesOnlySetFields(t *testing.T) {
	s := newTestStore(&MockPersister{})
	ctx := context.Background()

	id, _ := s.Add(ctx, Record{
		Amount:      decimal.NewFromInt(10),
		Kind:        KindExpense,
		Description: "coffee",
		Tags:        []string{"food"},
	})

	amount := decimal.RequireFromString("12.5")
	ok, err := s.Update(ctx, id, Patch{Amount: &amount})
	if err != nil || !ok {
		t.Fatalf("Update = %v, %v", ok, err)
	}

	got, _ := s.Get(id)
	if !got.Amount.Equal(amount) {
		t.Errorf("Amount = %s, want %s", got.Amount, amount)
	}
	if got.Description != "coffee" || !reflect.DeepEqual(got.Tags, []string{"food"}) {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	p := &MockPersister{}
	s := newTestStore(p)

	desc := "x"
	ok, err := s.Update(context.Background(), "nope", Patch{Description: &desc})
	if ok || err != nil {
		t.Errorf("Update = %v, %v; want false, nil", ok, err)
	}
	if len(p.saved) != 0 {
		t.Errorf("missing id should not persist, got %d saves", len(p.saved))
	}
}

func TestStore_DeleteMissingLeavesSize(t *testing.T) {
	s := newTestStore(&MockPersister{})
	ctx := context.Background()
	s.Add(ctx, Record{Description: "a"})
	s.Add(ctx, Record{Description: "b"})

	ok, err := s.Delete(ctx, "missing")
	if ok || err != nil {
		t.Errorf("Delete = %v, %v; want false, nil", ok, err)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestStore_DeleteKeepsOrder(t *testing.T) {
	s := newTestStore(&MockPersister{})
	ctx := context.Background()
	a, _ := s.Add(ctx, Record{Description: "a"})
	b, _ := s.Add(ctx, Record{Description: "b"})
	c, _ := s.Add(ctx, Record{Description: "c"})

	if ok, err := s.Delete(ctx, b); !ok || err != nil {
		t.Fatalf("Delete = %v, %v", ok, err)
	}

	all := s.List()
	if len(all) != 2 || all[0].ID != a || all[1].ID != c {
		t.Errorf("List after delete = %+v", all)
	}
}

func TestStore_ListIsSnapshot(t *testing.T) {
	s := newTestStore(&MockPersister{})
	id, _ := s.Add(context.Background(), Record{Description: "a", Tags: []string{"x"}})

	all := s.List()
	all[0].Description = "mutated"
	all[0].Tags[0] = "y"

	got, _ := s.Get(id)
	if got.Description != "a" || got.Tags[0] != "x" {
		t.Errorf("List returned shared state: %+v", got)
	}
}

func TestStore_Search(t *testing.T) {
	s := newTestStore(&MockPersister{})
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 5, d, 9, 0, 0, 0, time.UTC) }

	s.Add(ctx, Record{ID: "1", Amount: decimal.NewFromInt(20), Kind: KindExpense, Timestamp: day(1), Description: "Starbucks latte", Tags: []string{"food", "coffee"}})
	s.Add(ctx, Record{ID: "2", Amount: decimal.NewFromInt(3000), Kind: KindIncome, Timestamp: day(2), Description: "salary", Tags: []string{"salary"}})
	s.Add(ctx, Record{ID: "3", Amount: decimal.NewFromInt(55), Kind: KindExpense, Timestamp: day(3), Description: "taxi home", Tags: []string{"transport"}})

	start, end := day(2), day(3)
	minAmt, maxAmt := decimal.NewFromInt(21), decimal.NewFromInt(100)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "empty filter matches all", filter: Filter{}, want: []string{"1", "2", "3"}},
		{name: "date bounds inclusive", filter: Filter{Start: &start, End: &end}, want: []string{"2", "3"}},
		{name: "kind", filter: Filter{Kind: KindExpense}, want: []string{"1", "3"}},
		{name: "amount bounds", filter: Filter{MinAmount: &minAmt, MaxAmount: &maxAmt}, want: []string{"3"}},
		{name: "description case-insensitive", filter: Filter{Description: "STARBUCKS"}, want: []string{"1"}},
		{name: "all tags required", filter: Filter{Tags: []string{"food", "coffee"}}, want: []string{"1"}},
		{name: "missing tag", filter: Filter{Tags: []string{"food", "rent"}}, want: nil},
		{name: "conjunction", filter: Filter{Kind: KindIncome, Description: "taxi"}, want: nil},
		{name: "single day", filter: Filter{}.OnDay(day(3)), want: []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range s.Search(tt.filter) {
				got = append(got, r.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_ReplaceAll(t *testing.T) {
	s := newTestStore(&MockPersister{})
	ctx := context.Background()
	s.Add(ctx, Record{ID: "old"})

	if err := s.ReplaceAll(ctx, []Record{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("old record survived ReplaceAll")
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}

	if err := s.ReplaceAll(ctx, []Record{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("expected error for duplicate ids")
	}
}

func TestStore_NotifiesObservers(t *testing.T) {
	s := newTestStore(&MockPersister{})
	obs := &recordingObserver{}
	s.Observe(obs)
	ctx := context.Background()

	id, _ := s.Add(ctx, Record{Description: "a"})
	desc := "b"
	s.Update(ctx, id, Patch{Description: &desc})
	s.Delete(ctx, id)
	s.Delete(ctx, id)

	want := []ChangeType{ChangeAdded, ChangeUpdated, ChangeDeleted}
	if len(obs.changes) != len(want) {
		t.Fatalf("got %d changes, want %d", len(obs.changes), len(want))
	}
	for i, c := range obs.changes {
		if c.Type != want[i] {
			t.Errorf("change %d = %s, want %s", i, c.Type, want[i])
		}
	}
	if obs.changes[1].Record.Description != "b" {
		t.Errorf("update change carries %q, want %q", obs.changes[1].Record.Description, "b")
	}
}
