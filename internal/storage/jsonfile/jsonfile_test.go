package jsonfile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestFile_LoadMissing(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "none.json"))

	records, err := f.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.json")
	f := New(path)
	ctx := context.Background()

	in := []ledger.Record{
		{ID: "a", Amount: decimal.RequireFromString("50"), Kind: ledger.KindExpense, Timestamp: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC), Description: "lunch", Tags: []string{"food"}},
		{ID: "b", Amount: decimal.RequireFromString("3000"), Kind: ledger.KindIncome, Timestamp: time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC), Description: "salary"},
	}

	if err := f.Save(ctx, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := f.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("Load = %+v", out)
	}
	if !out[1].Amount.Equal(in[1].Amount) || !out[0].Timestamp.Equal(in[0].Timestamp) {
		t.Errorf("fields lost in round trip: %+v", out)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestFile_InvalidSyntaxYieldsEmptyStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	if err := os.WriteFile(path, []byte(`[{"id": "a", "amount": `), 0644); err != nil {
		t.Fatal(err)
	}

	f := New(path)
	if _, err := f.Load(context.Background()); err == nil {
		t.Error("expected decode error from persister")
	}

	s := ledger.Open(context.Background(), f, zerolog.New(io.Discard))
	if s.Len() != 0 {
		t.Errorf("store Len = %d, want 0", s.Len())
	}
}

func TestEncode_NilIsEmptyArray(t *testing.T) {
	data, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != "[]\n" {
		t.Errorf("Encode(nil) = %q", data)
	}
}
