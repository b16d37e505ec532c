package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{"", BackendJSON, BackendSQLite} {
		t.Run("backend="+backend, func(t *testing.T) {
			dir := t.TempDir()
			p, err := Open(backend, filepath.Join(dir, "ledger.json"), filepath.Join(dir, "ledger.db"))
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer p.Close()

			rec := ledger.NewRecord(decimal.NewFromInt(7), ledger.KindExpense, "tea", "food")
			if err := p.Save(ctx, []ledger.Record{rec}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := p.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(got) != 1 || got[0].ID != rec.ID || !got[0].Amount.Equal(rec.Amount) {
				t.Errorf("Load() = %+v", got)
			}
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open("postgres", "a.json", "a.db"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
