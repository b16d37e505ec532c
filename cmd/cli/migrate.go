package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/ledger/internal/ledger"
)

var errTargetNotEmpty = errors.New("target backend already holds records, use --force to overwrite")

// migrateBackend copies every record from src to dst and returns the count.
func migrateBackend(ctx context.Context, src, dst ledger.Persister, force bool) (int, error) {
	records, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrateBackend: load source: %w", err)
	}

	if !force {
		existing, err := dst.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("migrateBackend: inspect target: %w", err)
		}
		if len(existing) > 0 {
			return 0, fmt.Errorf("migrateBackend: %w (%d records)", errTargetNotEmpty, len(existing))
		}
	}

	if err := dst.Save(ctx, records); err != nil {
		return 0, fmt.Errorf("migrateBackend: save target: %w", err)
	}
	return len(records), nil
}
