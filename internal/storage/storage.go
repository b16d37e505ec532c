// Package storage selects the ledger persister for a configured backend.
package storage

import (
	"fmt"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/storage/jsonfile"
	"github.com/dvloznov/ledger/internal/storage/sqlite"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Persister is a ledger.Persister that may hold resources.
type Persister interface {
	ledger.Persister
	Close() error
}

type jsonPersister struct{ *jsonfile.File }

func (jsonPersister) Close() error { return nil }

// Open returns the persister for backend. jsonPath is used by the json backend
// and sqlitePath by the sqlite backend; the sqlite schema is migrated on open.
func Open(backend, jsonPath, sqlitePath string) (Persister, error) {
	switch backend {
	case BackendJSON, "":
		return jsonPersister{jsonfile.New(jsonPath)}, nil
	case BackendSQLite:
		repo, err := sqlite.Open(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("Open: unknown backend %q", backend)
	}
}
