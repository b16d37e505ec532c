// Package sqlite persists the ledger in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Repository is a ledger.Persister backed by a SQLite file.
type Repository struct {
	db *sql.DB
}

// Open creates the database directory, opens the database and runs migrations.
func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements ledger.Persister.
func (r *Repository) Load(ctx context.Context) ([]ledger.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, amount, kind, timestamp, description, recurring, auto_labeled, tags
		FROM records
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("Load: query records: %w", err)
	}
	defer rows.Close()

	var out []ledger.Record
	for rows.Next() {
		var (
			rec                    ledger.Record
			amount, kind, ts, tags string
			recurring, autoLabeled bool
		)
		if err := rows.Scan(&rec.ID, &amount, &kind, &ts, &rec.Description, &recurring, &autoLabeled, &tags); err != nil {
			return nil, fmt.Errorf("Load: scan record: %w", err)
		}

		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("Load: record %s amount: %w", rec.ID, err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("Load: record %s timestamp: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
			return nil, fmt.Errorf("Load: record %s tags: %w", rec.ID, err)
		}
		rec.Kind = ledger.Kind(kind)
		rec.Recurring = recurring
		rec.AutoLabeled = autoLabeled

		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Load: iterate records: %w", err)
	}

	return out, nil
}

// Save implements ledger.Persister. The table is rewritten in one transaction.
func (r *Repository) Save(ctx context.Context, records []ledger.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Save: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("Save: clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, position, amount, kind, timestamp, description, recurring, auto_labeled, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("Save: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("Save: record %s tags: %w", rec.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			rec.ID,
			i,
			rec.Amount.String(),
			string(rec.Kind),
			rec.Timestamp.Format(time.RFC3339Nano),
			rec.Description,
			rec.Recurring,
			rec.AutoLabeled,
			string(tagsJSON),
		); err != nil {
			return fmt.Errorf("Save: insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Save: commit: %w", err)
	}
	return nil
}

var _ ledger.Persister = (*Repository)(nil)
