package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Persister loads and saves the full record collection.
type Persister interface {
	// Load returns the persisted records. A missing backing store is not an error.
	Load(ctx context.Context) ([]Record, error)

	// Save replaces the persisted collection with records.
	Save(ctx context.Context, records []Record) error
}

// ChangeType names a store mutation.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change describes one committed mutation.
type Change struct {
	Type   ChangeType `json:"type"`
	Record Record     `json:"record"`
	At     time.Time  `json:"at"`
}

// Observer is notified after a mutation has been persisted.
type Observer interface {
	RecordChanged(ctx context.Context, change Change)
}

// Store owns the in-memory ledger and writes the whole collection through its
// Persister on every mutation. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	records   []Record
	persister Persister
	observers []Observer
	log       zerolog.Logger
}

// NewStore creates an empty store. Call Load to read persisted records.
func NewStore(p Persister, log zerolog.Logger) *Store {
	return &Store{
		persister: p,
		log:       log,
	}
}

// Open creates a store and loads it.
func Open(ctx context.Context, p Persister, log zerolog.Logger) *Store {
	s := NewStore(p, log)
	s.Load(ctx)
	return s
}

// Observe registers o for change notifications.
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Load replaces the in-memory collection with the persisted one and returns the
// number of records loaded. Unreadable or corrupt data yields an empty ledger.
func (s *Store) Load(ctx context.Context) int {
	records, err := s.persister.Load(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load ledger, starting empty")
		records = nil
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.log.Debug().Int("records", len(records)).Msg("Ledger loaded")
	return len(records)
}

// Add stores r and returns its id. An empty id is generated and a zero timestamp
// is set to now.
func (s *Store) Add(ctx context.Context, r Record) (string, error) {
	r = r.Clone()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	s.mu.Lock()
	if s.indexOf(r.ID) >= 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("Add: duplicate record id %s", r.ID)
	}
	next := append(s.snapshot(), r)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("Add: %w", err)
	}
	s.mu.Unlock()

	s.log.Info().Str("record_id", r.ID).Str("kind", string(r.Kind)).Str("amount", r.Amount.String()).Msg("Record added")
	s.notify(ctx, ChangeAdded, r)
	return r.ID, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return Record{}, false
}

// List returns a copy of every record in insertion order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Update applies p to the record with the given id. It returns false when the id
// is unknown.
func (s *Store) Update(ctx context.Context, id string, p Patch) (bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		s.log.Warn().Str("record_id", id).Msg("Update: record not found")
		return false, nil
	}
	next := s.snapshot()
	p.Apply(&next[i])
	updated := next[i].Clone()
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("Update: %w", err)
	}
	s.mu.Unlock()

	s.log.Info().Str("record_id", id).Msg("Record updated")
	s.notify(ctx, ChangeUpdated, updated)
	return true, nil
}

// Delete removes the record with the given id. It returns false when the id is unknown.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		s.log.Warn().Str("record_id", id).Msg("Delete: record not found")
		return false, nil
	}
	removed := s.records[i].Clone()
	next := make([]Record, 0, len(s.records)-1)
	next = append(next, s.records[:i]...)
	next = append(next, s.records[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("Delete: %w", err)
	}
	s.mu.Unlock()

	s.log.Info().Str("record_id", id).Msg("Record deleted")
	s.notify(ctx, ChangeDeleted, removed)
	return true, nil
}

// Search returns copies of the records matching f, in insertion order.
func (s *Store) Search(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ReplaceAll swaps the whole collection for records and persists it.
func (s *Store) ReplaceAll(ctx context.Context, records []Record) error {
	next := make([]Record, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if _, dup := seen[r.ID]; dup || r.ID == "" {
			return fmt.Errorf("ReplaceAll: missing or duplicate record id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		next[i] = r.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.commit(ctx, next); err != nil {
		return fmt.Errorf("ReplaceAll: %w", err)
	}
	s.log.Info().Int("records", len(next)).Msg("Ledger replaced")
	return nil
}

// commit persists next and makes it current. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []Record) error {
	if err := s.persister.Save(ctx, next); err != nil {
		return fmt.Errorf("persisting ledger: %w", err)
	}
	s.records = next
	return nil
}

// snapshot returns a deep copy of the records. Callers hold s.mu.
func (s *Store) snapshot() []Record {
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(ctx context.Context, t ChangeType, r Record) {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()

	change := Change{Type: t, Record: r, At: time.Now()}
	for _, o := range observers {
		o.RecordChanged(ctx, change)
	}
}
