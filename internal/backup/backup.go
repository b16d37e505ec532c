// Package backup keeps timestamped JSON snapshots of the ledger and
// optionally mirrors them to a GCS bucket.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/ledger/internal/gcsuploader"
	"github.com/dvloznov/ledger/internal/ledger"
	"github.com/dvloznov/ledger/internal/storage/jsonfile"
	"github.com/rs/zerolog"
)

const (
	filePrefix = "ledger-"
	fileSuffix = ".json"
	timeLayout = "20060102-150405"

	// DefaultKeep is the number of snapshots retained by Prune.
	DefaultKeep = 10
	// DefaultInterval is the minimum age of the newest snapshot before MaybeBackup writes another.
	DefaultInterval = 7 * 24 * time.Hour
)

// ErrNoSnapshot is returned when the backup directory holds no snapshots.
var ErrNoSnapshot = errors.New("no backup snapshot found")

// Snapshot describes one backup file.
type Snapshot struct {
	Name      string
	Path      string
	CreatedAt time.Time
	Size      int64
	// RemoteURI is set when the snapshot was uploaded during Create.
	RemoteURI string
}

// Manager creates, lists, prunes, and restores snapshots.
type Manager struct {
	dir      string
	keep     int
	interval time.Duration
	bucket   string
	prefix   string
	storage  gcsuploader.StorageService
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeep sets how many snapshots Prune retains. Values below 1 are ignored.
func WithKeep(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

// WithInterval sets the minimum spacing between automatic backups.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithBucket uploads every new snapshot to bucket under the "backups/" prefix.
// The storage service is also used to restore from gs:// URIs.
func WithBucket(bucket string, storage gcsuploader.StorageService) Option {
	return func(m *Manager) {
		m.bucket = bucket
		m.storage = storage
	}
}

// WithStorage sets the storage service without enabling uploads.
func WithStorage(storage gcsuploader.StorageService) Option {
	return func(m *Manager) {
		m.storage = storage
	}
}

// NewManager returns a Manager writing snapshots under dir.
func NewManager(dir string, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		dir:      dir,
		keep:     DefaultKeep,
		interval: DefaultInterval,
		prefix:   "backups",
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Create writes records to a new snapshot, uploads it when a bucket is
// configured, and prunes old snapshots. An upload failure is returned after
// the local snapshot is already on disk.
func (m *Manager) Create(ctx context.Context, records []ledger.Record) (Snapshot, error) {
	created := m.now().UTC()
	name := filePrefix + created.Format(timeLayout) + fileSuffix
	p := filepath.Join(m.dir, name)

	if err := jsonfile.New(p).Save(ctx, records); err != nil {
		return Snapshot{}, fmt.Errorf("Create: %w", err)
	}

	snap := Snapshot{Name: name, Path: p, CreatedAt: created.Truncate(time.Second)}
	if info, err := os.Stat(p); err == nil {
		snap.Size = info.Size()
	}

	m.log.Info().
		Str("path", p).
		Int("records", len(records)).
		Msg("Backup snapshot written")

	if _, err := m.Prune(); err != nil {
		m.log.Warn().Err(err).Msg("Failed to prune old snapshots")
	}

	if m.bucket != "" && m.storage != nil {
		object := path.Join(m.prefix, name)
		if err := m.storage.UploadFile(ctx, m.bucket, object, p); err != nil {
			return snap, fmt.Errorf("Create: upload %s: %w", name, err)
		}
		snap.RemoteURI = gcsuploader.URI(m.bucket, object)
		m.log.Info().Str("uri", snap.RemoteURI).Msg("Backup snapshot uploaded")
	}

	return snap, nil
}

// List returns the local snapshots, newest first. A missing directory yields none.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("List: read %s: %w", m.dir, err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		created, ok := parseName(e.Name())
		if !ok {
			continue
		}
		snap := Snapshot{Name: e.Name(), Path: filepath.Join(m.dir, e.Name()), CreatedAt: created}
		if info, err := e.Info(); err == nil {
			snap.Size = info.Size()
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

// Latest returns the newest local snapshot or ErrNoSnapshot.
func (m *Manager) Latest() (Snapshot, error) {
	snaps, err := m.List()
	if err != nil {
		return Snapshot{}, err
	}
	if len(snaps) == 0 {
		return Snapshot{}, ErrNoSnapshot
	}
	return snaps[0], nil
}

// Due reports whether the newest snapshot is at least one interval old.
func (m *Manager) Due() (bool, error) {
	latest, err := m.Latest()
	if errors.Is(err, ErrNoSnapshot) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return m.now().Sub(latest.CreatedAt) >= m.interval, nil
}

// MaybeBackup creates a snapshot when one is due.
func (m *Manager) MaybeBackup(ctx context.Context, records []ledger.Record) (bool, error) {
	due, err := m.Due()
	if err != nil {
		return false, fmt.Errorf("MaybeBackup: %w", err)
	}
	if !due {
		m.log.Debug().Msg("Backup not due")
		return false, nil
	}
	if _, err := m.Create(ctx, records); err != nil {
		return true, fmt.Errorf("MaybeBackup: %w", err)
	}
	return true, nil
}

// Prune deletes all but the newest keep snapshots and returns how many were removed.
func (m *Manager) Prune() (int, error) {
	snaps, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(snaps) <= m.keep {
		return 0, nil
	}

	removed := 0
	for _, s := range snaps[m.keep:] {
		if err := os.Remove(s.Path); err != nil {
			return removed, fmt.Errorf("Prune: remove %s: %w", s.Path, err)
		}
		removed++
	}
	m.log.Debug().Int("removed", removed).Msg("Pruned old snapshots")
	return removed, nil
}

// Load reads the records of a snapshot. source may be a gs:// URI, a local
// path, or empty for the newest local snapshot.
func (m *Manager) Load(ctx context.Context, source string) ([]ledger.Record, error) {
	var data []byte

	switch {
	case source == "":
		latest, err := m.Latest()
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		source = latest.Path
		fallthrough
	case !strings.HasPrefix(source, "gs://"):
		b, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("Load: read %s: %w", source, err)
		}
		data = b
	default:
		if m.storage == nil {
			return nil, fmt.Errorf("Load: %s: storage client not configured", source)
		}
		b, err := m.storage.FetchFromGCS(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		m.log.Info().Str("snapshot", gcsuploader.ExtractFilenameFromGCSURI(source)).Int("bytes", len(b)).Msg("Fetched remote snapshot")
		data = b
	}

	records, err := jsonfile.Decode(bytes.TrimSpace(data))
	if err != nil {
		return nil, fmt.Errorf("Load: %s: %w", source, err)
	}
	return records, nil
}

func parseName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	t, err := time.ParseInLocation(timeLayout, stamp, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
