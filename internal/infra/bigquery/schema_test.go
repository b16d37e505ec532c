package bigquery

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_records.sql", true, "0001", "create_records"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if (m != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", m != nil, tt.valid)
			}
			if tt.valid && (m[1] != tt.version || m[2] != tt.name) {
				t.Errorf("got version %q name %q", m[1], m[2])
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_view.sql":    {Data: []byte("CREATE VIEW `{{PROJECT_ID}}.{{DATASET_ID}}.v` AS SELECT 1")},
		"0001_records.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.records` (id STRING)")},
		"README.md":        {Data: []byte("ignored")},
	}

	migrations, err := ReadMigrations(fsys, "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("versions = %d, %d; want sorted 1, 2", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.ds.records`") {
		t.Errorf("placeholders not replaced: %s", migrations[0].SQL)
	}

	// The checksum ignores the target project.
	other, err := ReadMigrations(fsys, "other", "ds2")
	if err != nil {
		t.Fatal(err)
	}
	if other[0].Checksum != migrations[0].Checksum {
		t.Error("checksum should not depend on project or dataset")
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("different files should have different checksums")
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"0001_b.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := ReadMigrations(fsys, "p", "d"); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	migrations, err := ReadMigrations(sub, "proj", "ds")
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("embedded migrations = %+v", migrations)
	}
	for _, col := range []string{"record_id", "record_date", "amount", "tags", "exported_ts", "updated_ts"} {
		if !strings.Contains(migrations[0].SQL, col) {
			t.Errorf("records table is missing column %s", col)
		}
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	got := Pending(migrations, applied)
	if len(got) != 1 || got[0].Version != 2 {
		t.Errorf("Pending() = %+v, want only version 2", got)
	}
}
