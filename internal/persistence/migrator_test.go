package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writeMigration(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadPairsAndOrdersMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "000002_positions.up.sql")
	writeMigration(t, dir, "000001_operation_log.up.sql")
	writeMigration(t, dir, "000001_operation_log.down.sql")
	writeMigration(t, dir, "README.md")

	m := NewMigrator(zerolog.Nop(), nil, dir)
	migrations, err := m.load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, want 2", len(migrations))
	}

	first := migrations[0]
	if first.Version != 1 || first.Name != "operation_log" {
		t.Errorf("first migration = %+v, want version 1 operation_log", first)
	}
	if first.UpFile != "000001_operation_log.up.sql" || first.DownFile != "000001_operation_log.down.sql" {
		t.Errorf("version 1 files = %q / %q", first.UpFile, first.DownFile)
	}

	second := migrations[1]
	if second.Version != 2 || second.DownFile != "" {
		t.Errorf("second migration = %+v, want version 2 with no down file", second)
	}
}

func TestLoadRejectsMalformedFilenames(t *testing.T) {
	cases := []struct {
		name string
		file string
	}{
		{"no version prefix", "operationlog.sql"},
		{"non-numeric version", "abc_operation_log.up.sql"},
		{"wrong direction suffix", "000001_operation_log.sideways.sql"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeMigration(t, dir, tc.file)

			m := NewMigrator(zerolog.Nop(), nil, dir)
			if _, err := m.load(); err == nil {
				t.Fatalf("load accepted %s", tc.file)
			}
		})
	}
}
