package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"runs", "base_facts", "facts", "derivations"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"}, // ON
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

// Schema table tests

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	expected := map[string][]string{
		"runs":        {"id", "seq", "digest", "max_timesteps", "passes", "fact_count", "derivation_count", "engine_version", "snapshot_version"},
		"base_facts":  {"run_id", "fact_id", "ord", "predicate", "args", "base_id"},
		"facts":       {"run_id", "timestep", "fact_id", "ord", "predicate", "args"},
		"derivations": {"run_id", "timestep", "fact_id", "ord", "predicate", "args", "rule", "premises"},
	}

	for table, want := range expected {
		columns := getTableColumns(t, s.db, table)
		for _, col := range want {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestMigrateToV1_AddsDerivationCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	// Simulate a pre-v1 database.
	for _, stmt := range []string{
		"DROP TABLE derivations",
		"DROP TABLE facts",
		"DROP TABLE base_facts",
		"DROP TABLE runs",
		`CREATE TABLE runs (
			id TEXT PRIMARY KEY, seq INTEGER NOT NULL UNIQUE, digest TEXT NOT NULL,
			max_timesteps INTEGER NOT NULL, passes INTEGER NOT NULL, fact_count INTEGER NOT NULL,
			engine_version TEXT NOT NULL, snapshot_version TEXT NOT NULL)`,
		"PRAGMA user_version = 0",
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	if !contains(getTableColumns(t, s.db, "runs"), "derivation_count") {
		t.Error("derivation_count was not added")
	}
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}
