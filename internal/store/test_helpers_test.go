package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/chronolog/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSnapshot builds a small consistent snapshot:
// edge(a,b) static, start(a) at t=0, reach(a,b) derived at t=0 and t=1.
func createTestSnapshot(runID string) ir.Snapshot {
	edge := ir.NewAtom("edge", "a", "b")
	start := ir.NewAtom("start", "a")
	reach := ir.NewAtom("reach", "a", "b")
	return ir.Snapshot{
		RunID:        runID,
		MaxTimesteps: 1,
		Passes:       2,
		Static:       []ir.Atom{edge},
		Frames: [][]ir.Atom{
			{reach, start},
			{reach},
		},
		Base: []ir.BaseFact{
			{Atom: edge, ID: "edge-1"},
			{Atom: start, ID: ""},
		},
		Derivations: []ir.DerivationRecord{
			{
				Fact: reach, Time: 0, Rule: "reach",
				Premises: []ir.Premise{{Atom: start, Time: 0}, {Atom: edge, Time: 0}},
			},
			{
				Fact: reach, Time: 1, Rule: "carry",
				Premises: []ir.Premise{{Atom: reach, Time: 0}},
			},
		},
	}
}

// getTableColumns returns the column names of a table.
func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table info for %s: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
