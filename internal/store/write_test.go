package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/roach88/chronolog/internal/ir"
)

func TestSaveSnapshot_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	snap := createTestSnapshot("run-1")

	digest, inserted, err := s.SaveSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for a new run")
	}

	want, err := ir.SnapshotDigest(snap)
	if err != nil {
		t.Fatalf("SnapshotDigest() failed: %v", err)
	}
	if digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}

	info, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if info.Seq != 1 || info.FactCount != 4 || info.DerivationCount != 2 || info.Passes != 2 {
		t.Errorf("unexpected run info: %+v", info)
	}
	if info.EngineVersion != ir.EngineVersion || info.SnapshotVersion != ir.SnapshotVersion {
		t.Errorf("unexpected versions: %+v", info)
	}
}

func TestSaveSnapshot_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestSnapshot("run-1")
	if _, _, err := s.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("first SaveSnapshot() failed: %v", err)
	}

	// A different snapshot under the same run ID is ignored.
	second := createTestSnapshot("run-1")
	second.Static = nil
	_, inserted, err := s.SaveSnapshot(ctx, second)
	if err != nil {
		t.Fatalf("second SaveSnapshot() failed: %v", err)
	}
	if inserted {
		t.Error("expected inserted=false for an existing run")
	}

	loaded, err := s.LoadSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if len(loaded.Static) != 1 {
		t.Errorf("first snapshot was overwritten: static = %v", loaded.Static)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM facts WHERE run_id = ?", "run-1").Scan(&count); err != nil {
		t.Fatalf("count facts: %v", err)
	}
	if count != 4 {
		t.Errorf("facts = %d, want 4", count)
	}
}

func TestSaveSnapshot_SequenceIncrements(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if _, _, err := s.SaveSnapshot(ctx, createTestSnapshot(id)); err != nil {
			t.Fatalf("SaveSnapshot(%s) failed: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	for i, want := range []string{"b", "a", "c"} {
		if runs[i].ID != want || runs[i].Seq != int64(i+1) {
			t.Errorf("runs[%d] = %s seq %d, want %s seq %d", i, runs[i].ID, runs[i].Seq, want, i+1)
		}
	}
}

func TestSaveSnapshot_RejectsEmptyRunID(t *testing.T) {
	s := createTestStore(t)
	if _, _, err := s.SaveSnapshot(context.Background(), createTestSnapshot("")); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestSaveSnapshot_DuplicateFrameFactRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap := createTestSnapshot("run-1")
	snap.Frames[1] = append(snap.Frames[1], snap.Frames[1][0])

	if _, _, err := s.SaveSnapshot(ctx, snap); err == nil {
		t.Fatal("expected error for a duplicated frame fact")
	}

	if _, err := s.ReadRun(ctx, "run-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("run row survived the failed save: %v", err)
	}
}

func TestDeleteRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, _, err := s.SaveSnapshot(ctx, createTestSnapshot("run-1")); err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}
	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun() failed: %v", err)
	}

	for _, table := range []string{"base_facts", "facts", "derivations"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("%s has %d rows after delete", table, count)
		}
	}

	if err := s.DeleteRun(ctx, "run-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("second DeleteRun() = %v, want sql.ErrNoRows", err)
	}
}
