package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/chronolog/internal/ir"
)

// SaveSnapshot stores a finished interpretation under s.RunID.
// Returns the snapshot digest and whether a new run was inserted.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency: saving a run ID that
// already exists leaves the stored snapshot untouched and returns
// inserted=false. All rows are written in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snap ir.Snapshot) (digest string, inserted bool, err error) {
	if snap.RunID == "" {
		return "", false, fmt.Errorf("save snapshot: empty run id")
	}

	digest, err = ir.SnapshotDigest(snap)
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	factCount := len(snap.Static)
	for _, frame := range snap.Frames {
		factCount += len(frame)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, digest, max_timesteps, passes, fact_count, derivation_count, engine_version, snapshot_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		snap.RunID,
		digest,
		snap.MaxTimesteps,
		snap.Passes,
		factCount,
		len(snap.Derivations),
		ir.EngineVersion,
		ir.SnapshotVersion,
	)
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: insert run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("save snapshot: rows affected: %w", err)
	}
	if rows == 0 {
		return digest, false, nil
	}

	if err := writeBaseFacts(ctx, tx, snap.RunID, snap.Base); err != nil {
		return "", false, err
	}
	if err := writeFacts(ctx, tx, snap.RunID, -1, snap.Static); err != nil {
		return "", false, err
	}
	for t, frame := range snap.Frames {
		if err := writeFacts(ctx, tx, snap.RunID, t, frame); err != nil {
			return "", false, err
		}
	}
	if err := writeDerivations(ctx, tx, snap.RunID, snap.Derivations); err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return digest, true, nil
}

func writeBaseFacts(ctx context.Context, tx *sql.Tx, runID string, base []ir.BaseFact) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO base_facts (run_id, fact_id, ord, predicate, args, base_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write base facts: %w", err)
	}
	defer stmt.Close()

	for i, b := range base {
		row, err := newAtomRow(b.Atom)
		if err != nil {
			return fmt.Errorf("write base facts: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, row.id, i, row.predicate, row.args, b.ID); err != nil {
			return fmt.Errorf("write base fact %s: %w", b.Atom, err)
		}
	}
	return nil
}

// writeFacts writes one frame. t = -1 writes the static facts.
func writeFacts(ctx context.Context, tx *sql.Tx, runID string, t int, atoms []ir.Atom) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO facts (run_id, timestep, fact_id, ord, predicate, args)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write facts: %w", err)
	}
	defer stmt.Close()

	for i, a := range atoms {
		row, err := newAtomRow(a)
		if err != nil {
			return fmt.Errorf("write facts: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, t, row.id, i, row.predicate, row.args); err != nil {
			return fmt.Errorf("write fact %s at t=%d: %w", a, t, err)
		}
	}
	return nil
}

func writeDerivations(ctx context.Context, tx *sql.Tx, runID string, records []ir.DerivationRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO derivations (run_id, timestep, fact_id, ord, predicate, args, rule, premises)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write derivations: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		row, err := newAtomRow(rec.Fact)
		if err != nil {
			return fmt.Errorf("write derivations: %w", err)
		}
		premises, err := marshalPremises(rec.Premises)
		if err != nil {
			return fmt.Errorf("write derivations: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, rec.Time, row.id, i, row.predicate, row.args, rec.Rule, premises); err != nil {
			return fmt.Errorf("write derivation of %s at t=%d: %w", rec.Fact, rec.Time, err)
		}
	}
	return nil
}

// DeleteRun removes a run and all its rows.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}
