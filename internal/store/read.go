package store

import (
	"context"
	"fmt"

	"github.com/roach88/chronolog/internal/ir"
)

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID              string `json:"id"`
	Seq             int64  `json:"seq"`
	Digest          string `json:"digest"`
	MaxTimesteps    int    `json:"max_timesteps"`
	Passes          int    `json:"passes"`
	FactCount       int    `json:"fact_count"`
	DerivationCount int    `json:"derivation_count"`
	EngineVersion   string `json:"engine_version"`
	SnapshotVersion string `json:"snapshot_version"`
}

const runColumns = `id, seq, digest, max_timesteps, passes, fact_count, derivation_count, engine_version, snapshot_version`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunInfo, error) {
	var r RunInfo
	err := row.Scan(
		&r.ID,
		&r.Seq,
		&r.Digest,
		&r.MaxTimesteps,
		&r.Passes,
		&r.FactCount,
		&r.DerivationCount,
		&r.EngineVersion,
		&r.SnapshotVersion,
	)
	return r, err
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, runID string) (RunInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

// LatestRun retrieves the most recently saved run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (RunInfo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	return scanRun(row)
}

// ListRuns returns every stored run in save order.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LoadSnapshot rebuilds the snapshot saved under runID.
// Returns sql.ErrNoRows if the run does not exist, and an error if the
// stored rows no longer hash to the stored digest.
func (s *Store) LoadSnapshot(ctx context.Context, runID string) (ir.Snapshot, error) {
	info, err := s.ReadRun(ctx, runID)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("load snapshot %s: %w", runID, err)
	}

	snap := ir.Snapshot{
		RunID:        info.ID,
		MaxTimesteps: info.MaxTimesteps,
		Passes:       info.Passes,
		Static:       []ir.Atom{},
		Frames:       make([][]ir.Atom, info.MaxTimesteps+1),
	}
	for t := range snap.Frames {
		snap.Frames[t] = []ir.Atom{}
	}

	if err := s.readFacts(ctx, &snap); err != nil {
		return ir.Snapshot{}, err
	}
	if snap.Base, err = s.readBaseFacts(ctx, runID); err != nil {
		return ir.Snapshot{}, err
	}
	if snap.Derivations, err = s.readDerivations(ctx, runID); err != nil {
		return ir.Snapshot{}, err
	}

	digest, err := ir.SnapshotDigest(snap)
	if err != nil {
		return ir.Snapshot{}, fmt.Errorf("load snapshot %s: %w", runID, err)
	}
	if digest != info.Digest {
		return ir.Snapshot{}, fmt.Errorf("load snapshot %s: digest mismatch: stored %s, computed %s", runID, info.Digest, digest)
	}
	return snap, nil
}

func (s *Store) readFacts(ctx context.Context, snap *ir.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestep, predicate, args
		FROM facts
		WHERE run_id = ?
		ORDER BY timestep ASC, ord ASC
	`, snap.RunID)
	if err != nil {
		return fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t   int
			row atomRow
		)
		if err := rows.Scan(&t, &row.predicate, &row.args); err != nil {
			return fmt.Errorf("scan fact: %w", err)
		}
		a, err := row.atom()
		if err != nil {
			return err
		}
		switch {
		case t == -1:
			snap.Static = append(snap.Static, a)
		case t >= 0 && t < len(snap.Frames):
			snap.Frames[t] = append(snap.Frames[t], a)
		default:
			return fmt.Errorf("fact %s at t=%d outside 0..%d", a, t, snap.MaxTimesteps)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate facts: %w", err)
	}
	return nil
}

func (s *Store) readBaseFacts(ctx context.Context, runID string) ([]ir.BaseFact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT predicate, args, base_id
		FROM base_facts
		WHERE run_id = ?
		ORDER BY ord ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query base facts: %w", err)
	}
	defer rows.Close()

	base := []ir.BaseFact{}
	for rows.Next() {
		var (
			row atomRow
			id  string
		)
		if err := rows.Scan(&row.predicate, &row.args, &id); err != nil {
			return nil, fmt.Errorf("scan base fact: %w", err)
		}
		a, err := row.atom()
		if err != nil {
			return nil, err
		}
		base = append(base, ir.BaseFact{Atom: a, ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate base facts: %w", err)
	}
	return base, nil
}

func (s *Store) readDerivations(ctx context.Context, runID string) ([]ir.DerivationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestep, predicate, args, rule, premises
		FROM derivations
		WHERE run_id = ?
		ORDER BY ord ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query derivations: %w", err)
	}
	defer rows.Close()

	records := []ir.DerivationRecord{}
	for rows.Next() {
		rec, err := scanDerivation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate derivations: %w", err)
	}
	return records, nil
}

func scanDerivation(row rowScanner) (ir.DerivationRecord, error) {
	var (
		rec      ir.DerivationRecord
		atom     atomRow
		premises string
	)
	if err := row.Scan(&rec.Time, &atom.predicate, &atom.args, &rec.Rule, &premises); err != nil {
		return ir.DerivationRecord{}, fmt.Errorf("scan derivation: %w", err)
	}
	fact, err := atom.atom()
	if err != nil {
		return ir.DerivationRecord{}, err
	}
	rec.Fact = fact
	if rec.Premises, err = unmarshalPremises(premises); err != nil {
		return ir.DerivationRecord{}, err
	}
	return rec, nil
}

// ReadDerivation retrieves the derivation record of one fact at t.
// Returns sql.ErrNoRows if the fact was not derived at t in that run.
func (s *Store) ReadDerivation(ctx context.Context, runID string, fact ir.Atom, t int) (ir.DerivationRecord, error) {
	id, err := ir.FactID(fact)
	if err != nil {
		return ir.DerivationRecord{}, fmt.Errorf("read derivation: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT timestep, predicate, args, rule, premises
		FROM derivations
		WHERE run_id = ? AND timestep = ? AND fact_id = ?
	`, runID, t, id)

	rec, err := scanDerivation(row)
	if err != nil {
		return ir.DerivationRecord{}, err
	}
	return rec, nil
}

// CountFacts returns the number of facts with the given predicate name true
// at t in a stored run, static facts included.
func (s *Store) CountFacts(ctx context.Context, runID, predicate string, t int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM facts
		WHERE run_id = ? AND predicate = ? AND (timestep = ? OR timestep = -1)
	`, runID, predicate, t).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count facts: %w", err)
	}
	return n, nil
}
