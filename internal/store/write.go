package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/qopt/internal/ir"
	"github.com/roach88/qopt/internal/optimizer"
)

// Unit is a compilation unit being optimized. It records the pass runs of
// its pipeline.
type Unit struct {
	ID          string
	Fingerprint string
	Name        string
	Seq         int64

	store *Store
	// ctx bounds the writes of RecordPass, whose signature has no context.
	ctx  context.Context
	runs int64
}

var _ optimizer.Recorder = (*Unit)(nil)

// BeginUnit registers b as a new unit, fingerprinted before optimization.
func (s *Store) BeginUnit(ctx context.Context, b *ir.Block) (*Unit, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	u := &Unit{
		ID:          id.String(),
		Fingerprint: ir.Fingerprint(b),
		Name:        b.Name,
		store:       s,
		ctx:         ctx,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM units`).Scan(&u.Seq); err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO units (id, fingerprint, name, seq)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.Fingerprint, u.Name, u.Seq); err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("begin unit: %w", err)
	}
	return u, nil
}

// RecordPass implements optimizer.Recorder.
func (u *Unit) RecordPass(run optimizer.PassRun) error {
	u.runs++
	_, err := u.store.db.ExecContext(u.ctx, `
		INSERT INTO pass_runs (unit_id, seq, pass, actions, usec)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.runs, run.Pass, run.Actions, run.Usec)
	if err != nil {
		return fmt.Errorf("record pass %s: %w", run.Pass, err)
	}
	return nil
}

// SavePlan stores the listing of b, history included, as stage of unit
// unitID. Saving a stage again replaces it.
func (s *Store) SavePlan(ctx context.Context, unitID, stage string, b *ir.Block) error {
	frame, err := compress(b.String())
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (unit_id, stage, listing)
		VALUES (?, ?, ?)
		ON CONFLICT(unit_id, stage) DO UPDATE SET listing = excluded.listing
	`, unitID, stage, frame)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	return nil
}

// LoadPlan returns the listing saved as stage of unit unitID.
func (s *Store) LoadPlan(ctx context.Context, unitID, stage string) (string, error) {
	var frame []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT listing FROM plans WHERE unit_id = ? AND stage = ?
	`, unitID, stage).Scan(&frame)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("load plan: no %s plan for unit %s", stage, unitID)
	}
	if err != nil {
		return "", fmt.Errorf("load plan: %w", err)
	}
	return decompress(frame)
}
