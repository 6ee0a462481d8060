package store

import (
	"context"
	"fmt"
)

// PassTotal aggregates the recorded runs of one pass.
type PassTotal struct {
	Pass    string `json:"pass"`
	Calls   int64  `json:"calls"`
	Actions int64  `json:"actions"`
	Usec    int64  `json:"usec"`
}

// UnitInfo describes a recorded unit.
type UnitInfo struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Name        string `json:"name"`
	Seq         int64  `json:"seq"`
	Passes      int64  `json:"passes"`
}

// PassTotals returns per-pass totals over every recorded unit, ordered by
// pass name. Returns an empty slice (not nil) for an empty store.
func (s *Store) PassTotals(ctx context.Context) ([]PassTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass, COUNT(*), SUM(actions), SUM(usec)
		FROM pass_runs
		GROUP BY pass
		ORDER BY pass COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pass totals: %w", err)
	}
	defer rows.Close()

	totals := []PassTotal{}
	for rows.Next() {
		var t PassTotal
		if err := rows.Scan(&t.Pass, &t.Calls, &t.Actions, &t.Usec); err != nil {
			return nil, fmt.Errorf("scan pass total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pass totals: %w", err)
	}
	return totals, nil
}

// Units returns the recorded units in insertion order.
func (s *Store) Units(ctx context.Context) ([]UnitInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.fingerprint, u.name, u.seq, COUNT(r.seq)
		FROM units u
		LEFT JOIN pass_runs r ON r.unit_id = u.id
		GROUP BY u.id
		ORDER BY u.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	units := []UnitInfo{}
	for rows.Next() {
		var u UnitInfo
		if err := rows.Scan(&u.ID, &u.Fingerprint, &u.Name, &u.Seq, &u.Passes); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}
