package store

import (
	"context"
	"database/sql"
	"time"
)

// DBStats holds aggregate counters for the whole database.
type DBStats struct {
	Entities    int       `json:"entities"`
	Snapshots   int       `json:"snapshots"`
	Changes     int       `json:"changes"`
	Cycles      int       `json:"cycles"`
	LastCycleAt time.Time `json:"last_cycle_at"`
}

// Stats returns aggregate counters.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	var stats DBStats
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT entity_name) FROM snapshots`).Scan(&stats.Entities); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM snapshots`).Scan(&stats.Snapshots); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM changes`).Scan(&stats.Changes); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cycles`).Scan(&stats.Cycles); err != nil {
		return nil, err
	}

	var last sql.NullInt64
	if err := s.DB.QueryRowContext(ctx,
		`SELECT MAX(finished_at) FROM cycles`).Scan(&last); err != nil {
		return nil, err
	}
	if last.Valid {
		stats.LastCycleAt = time.UnixMilli(last.Int64).UTC()
	}
	return &stats, nil
}
