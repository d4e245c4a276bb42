package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/simwatch/dbopen"
)

// CycleRecord is one pipeline run, successful or not.
type CycleRecord struct {
	ID                  string    `json:"id"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	EntitiesScored      int       `json:"entities_scored"`
	SkippedNoEvidence   int       `json:"skipped_no_evidence"`
	DuplicatesDiscarded int       `json:"duplicates_discarded"`
	ChangesDetected     int       `json:"changes_detected"`
	StorageFailures     int       `json:"storage_failures"`
	Error               string    `json:"error,omitempty"`
}

// LogCycle records a completed pipeline run and returns its generated ID.
func (s *Store) LogCycle(ctx context.Context, rec *CycleRecord) (string, error) {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = rec.FinishedAt
	}
	id := s.newID()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO cycles (id, started_at, finished_at, entities_scored,
		skipped_no_evidence, duplicates_discarded, changes_detected,
		storage_failures, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.StartedAt.UnixMilli(), rec.FinishedAt.UnixMilli(),
		rec.EntitiesScored, rec.SkippedNoEvidence, rec.DuplicatesDiscarded,
		rec.ChangesDetected, rec.StorageFailures, rec.Error,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// LastCycle returns the most recent cycle record, or nil when no cycle has
// ever run. The scheduler's dead-man's switch reads this.
func (s *Store) LastCycle(ctx context.Context) (*CycleRecord, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, entities_scored, skipped_no_evidence,
		duplicates_discarded, changes_detected, storage_failures, error
		FROM cycles ORDER BY finished_at DESC, rowid DESC LIMIT 1`)

	var (
		rec      CycleRecord
		started  int64
		finished int64
	)
	err := row.Scan(&rec.ID, &started, &finished, &rec.EntitiesScored,
		&rec.SkippedNoEvidence, &rec.DuplicatesDiscarded, &rec.ChangesDetected,
		&rec.StorageFailures, &rec.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.StartedAt = time.UnixMilli(started).UTC()
	rec.FinishedAt = time.UnixMilli(finished).UTC()
	return &rec, nil
}
