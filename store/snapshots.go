package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/simwatch/dbopen"
	"github.com/hazyhaar/simwatch/score"
)

// StoredSnapshot is a snapshot row read back from the database.
type StoredSnapshot struct {
	ID string `json:"id"`
	score.Snapshot
}

const snapshotColumns = `id, entity_name, score, evidence_count, positive_count,
	negative_count, indicator_counts, primary_source_url, fingerprint, created_at`

// InsertSnapshot persists a snapshot and returns its generated ID.
// Returns ErrDuplicate when the (entity_name, fingerprint) pair already
// exists; callers should check FindDuplicate first, the constraint is the
// backstop against concurrent writers.
func (s *Store) InsertSnapshot(ctx context.Context, snap *score.Snapshot) (string, error) {
	counts, err := json.Marshal(snap.IndicatorCounts)
	if err != nil {
		return "", fmt.Errorf("marshal indicator counts: %w", err)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	id := s.newID()
	_, err = dbopen.Exec(ctx, s.DB,
		`INSERT INTO snapshots (id, entity_name, score, evidence_count, positive_count,
		negative_count, indicator_counts, primary_source_url, fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snap.EntityName, snap.Score, snap.EvidenceCount, snap.PositiveCount,
		snap.NegativeCount, string(counts), snap.PrimarySourceURL, snap.Fingerprint,
		snap.CreatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// FindDuplicate reports whether a snapshot with this entity and fingerprint
// is already stored.
func (s *Store) FindDuplicate(ctx context.Context, entity, fingerprint string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM snapshots WHERE entity_name = ? AND fingerprint = ? LIMIT 1`,
		entity, fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LatestSnapshot returns the most recent snapshot for an entity, or nil
// when the entity has never been scored.
func (s *Store) LatestSnapshot(ctx context.Context, entity string) (*StoredSnapshot, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots
		WHERE entity_name = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, entity)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return snap, err
}

// TopEntities returns the latest snapshot of every entity, most lenient
// first. Ties break on evidence count (descending), then entity name.
func (s *Store) TopEntities(ctx context.Context, limit int) ([]*StoredSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots
		WHERE rowid IN (
			SELECT MAX(rowid) FROM snapshots GROUP BY entity_name
		)
		ORDER BY score DESC, evidence_count DESC, entity_name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// EntityHistory returns an entity's snapshots taken after since, newest
// first. A zero since returns the most recent snapshots regardless of age.
func (s *Store) EntityHistory(ctx context.Context, entity string, since time.Time, limit int) ([]*StoredSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots
		WHERE entity_name = ? AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		entity, since.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*StoredSnapshot, error) {
	var (
		snap      StoredSnapshot
		counts    string
		createdAt int64
	)
	err := row.Scan(&snap.ID, &snap.EntityName, &snap.Score, &snap.EvidenceCount,
		&snap.PositiveCount, &snap.NegativeCount, &counts, &snap.PrimarySourceURL,
		&snap.Fingerprint, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(counts), &snap.IndicatorCounts); err != nil {
		return nil, fmt.Errorf("unmarshal indicator counts: %w", err)
	}
	snap.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &snap, nil
}

func scanSnapshots(rows *sql.Rows) ([]*StoredSnapshot, error) {
	var out []*StoredSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
