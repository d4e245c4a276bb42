package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/hazyhaar/simwatch/dbopen"
	"github.com/hazyhaar/simwatch/detect"
)

// StoredChange is a change row read back from the database.
type StoredChange struct {
	ID string `json:"id"`
	detect.Change
}

// InsertChange persists a detected change and returns its generated ID.
func (s *Store) InsertChange(ctx context.Context, ch *detect.Change) (string, error) {
	if ch.DetectedAt.IsZero() {
		ch.DetectedAt = time.Now()
	}
	id := s.newID()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT INTO changes (id, entity_name, change_type, old_score, new_score, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, ch.EntityName, string(ch.Type), ch.OldScore, ch.NewScore,
		ch.DetectedAt.UnixMilli(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecentChanges returns changes detected after since, newest first.
// A zero since returns the most recent changes regardless of age.
func (s *Store) RecentChanges(ctx context.Context, since time.Time, limit int) ([]*StoredChange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, entity_name, change_type, old_score, new_score, detected_at
		FROM changes WHERE detected_at >= ?
		ORDER BY detected_at DESC, rowid DESC LIMIT ?`,
		since.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoredChange
	for rows.Next() {
		var (
			ch         StoredChange
			typ        string
			old        sql.NullFloat64
			detectedAt int64
		)
		if err := rows.Scan(&ch.ID, &ch.EntityName, &typ, &old, &ch.NewScore, &detectedAt); err != nil {
			return nil, err
		}
		ch.Type = detect.ChangeType(typ)
		if old.Valid {
			v := old.Float64
			ch.OldScore = &v
		}
		ch.DetectedAt = time.UnixMilli(detectedAt).UTC()
		out = append(out, &ch)
	}
	return out, rows.Err()
}
