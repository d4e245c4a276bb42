package store

import (
	"context"
	"database/sql"

	"github.com/hazyhaar/simwatch/dbopen"
)

// Schema is the complete simwatch schema. All timestamps are unix millis.
const Schema = `
-- Score snapshots: one row per entity per scoring pass that produced evidence
CREATE TABLE IF NOT EXISTS snapshots (
    id                  TEXT PRIMARY KEY,
    entity_name         TEXT NOT NULL,
    score               REAL NOT NULL,
    evidence_count      INTEGER NOT NULL,
    positive_count      INTEGER NOT NULL DEFAULT 0,
    negative_count      INTEGER NOT NULL DEFAULT 0,
    indicator_counts    TEXT NOT NULL DEFAULT '{}',
    primary_source_url  TEXT NOT NULL DEFAULT '',
    fingerprint         TEXT NOT NULL,
    created_at          INTEGER NOT NULL,
    UNIQUE(entity_name, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_entity ON snapshots(entity_name, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(created_at DESC);

-- Significant score transitions
CREATE TABLE IF NOT EXISTS changes (
    id           TEXT PRIMARY KEY,
    entity_name  TEXT NOT NULL,
    change_type  TEXT NOT NULL,
    old_score    REAL,
    new_score    REAL NOT NULL,
    detected_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changes_entity ON changes(entity_name, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_changes_time ON changes(detected_at DESC);

-- Cycle run log (observability, dead-man's switch)
CREATE TABLE IF NOT EXISTS cycles (
    id                    TEXT PRIMARY KEY,
    started_at            INTEGER NOT NULL,
    finished_at           INTEGER NOT NULL,
    entities_scored       INTEGER NOT NULL DEFAULT 0,
    skipped_no_evidence   INTEGER NOT NULL DEFAULT 0,
    duplicates_discarded  INTEGER NOT NULL DEFAULT 0,
    changes_detected      INTEGER NOT NULL DEFAULT 0,
    storage_failures      INTEGER NOT NULL DEFAULT 0,
    error                 TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_cycles_time ON cycles(finished_at DESC);
`

// ApplySchema applies the schema to db in one transaction. Idempotent.
func ApplySchema(db *sql.DB) error {
	return dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(Schema)
		return err
	})
}
