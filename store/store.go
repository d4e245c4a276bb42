// Package store provides the data access layer for the simwatch database:
// score snapshots, detected changes, and cycle run records.
package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/hazyhaar/simwatch/dbopen"
	"github.com/hazyhaar/simwatch/idgen"
)

// ErrDuplicate is returned when a snapshot with the same entity and
// fingerprint already exists.
var ErrDuplicate = errors.New("store: duplicate snapshot")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the simwatch database.
type Store struct {
	DB    *sql.DB
	newID idgen.Generator
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, newID: idgen.Default}
}

// Open opens (or creates) the database at path, applies pragmas and the
// schema, and returns a ready Store.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
