// Package detect decides whether a freshly computed snapshot represents a
// meaningful change against the entity's most recent stored snapshot.
package detect

import (
	"math"
	"time"

	"github.com/hazyhaar/simwatch/score"
)

// ChangeType classifies a detected change.
type ChangeType string

const (
	// ChangeNewEntity marks an entity's first-ever snapshot. Always emitted.
	ChangeNewEntity ChangeType = "NEW_ENTITY"
	// ChangeRelaxed marks a significant score increase (more lenient).
	ChangeRelaxed ChangeType = "SCORE_RELAXED"
	// ChangeTightened marks a significant score decrease (stricter).
	ChangeTightened ChangeType = "SCORE_TIGHTENED"
)

// DefaultSignificanceThreshold is the default minimum absolute score delta,
// on the 0-5 scale, for a change to be recorded.
const DefaultSignificanceThreshold = 0.3

// Config holds the change detection parameters.
type Config struct {
	// SignificanceThreshold is the minimum abs(delta) that counts as a
	// change. The comparison is inclusive: a delta exactly equal to the
	// threshold is significant. <= 0 selects the default.
	SignificanceThreshold float64
}

func (c *Config) defaults() {
	if c.SignificanceThreshold <= 0 {
		c.SignificanceThreshold = DefaultSignificanceThreshold
	}
}

// Change is a detected, threshold-significant transition between two
// successive scores for one entity. Immutable once created.
type Change struct {
	EntityName string     `json:"entity_name"`
	Type       ChangeType `json:"change_type"`
	OldScore   *float64   `json:"old_score"` // nil for NEW_ENTITY
	NewScore   float64    `json:"new_score"`
	DetectedAt time.Time  `json:"detected_at"`
}

// Classify compares a new snapshot against the previous one for the same
// entity. A nil prev means first sighting: NEW_ENTITY is emitted
// unconditionally, whatever the score. With a prior snapshot, a change is
// emitted only when abs(new-old) >= threshold (inclusive); the direction of
// the delta selects RELAXED or TIGHTENED. Sub-threshold deltas return
// ok=false. Pure function; absence of a prior snapshot is the expected
// state for first observations, never an error.
func Classify(cfg Config, prev *score.Snapshot, next score.Snapshot) (Change, bool) {
	cfg.defaults()

	if prev == nil {
		return Change{
			EntityName: next.EntityName,
			Type:       ChangeNewEntity,
			NewScore:   next.Score,
			DetectedAt: next.CreatedAt,
		}, true
	}

	// Scores carry 2 decimals, so round the delta back to 2 decimals:
	// 3.3-3.0 is 0.299999... in float64 and must still count as 0.3.
	delta := math.Round((next.Score-prev.Score)*100) / 100
	if math.Abs(delta) < cfg.SignificanceThreshold {
		return Change{}, false
	}

	typ := ChangeRelaxed
	if delta < 0 {
		typ = ChangeTightened
	}
	old := prev.Score
	return Change{
		EntityName: next.EntityName,
		Type:       typ,
		OldScore:   &old,
		NewScore:   next.Score,
		DetectedAt: next.CreatedAt,
	}, true
}
