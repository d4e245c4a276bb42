package detect

import (
	"testing"
	"time"

	"github.com/hazyhaar/simwatch/score"
)

func snap(name string, s float64) score.Snapshot {
	return score.Snapshot{
		EntityName: name,
		Score:      s,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WHAT: first-ever snapshot for an entity yields NEW_ENTITY.
// WHY: the baseline must always be recorded so later deltas have an anchor,
// even when the first score is 0.0.
func TestClassify_NewEntity(t *testing.T) {
	for _, s := range []float64{0.0, 2.5, 5.0} {
		ch, ok := Classify(Config{}, nil, snap("Lycamobile", s))
		if !ok {
			t.Fatalf("score %.1f: expected a change for first sighting", s)
		}
		if ch.Type != ChangeNewEntity {
			t.Fatalf("score %.1f: type = %s, want %s", s, ch.Type, ChangeNewEntity)
		}
		if ch.OldScore != nil {
			t.Fatalf("score %.1f: OldScore = %v, want nil", s, *ch.OldScore)
		}
		if ch.NewScore != s {
			t.Fatalf("score %.1f: NewScore = %v", s, ch.NewScore)
		}
	}
}

// WHAT: upward moves at or above the threshold are SCORE_RELAXED, downward
// moves SCORE_TIGHTENED, and sub-threshold moves are dropped.
func TestClassify_Direction(t *testing.T) {
	prev := snap("Tesco Mobile", 3.0)

	tests := []struct {
		name     string
		next     float64
		wantOK   bool
		wantType ChangeType
	}{
		{"relaxed", 3.35, true, ChangeRelaxed},
		{"tightened", 2.6, true, ChangeTightened},
		{"below threshold", 3.2, false, ""},
		{"no movement", 3.0, false, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ch, ok := Classify(Config{}, &prev, snap("Tesco Mobile", tc.next))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if ch.Type != tc.wantType {
				t.Fatalf("type = %s, want %s", ch.Type, tc.wantType)
			}
			if ch.OldScore == nil || *ch.OldScore != prev.Score {
				t.Fatalf("OldScore = %v, want %v", ch.OldScore, prev.Score)
			}
			if ch.NewScore != tc.next {
				t.Fatalf("NewScore = %v, want %v", ch.NewScore, tc.next)
			}
		})
	}
}

// WHAT: a delta exactly equal to the threshold is significant.
// WHY: the comparison is inclusive so operators tuning the threshold get
// the boundary they configured, not threshold-plus-epsilon.
func TestClassify_ThresholdInclusive(t *testing.T) {
	prev := snap("Giffgaff", 2.0)

	ch, ok := Classify(Config{SignificanceThreshold: 0.5}, &prev, snap("Giffgaff", 2.5))
	if !ok {
		t.Fatal("delta equal to threshold should be recorded")
	}
	if ch.Type != ChangeRelaxed {
		t.Fatalf("type = %s, want %s", ch.Type, ChangeRelaxed)
	}

	if _, ok := Classify(Config{SignificanceThreshold: 0.5}, &prev, snap("Giffgaff", 2.49)); ok {
		t.Fatal("delta below threshold should not be recorded")
	}
}

// WHAT: zero-value Config falls back to the 0.3 default.
func TestClassify_DefaultThreshold(t *testing.T) {
	prev := snap("Lebara", 3.0)

	if _, ok := Classify(Config{}, &prev, snap("Lebara", 3.3)); !ok {
		t.Fatal("delta 0.3 should be significant under the default threshold")
	}
	if _, ok := Classify(Config{}, &prev, snap("Lebara", 3.29)); ok {
		t.Fatal("delta 0.29 should not be significant under the default threshold")
	}
}

// WHAT: exact-threshold deltas stay significant for score pairs whose
// float64 difference lands just under the decimal value.
// WHY: scores carry 2 decimals; 3.3-3.0 is 0.2999... in float64 and a raw
// comparison would silently drop boundary changes for most decimal pairs.
func TestClassify_ThresholdInclusiveFloatBoundary(t *testing.T) {
	pairs := []struct{ old, new float64 }{
		{3.0, 3.3},
		{1.1, 1.4},
		{0.1, 0.4},
		{4.7, 5.0},
		{3.3, 3.0}, // downward boundary
	}
	for _, p := range pairs {
		prev := snap("Lebara", p.old)
		if _, ok := Classify(Config{}, &prev, snap("Lebara", p.new)); !ok {
			t.Errorf("%.2f -> %.2f: delta 0.3 should be significant", p.old, p.new)
		}
	}
}

// WHAT: DetectedAt carries the new snapshot's creation time.
// WHY: the change row must line up with the snapshot that triggered it when
// both are read back from storage.
func TestClassify_DetectedAtFromSnapshot(t *testing.T) {
	next := snap("Vectone", 4.0)
	ch, ok := Classify(Config{}, nil, next)
	if !ok {
		t.Fatal("expected NEW_ENTITY")
	}
	if !ch.DetectedAt.Equal(next.CreatedAt) {
		t.Fatalf("DetectedAt = %v, want %v", ch.DetectedAt, next.CreatedAt)
	}
}
