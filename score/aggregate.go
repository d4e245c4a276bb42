package score

import (
	"math"
	"time"
)

// Evidence weighting constants. Evidence from >= 10 fragments caps at a 2x
// multiplier: corroboration is rewarded, a single noisy entity is not
// allowed to inflate without bound.
const (
	evidenceDivisor   = 5.0
	evidenceWeightCap = 2.0
)

// EvidenceWeight returns the corroboration multiplier for n fragments:
// min(n/5.0, 2.0). Monotonic non-decreasing up to the cap.
func EvidenceWeight(n int) float64 {
	return math.Min(float64(n)/evidenceDivisor, evidenceWeightCap)
}

// Aggregate combines all fragment match results for one entity in one cycle
// into a single Snapshot.
//
// The fragment totals are averaged, multiplied by the evidence weight, and
// normalized onto [0,5]: final = clamp((raw+10)/4, 0, 5) rounded to two
// decimals. A raw score of 0 (no net signal) lands at the midpoint 2.5.
// Zero fragments yield score 0.0 — absence of evidence is unscored, not
// neutral. Out-of-range configured weights are absorbed by the clamp, never
// an error.
func Aggregate(entity string, frags []FragmentMatches, now time.Time) Snapshot {
	snap := Snapshot{
		EntityName:      entity,
		IndicatorCounts: make(map[string]int),
		CreatedAt:       now,
	}

	if len(frags) == 0 {
		snap.Fingerprint = Fingerprint(snap.IndicatorCounts, snap.Score)
		return snap
	}

	sum := 0
	for _, fm := range frags {
		sum += fm.TotalScore
		for _, m := range fm.Matches {
			snap.IndicatorCounts[m.Phrase]++
		}
		switch fm.Sentiment {
		case SentimentPositive:
			snap.PositiveCount++
		case SentimentNegative:
			snap.NegativeCount++
		}
		if snap.PrimarySourceURL == "" && fm.SourceURL != "" {
			snap.PrimarySourceURL = fm.SourceURL
		}
	}

	snap.EvidenceCount = len(frags)
	mean := float64(sum) / float64(len(frags))
	raw := mean * EvidenceWeight(len(frags))
	snap.Score = round2(clamp((raw+10)/4, 0, 5))
	snap.Fingerprint = Fingerprint(snap.IndicatorCounts, snap.Score)
	return snap
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
