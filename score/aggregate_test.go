package score

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fragsWithTotals(totals ...int) []FragmentMatches {
	out := make([]FragmentMatches, len(totals))
	for i, tot := range totals {
		out[i] = FragmentMatches{
			TotalScore: tot,
			Matches:    []Match{{Phrase: "prepaid", Weight: tot}},
			SourceURL:  "https://example.com/src",
		}
	}
	return out
}

func TestAggregate_ZeroEvidenceIsUnscored(t *testing.T) {
	// WHAT: evidence_count == 0 forces score 0.0, never the neutral 2.5.
	// WHY: absence of evidence is unscored, not a midpoint claim.
	snap := Aggregate("Mint Mobile", nil, testNow)
	if snap.Score != 0.0 {
		t.Fatalf("score = %v, want 0.0", snap.Score)
	}
	if snap.EvidenceCount != 0 {
		t.Fatalf("evidence count = %d, want 0", snap.EvidenceCount)
	}
}

func TestAggregate_ScoreAlwaysInRange(t *testing.T) {
	// WHAT: extreme weight sums never escape [0, 5].
	cases := [][]FragmentMatches{
		fragsWithTotals(-1000),
		fragsWithTotals(1000),
		fragsWithTotals(-1000, -1000, -1000, -1000, -1000, -1000, -1000, -1000, -1000, -1000),
		fragsWithTotals(1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000),
	}
	for i, frags := range cases {
		snap := Aggregate("Visible", frags, testNow)
		if snap.Score < 0.0 || snap.Score > 5.0 {
			t.Errorf("case %d: score %v out of [0,5]", i, snap.Score)
		}
	}
}

func TestEvidenceWeight_CapAtTwo(t *testing.T) {
	// WHAT: weight is n/5 up to the 2.0 cap: 3→0.6, 8→1.6, 20→2.0.
	cases := []struct {
		n    int
		want float64
	}{
		{3, 0.6},
		{8, 1.6},
		{20, 2.0},
		{10, 2.0},
		{0, 0.0},
	}
	for _, tc := range cases {
		if got := EvidenceWeight(tc.n); got != tc.want {
			t.Errorf("EvidenceWeight(%d) = %v, want %v", tc.n, got, tc.want)
		}
	}
}

func TestEvidenceWeight_Monotonic(t *testing.T) {
	prev := 0.0
	for n := 1; n <= 30; n++ {
		w := EvidenceWeight(n)
		if w < prev {
			t.Fatalf("weight decreased at n=%d: %v < %v", n, w, prev)
		}
		prev = w
	}
}

func TestAggregate_NormalizationMidpoint(t *testing.T) {
	// WHAT: a zero net signal over enough fragments lands at 2.5.
	frags := fragsWithTotals(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	snap := Aggregate("US Mobile", frags, testNow)
	if snap.Score != 2.5 {
		t.Fatalf("score = %v, want 2.5", snap.Score)
	}
}

func TestAggregate_SingleStrongFragmentDownweighted(t *testing.T) {
	// WHAT: one raw +10 fragment alone scores below a corroborated +10.
	// WHY: the design favors corroborated signals over single-source claims.
	single := Aggregate("Tello", fragsWithTotals(10), testNow)
	corroborated := Aggregate("Tello", fragsWithTotals(10, 10, 10, 10, 10, 10, 10, 10, 10, 10), testNow)
	if single.Score >= corroborated.Score {
		t.Fatalf("single %v should score below corroborated %v", single.Score, corroborated.Score)
	}
	// mean 10 * weight 0.2 = 2 → (2+10)/4 = 3.0
	if single.Score != 3.0 {
		t.Errorf("single fragment score = %v, want 3.0", single.Score)
	}
	// mean 10 * weight 2.0 = 20 → clamped to 5.0
	if corroborated.Score != 5.0 {
		t.Errorf("corroborated score = %v, want 5.0", corroborated.Score)
	}
}

func TestAggregate_RoundsToTwoDecimals(t *testing.T) {
	// mean = 1/3, weight 0.6 → raw 0.2 → (10.2)/4 = 2.55
	frags := fragsWithTotals(1, 0, 0)
	snap := Aggregate("Cricket", frags, testNow)
	if snap.Score != 2.55 {
		t.Fatalf("score = %v, want 2.55", snap.Score)
	}
}

func TestAggregate_CountsAndPrimarySource(t *testing.T) {
	frags := []FragmentMatches{
		{
			TotalScore: 5,
			Sentiment:  SentimentPositive,
			Matches:    []Match{{Phrase: "no id required", Weight: 5}},
			SourceURL:  "https://example.com/first",
		},
		{
			TotalScore: -5,
			Sentiment:  SentimentNegative,
			Matches:    []Match{{Phrase: "id required", Weight: -5}},
			SourceURL:  "https://example.com/second",
		},
		{
			TotalScore: 5,
			Sentiment:  SentimentPositive,
			Matches:    []Match{{Phrase: "no id required", Weight: 5}},
			SourceURL:  "https://example.com/third",
		},
	}
	snap := Aggregate("Metro", frags, testNow)
	if snap.PositiveCount != 2 || snap.NegativeCount != 1 {
		t.Errorf("counts = +%d/-%d, want +2/-1", snap.PositiveCount, snap.NegativeCount)
	}
	if snap.IndicatorCounts["no id required"] != 2 {
		t.Errorf("indicator count = %d, want 2", snap.IndicatorCounts["no id required"])
	}
	if snap.PrimarySourceURL != "https://example.com/first" {
		t.Errorf("primary source = %q, want first fragment's URL", snap.PrimarySourceURL)
	}
	if snap.CreatedAt != testNow {
		t.Errorf("created_at = %v, want injected clock", snap.CreatedAt)
	}
}
