// Package score converts raw textual evidence about tracked providers into
// normalized leniency scores. Everything in this package is pure computation:
// no I/O, no clocks, no shared state.
package score

import "time"

// Fragment is one unit of raw evidence delivered by a producer. It is
// transient: consumed during one cycle, never persisted.
type Fragment struct {
	EntityHint string `json:"entity_hint"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	SourceURL  string `json:"source_url"`
}

// Indicator is one configured policy signal: a literal phrase with a signed
// weight. Positive weights are lenient signals, negative weights strict ones.
// Weights come solely from configuration, never from computation.
type Indicator struct {
	Phrase string `json:"phrase" yaml:"phrase"`
	Weight int    `json:"weight" yaml:"weight"`
}

// Sentiment is the fragment-level net label derived from matched weights.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Match is a single indicator found in a fragment.
type Match struct {
	Phrase string `json:"phrase"`
	Weight int    `json:"weight"`
}

// FragmentMatches is the matcher output for one fragment: every configured
// phrase present in the text (each at most once), the summed weight, and the
// derived sentiment label.
type FragmentMatches struct {
	SourceURL  string    `json:"source_url"`
	Matches    []Match   `json:"matches"`
	TotalScore int       `json:"total_score"`
	Sentiment  Sentiment `json:"sentiment"`
}

// Snapshot is the durable unit of intelligence: one entity's score for one
// cycle. Append-only once persisted.
type Snapshot struct {
	EntityName       string         `json:"entity_name"`
	Score            float64        `json:"score"` // clamped to [0,5], 2 decimals
	EvidenceCount    int            `json:"evidence_count"`
	IndicatorCounts  map[string]int `json:"indicator_counts"` // phrase → fragment count
	PositiveCount    int            `json:"positive_count"`
	NegativeCount    int            `json:"negative_count"`
	PrimarySourceURL string         `json:"primary_source_url"`
	Fingerprint      string         `json:"fingerprint"`
	CreatedAt        time.Time      `json:"created_at"`
}
