package score

import "strings"

// Matcher scans normalized text for configured policy indicators.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	indicators []Indicator // configured order preserved
	lowered    []string    // pre-lowered phrases, same index as indicators
}

// NewMatcher builds a Matcher from the merged indicator dictionary.
// Returns ErrNoIndicators for an empty dictionary: a pipeline with no
// configured indicators cannot produce meaningful scores and must refuse
// to run.
func NewMatcher(indicators []Indicator) (*Matcher, error) {
	kept := make([]Indicator, 0, len(indicators))
	lowered := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		p := strings.TrimSpace(ind.Phrase)
		if p == "" {
			continue
		}
		kept = append(kept, Indicator{Phrase: p, Weight: ind.Weight})
		lowered = append(lowered, strings.ToLower(p))
	}
	if len(kept) == 0 {
		return nil, ErrNoIndicators
	}
	return &Matcher{indicators: kept, lowered: lowered}, nil
}

// Indicators returns the configured dictionary in order.
func (m *Matcher) Indicators() []Indicator {
	out := make([]Indicator, len(m.indicators))
	copy(out, m.indicators)
	return out
}

// Match tests every configured phrase against text as a case-insensitive
// literal substring. Each phrase counts at most once per fragment: this is
// a presence test, not a frequency test. Every phrase is tested
// independently, so "no id required" and "id required" both match a text
// containing the former — avoiding that double-count is the dictionary
// author's job, not the matcher's.
//
// The sentiment label is positive when the summed weights are > 0, negative
// when < 0, neutral otherwise (including zero matches). Pure function:
// identical input always yields identical output.
func (m *Matcher) Match(text string) FragmentMatches {
	result := FragmentMatches{Sentiment: SentimentNeutral}
	if text == "" {
		return result
	}
	lower := strings.ToLower(text)

	for i, phrase := range m.lowered {
		if strings.Contains(lower, phrase) {
			result.Matches = append(result.Matches, Match{
				Phrase: m.indicators[i].Phrase,
				Weight: m.indicators[i].Weight,
			})
			result.TotalScore += m.indicators[i].Weight
		}
	}

	switch {
	case result.TotalScore > 0:
		result.Sentiment = SentimentPositive
	case result.TotalScore < 0:
		result.Sentiment = SentimentNegative
	}
	return result
}

// MatchFragment matches a fragment's title and body as one combined text and
// carries the fragment's source URL through for aggregation.
func (m *Matcher) MatchFragment(frag Fragment) FragmentMatches {
	combined := frag.Text
	if frag.Title != "" {
		combined = frag.Title + " " + frag.Text
	}
	result := m.Match(combined)
	result.SourceURL = frag.SourceURL
	return result
}
