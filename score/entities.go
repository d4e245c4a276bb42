package score

import "strings"

// EntityMatcher resolves a free-text hint to a canonical entity name.
// The second return is false when no tracked entity matches; callers discard
// the fragment rather than treating this as an error.
type EntityMatcher func(hint string, entities []string) (string, bool)

// ResolveEntity is the default EntityMatcher: case-insensitive containment
// in either direction (hint contains the canonical name, or the canonical
// name contains the hint). When several canonical names match, the longest
// one wins — "Mint Mobile Premium" beats "Mint Mobile" for a hint that
// mentions both. Empty or unrecognized hints resolve to no match.
func ResolveEntity(hint string, entities []string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return "", false
	}

	best := ""
	for _, name := range entities {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			continue
		}
		if strings.Contains(h, n) || strings.Contains(n, h) {
			if len(name) > len(best) {
				best = name
			}
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}
