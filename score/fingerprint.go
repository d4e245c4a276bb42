package score

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint computes the deduplication hash for a snapshot: SHA-256 over
// a canonical serialization of the indicator counts (keys sorted) and the
// rounded score. Order-independent and deterministic: two cycles that find
// the same indicators the same number of times with the same score produce
// the same fingerprint, so the second is a repeat observation, not new
// intelligence.
func Fingerprint(indicatorCounts map[string]int, score float64) string {
	keys := make([]string, 0, len(indicatorCounts))
	for k := range indicatorCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%d;", k, indicatorCounts[k])
	}
	fmt.Fprintf(&b, "|score=%.2f", score)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
