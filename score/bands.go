package score

// Band maps a score to the fixed presentation label (inclusive lower bound).
// The bands are part of the external contract with dashboards and MCP
// clients; they are not used anywhere in scoring itself.
func Band(score float64) string {
	switch {
	case score >= 4.0:
		return "lenient-high"
	case score >= 3.0:
		return "lenient"
	case score >= 2.0:
		return "moderate"
	case score >= 1.0:
		return "strict"
	default:
		return "strict-high"
	}
}
