package ratings

import "strings"

// NormalizeName trims, collapses interior whitespace, and case-folds a
// player or team name so that records keyed by name compare reliably
// across crawl runs.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
