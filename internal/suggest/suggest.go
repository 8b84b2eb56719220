// Package suggest picks the candidate a mistyped name most likely meant.
package suggest

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Closest returns the candidate closest to name, or "" when none is close.
// A candidate that contains the letters of name in order wins when it is at
// most two letters longer; otherwise the candidate within an edit distance
// of two wins.
func Closest(name string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		if ranks[0].Distance <= 2 {
			return ranks[0].Target
		}
	}
	best, bestDist := "", 3
	lower := strings.ToLower(name)
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(lower, strings.ToLower(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
