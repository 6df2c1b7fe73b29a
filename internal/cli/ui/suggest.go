package ui

import (
	"sort"
	"strings"
)

// MaxSuggestions caps how many names Suggest returns
const MaxSuggestions = 3

// Suggest returns the candidates closest to target by edit distance,
// ignoring case. Candidates further than maxDistance edits are dropped.
func Suggest(target string, candidates []string, maxDistance int) []string {
	type scored struct {
		value    string
		distance int
	}

	var matches []scored
	for _, candidate := range candidates {
		d := Distance(strings.ToLower(target), strings.ToLower(candidate))
		if d <= maxDistance {
			matches = append(matches, scored{candidate, d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].value < matches[j].value
	})

	out := make([]string, 0, MaxSuggestions)
	for i := 0; i < len(matches) && i < MaxSuggestions; i++ {
		out = append(out, matches[i].value)
	}
	return out
}

// Distance returns the Levenshtein distance between two strings
func Distance(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
