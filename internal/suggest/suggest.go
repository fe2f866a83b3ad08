// Completion: 100% - Utility module complete
package suggest

import (
	"sort"
)

// suggest.go - "Did you mean" matching for command and key names

// Threshold is the largest edit distance that still counts as a typo
const Threshold = 3

// levenshteinDistance counts single-byte edits between a and b, keeping
// only the previous row of the table
func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub++
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, sub)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Similar returns up to max candidates within Threshold edits of name,
// closest first, ties broken alphabetically. An exact match is not a
// suggestion.
func Similar(name string, candidates []string, max int) []string {
	type suggestion struct {
		name     string
		distance int
	}

	var suggestions []suggestion
	for _, c := range candidates {
		dist := levenshteinDistance(name, c)
		if dist <= Threshold && dist > 0 {
			suggestions = append(suggestions, suggestion{c, dist})
		}
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].distance == suggestions[j].distance {
			return suggestions[i].name < suggestions[j].name
		}
		return suggestions[i].distance < suggestions[j].distance
	})

	result := make([]string, 0, max)
	for i := 0; i < len(suggestions) && i < max; i++ {
		result = append(result, suggestions[i].name)
	}
	return result
}
