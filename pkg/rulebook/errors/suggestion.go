package errors

import (
	"fmt"
	"strings"
)

// SuggestClosest proposes the nearest known name for an unknown one, or lists
// the valid names when nothing is close.
func SuggestClosest(unknown string, valid []string) string {
	if len(valid) == 0 {
		return ""
	}

	minDistance := -1
	var bestMatch string
	for _, candidate := range valid {
		dist := levenshteinDistance(unknown, candidate)
		if minDistance < 0 || dist < minDistance {
			minDistance = dist
			bestMatch = candidate
		}
	}

	if minDistance <= 3 {
		return fmt.Sprintf("Did you mean '%s'?", bestMatch)
	}
	if len(valid) > 6 {
		return fmt.Sprintf("Valid values include: %s, ...", strings.Join(valid[:6], ", "))
	}
	return fmt.Sprintf("Valid values: %s", strings.Join(valid, ", "))
}

// SuggestMissingField suggests adding a required field.
func SuggestMissingField(fieldName string, exampleValue string) string {
	if exampleValue != "" {
		return fmt.Sprintf("Add '%s: %s'", fieldName, exampleValue)
	}
	return fmt.Sprintf("Add a '%s' field", fieldName)
}

func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
