package engine

import (
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Boundary is a contiguous run of matched runes in the input, [Start, End).
type Boundary struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// FuzzyResult describes how a query aligned against one input string.
type FuzzyResult struct {
	Input      string     `json:"input"`
	Boundaries []Boundary `json:"boundaries"`
	// Inaccuracy counts unmatched runes inside the matched window.
	Inaccuracy int `json:"inaccuracy"`
}

// FuzzyMatch accepts input when query is a case-insensitive subsequence of it.
// Among all alignments it reports the shortest window, leftmost on ties, with
// query runes matched as early as possible inside that window.
func FuzzyMatch(query, input string) (FuzzyResult, bool) {
	if query == "" || !fuzzy.MatchFold(query, input) {
		return FuzzyResult{}, false
	}

	q := []rune(query)
	in := []rune(input)

	bestStart, bestEnd := -1, -1
	for s := 0; s < len(in); s++ {
		if !equalFold(in[s], q[0]) {
			continue
		}
		end := forwardEnd(q, in, s)
		if end < 0 {
			break
		}
		start := backwardStart(q, in, end)
		if bestStart < 0 || end-start < bestEnd-bestStart {
			bestStart, bestEnd = start, end
		}
		s = start
	}
	if bestStart < 0 {
		return FuzzyResult{}, false
	}

	var bounds []Boundary
	qi := 0
	for i := bestStart; i <= bestEnd && qi < len(q); i++ {
		if !equalFold(in[i], q[qi]) {
			continue
		}
		qi++
		if n := len(bounds); n > 0 && bounds[n-1].End == i {
			bounds[n-1].End = i + 1
		} else {
			bounds = append(bounds, Boundary{Start: i, End: i + 1})
		}
	}

	return FuzzyResult{
		Input:      input,
		Boundaries: bounds,
		Inaccuracy: bestEnd - bestStart + 1 - len(q),
	}, true
}

// forwardEnd greedily matches q from in[start] and returns the index of the
// rune matching the last query rune, or -1.
func forwardEnd(q, in []rune, start int) int {
	qi := 0
	for i := start; i < len(in); i++ {
		if equalFold(in[i], q[qi]) {
			qi++
			if qi == len(q) {
				return i
			}
		}
	}
	return -1
}

// backwardStart walks back from end to the latest start that still holds q.
func backwardStart(q, in []rune, end int) int {
	qi := len(q) - 1
	for i := end; i >= 0; i-- {
		if equalFold(in[i], q[qi]) {
			qi--
			if qi < 0 {
				return i
			}
		}
	}
	return end
}

func equalFold(a, b rune) bool {
	return a == b || unicode.ToLower(a) == unicode.ToLower(b)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
