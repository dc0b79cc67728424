// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sort"
	"strings"
	"unicode"
)

// FuzzyMatch reports whether every rune of query appears in target in order,
// case-insensitively, with a score that rewards consecutive runs, word starts
// and shorter targets.
//
//   - "ar" matches "Aria" with a high score (start + consecutive)
//   - "cm" matches "Creative Muse" (two word starts)
//   - "xyz" does not match "Aria"
func FuzzyMatch(query, target string) (score int, matched bool) {
	if query == "" {
		return 0, true
	}
	q := []rune(strings.ToLower(query))
	orig := []rune(target)
	t := []rune(strings.ToLower(target))
	if len(q) > len(t) {
		return 0, false
	}

	qi, last := 0, -1
	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] != q[qi] {
			continue
		}
		s := 1
		if last == ti-1 {
			s += 5
		}
		if ti == 0 {
			s += 10
		}
		if wordStart(orig, ti) {
			s += 7
		}
		score += s
		last = ti
		qi++
	}
	if qi != len(q) {
		return 0, false
	}
	return score - len(t)/4, true
}

// wordStart is true at index 0, after a separator, or at a camelCase hump.
func wordStart(r []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev := r[i-1]
	if prev == ' ' || prev == '/' || prev == '-' || prev == '_' {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(r[i])
}

// FuzzyRank returns the indexes of items whose key matches query, best
// first. Ties keep their original order.
func FuzzyRank(query string, n int, key func(i int) string) []int {
	type hit struct{ idx, score int }
	var hits []hit
	for i := 0; i < n; i++ {
		if s, ok := FuzzyMatch(query, key(i)); ok {
			hits = append(hits, hit{i, s})
		}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.idx
	}
	return out
}
