package views

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"borsa/internal/core"
)

// fuzzyThreshold is the normalized edit distance above which a person no
// longer counts as a match for the typed input.
const fuzzyThreshold = 0.4

// SuggestPersons ranks the person registry against what the user has
// typed into the counterparty box. Substring hits on name or alias rank
// first, then near misses by normalized edit distance. Returns at most
// max entries; ties keep registry order.
func SuggestPersons(persons []core.Person, input string, max int) []core.Person {
	q := strings.ToLower(strings.TrimSpace(input))
	if q == "" || max <= 0 {
		return nil
	}
	type scored struct {
		person core.Person
		score  float64
	}
	var matches []scored
	for _, p := range persons {
		score, ok := personScore(p, q)
		if !ok {
			continue
		}
		matches = append(matches, scored{person: p, score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score < matches[j].score
	})
	if len(matches) > max {
		matches = matches[:max]
	}
	out := make([]core.Person, len(matches))
	for i, m := range matches {
		out[i] = m.person
	}
	return out
}

func personScore(p core.Person, q string) (float64, bool) {
	best := fuzzyThreshold
	ok := false
	for _, field := range []string{p.Name, p.Alias} {
		f := strings.ToLower(strings.TrimSpace(field))
		if f == "" {
			continue
		}
		if strings.Contains(f, q) {
			return 0, true
		}
		dist := levenshtein.ComputeDistance(f, q)
		maxlen := float64(len(f))
		if len(q) > len(f) {
			maxlen = float64(len(q))
		}
		if norm := float64(dist) / maxlen; norm < best {
			best = norm
			ok = true
		}
	}
	return best, ok
}
