package usecase

import (
	"sort"
	"strings"
	"unicode"
)

// Canonical entity tables for Indian agricultural data. Free-text mentions
// resolve against these by exact/alias match first, then fuzzy similarity.
var canonicalStates = map[string][]string{
	"Andhra Pradesh": {"andhra"},
	"Assam":          nil,
	"Bihar":          nil,
	"Gujarat":        nil,
	"Haryana":        nil,
	"Karnataka":      nil,
	"Kerala":         nil,
	"Madhya Pradesh": nil,
	"Maharashtra":    nil,
	"Odisha":         {"orissa"},
	"Punjab":         nil,
	"Rajasthan":      nil,
	"Tamil Nadu":     nil,
	"Telangana":      nil,
	"Uttar Pradesh":  nil,
	"West Bengal":    nil,
}

var canonicalCrops = map[string][]string{
	"rice":      {"paddy"},
	"wheat":     nil,
	"maize":     {"corn"},
	"cotton":    nil,
	"sugarcane": nil,
	"pulses":    nil,
	"millets":   {"millet", "bajra", "jowar"},
	"groundnut": {"peanut"},
	"soybean":   {"soya"},
}

var canonicalMetrics = map[string][]string{
	"rainfall":    {"precipitation", "rain", "monsoon"},
	"production":  {"output"},
	"yield":       nil,
	"area":        {"acreage"},
	"temperature": nil,
	"irrigation":  {"irrigated"},
}

const (
	// resolveThreshold accepts a fuzzy mention as the canonical entity.
	resolveThreshold = 0.75
	// mentionThreshold marks a near-miss as unresolved rather than noise.
	mentionThreshold = 0.60
)

type entityMatch struct {
	Canonical string
	Score     float64
}

// fuzzyStopwords are common question words that sit too close to entity names
// in edit distance ("what" vs "wheat") to be allowed into the fuzzy pass.
var fuzzyStopwords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "whose": true,
	"does": true, "will": true, "would": true, "should": true, "could": true,
	"than": true, "that": true, "this": true, "with": true, "from": true,
	"have": true, "been": true, "were": true, "over": true, "time": true,
	"year": true, "years": true, "data": true, "show": true, "tell": true,
	"grain": true, "grains": true, "rate": true, "rates": true,
}

// resolveEntities scans the normalized query for state, crop and metric
// mentions. Mentions scoring in [mentionThreshold, resolveThreshold) are
// reported as unresolved and never guessed into a structured query.
func resolveEntities(query string) (states, crops, metrics, unresolved []string) {
	lower := strings.ToLower(query)
	grams := ngrams(tokenize(lower), 2)

	states, unresolvedStates := resolveAgainst(lower, grams, canonicalStates)
	crops, unresolvedCrops := resolveAgainst(lower, grams, canonicalCrops)
	metrics, unresolvedMetrics := resolveAgainst(lower, grams, canonicalMetrics)

	unresolved = append(unresolved, unresolvedStates...)
	unresolved = append(unresolved, unresolvedCrops...)
	unresolved = append(unresolved, unresolvedMetrics...)
	sort.Strings(unresolved)
	return states, crops, metrics, dedupeStrings(unresolved)
}

func resolveAgainst(lower string, grams []string, table map[string][]string) (resolved, unresolved []string) {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	for _, name := range names {
		if containsName(lower, name) || anyAliasContained(lower, table[name]) {
			if !seen[name] {
				resolved = append(resolved, name)
				seen[name] = true
			}
			continue
		}
	}

	// Fuzzy pass over token n-grams for misspelled mentions.
	for _, gram := range grams {
		if fuzzyStopwords[gram] {
			continue
		}
		best := entityMatch{}
		for _, name := range names {
			score := similarity(gram, strings.ToLower(name))
			for _, alias := range table[name] {
				if s := similarity(gram, alias); s > score {
					score = s
				}
			}
			if score > best.Score {
				best = entityMatch{Canonical: name, Score: score}
			}
		}
		switch {
		case best.Score >= resolveThreshold:
			if !seen[best.Canonical] {
				resolved = append(resolved, best.Canonical)
				seen[best.Canonical] = true
			}
		case best.Score >= mentionThreshold:
			// A near-miss of an entity already resolved exactly is just
			// the surrounding phrase, not a new mention.
			if !seen[best.Canonical] {
				unresolved = append(unresolved, gram)
			}
		}
	}
	sort.Strings(resolved)
	return resolved, unresolved
}

func containsName(lower, name string) bool {
	return containsWord(lower, strings.ToLower(name))
}

func anyAliasContained(lower string, aliases []string) bool {
	for _, alias := range aliases {
		if containsWord(lower, alias) {
			return true
		}
	}
	return false
}

// containsWord matches name on word boundaries so "rain" does not fire
// inside "grain".
func containsWord(haystack, name string) bool {
	idx := 0
	for {
		pos := strings.Index(haystack[idx:], name)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(name)
		beforeOK := start == 0 || !isWordRune(rune(haystack[start-1]))
		afterOK := end == len(haystack) || !isWordRune(rune(haystack[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !isWordRune(r) })
}

// ngrams returns all 1..n token windows joined by single spaces.
func ngrams(tokens []string, n int) []string {
	out := make([]string, 0, len(tokens)*n)
	for size := 1; size <= n; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+size], " "))
		}
	}
	return out
}

// similarity is normalized Levenshtein: 1 - distance/maxLen. Short grams are
// excluded to keep ordinary words from matching entity names.
func similarity(a, b string) float64 {
	if len(a) < 4 || len(b) == 0 {
		return 0
	}
	// Misspellings almost never change the first letter; requiring it cuts
	// accidental matches between unrelated words.
	if a[0] != b[0] {
		return 0
	}
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func dedupeStrings(in []string) []string {
	out := in[:0]
	var last string
	for i, s := range in {
		if i == 0 || s != last {
			out = append(out, s)
		}
		last = s
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
