// Package rolematch resolves the free-text role a language model wrote on a
// ticket ("Back-end engineer", "frontend dev") to one of the configured role
// names.
//
// Resolution runs in three stages:
//
//  1. Normalised equality: case, punctuation and spacing are ignored, so
//     "Back-end Engineer" equals "Backend engineer".
//  2. Phonetic candidates: the words that differ between the two names are
//     compared by Double Metaphone code. A candidate whose codes overlap is
//     accepted at a Jaro-Winkler score of at least the phonetic threshold.
//  3. Fuzzy fallback: without phonetic overlap, a candidate needs the higher
//     fuzzy threshold.
//
// Words shared by both names ("engineer") never count as phonetic evidence,
// otherwise every engineering role would match every other.
package rolematch

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.88
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a
// phonetically overlapping candidate. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when there is no
// phonetic overlap. Default: 0.88.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher is safe for concurrent use; it is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the given options applied.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the candidate that best matches name. When matched is false
// the returned name is empty and confidence is 0. Ties keep the earlier
// candidate.
func (m *Matcher) Match(name string, candidates []string) (best string, confidence float64, matched bool) {
	in := tokenize(name)
	if len(in) == 0 || len(candidates) == 0 {
		return "", 0, false
	}
	inJoined := strings.Join(in, "")

	var (
		bestScore    float64
		bestPhonetic bool
	)
	for _, cand := range candidates {
		ct := tokenize(cand)
		if len(ct) == 0 {
			continue
		}
		cJoined := strings.Join(ct, "")
		if cJoined == inJoined {
			return cand, 1, true
		}

		score := max(
			matchr.JaroWinkler(strings.Join(in, " "), strings.Join(ct, " "), false),
			matchr.JaroWinkler(inJoined, cJoined, false),
		)
		a, b := distinct(in, ct)
		phonetic := codesOverlap(codesFor(a), codesFor(b))

		switch {
		case phonetic && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = cand, score, true
			}
		case !phonetic && !bestPhonetic && score >= m.fuzzyThreshold:
			if score > bestScore {
				best, bestScore = cand, score
			}
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// tokenize lowercases s and splits it on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// distinct drops the tokens present in both slices.
func distinct(a, b []string) ([]string, []string) {
	inB := make(map[string]bool, len(b))
	for _, t := range b {
		inB[t] = true
	}
	inA := make(map[string]bool, len(a))
	for _, t := range a {
		inA[t] = true
	}
	var outA, outB []string
	for _, t := range a {
		if !inB[t] {
			outA = append(outA, t)
		}
	}
	for _, t := range b {
		if !inA[t] {
			outB = append(outB, t)
		}
	}
	return outA, outB
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
