package cache

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lowerFull lowercases s using full Unicode case mapping, so keys match those
// written by other clients of the same cache. Unlike strings.ToLower, 'İ'
// (U+0130) becomes "i" followed by a combining dot above, and 'Σ' becomes
// final sigma 'ς' at the end of a word.
func lowerFull(s string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Lower(language.Und).String(s)
}
