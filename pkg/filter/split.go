// Package filter provides the search-term splitter used by the "all"
// secret filter.
package filter

import "unicode"

// SplitSearchTerms splits a search query value into terms to be
// individually prefix-matched.
//
//	testTerm   -> test, Term
//	TestTerm   -> Test, Term
//	test1term  -> test, 1, term
//	test term  -> test, " ", term
//	test#term  -> test, #, term
//
// A new term starts on a lower-to-upper case change, a letter/digit
// change, or an alphanumeric/non-alphanumeric change. Runs of
// non-alphanumeric characters stay together as one term.
func SplitSearchTerms(value string) []string {
	var terms []string
	var current []rune

	var prev rune
	hasPrev := false

	for _, c := range value {
		if hasPrev {
			split := (unicode.IsLower(prev) && unicode.IsUpper(c)) ||
				(unicode.IsLetter(prev) != unicode.IsLetter(c)) ||
				(unicode.IsDigit(prev) != unicode.IsDigit(c)) ||
				(isAlphanumeric(prev) != isAlphanumeric(c))

			if split && len(current) > 0 {
				terms = append(terms, string(current))
				current = current[:0]
			}
		}

		current = append(current, c)
		prev = c
		hasPrev = true
	}

	if len(current) > 0 {
		terms = append(terms, string(current))
	}

	return terms
}

func isAlphanumeric(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}
