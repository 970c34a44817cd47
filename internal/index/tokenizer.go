package index

import (
	"strings"
	"unicode"
)

// Tokenize breaks text into normalized terms: lowercased, split on
// whitespace, with leading and trailing non-alphanumeric runes trimmed from
// each token. Tokens that trim to nothing are dropped. Indexing and query
// paths share this function; search correctness depends on that symmetry.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		term := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
