// Package tokenize implements the BM25 tokenization rule shared by the
// Retriever's query and chunk text: lowercase, collapse non-word runs to
// spaces, split on whitespace, and keep tokens of at least two characters.
package tokenize

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Tokens tokenizes text per the rule above.
func Tokens(text string) []string {
	lowered := strings.ToLower(text)
	cleaned := nonWord.ReplaceAllString(lowered, " ")

	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
