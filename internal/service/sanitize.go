package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// maxSanitizePasses bounds nested entity encodings such as "&amp;lt;b&amp;gt;".
const maxSanitizePasses = 8

// plainText strips every tag from user input and trims surrounding whitespace. Entities are
// decoded so "&" stays "&" in the stored text; decoding can reveal markup that was hidden
// behind entities, so the text is sanitized again until it no longer changes.
func plainText(s string) string {
	out := s
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(plainTextPolicy.Sanitize(out))
		if next == out {
			return strings.TrimSpace(out)
		}
		out = next
	}
	// still changing: keep the escaped form
	return strings.TrimSpace(plainTextPolicy.Sanitize(out))
}
