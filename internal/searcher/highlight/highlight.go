// Package highlight wraps query terms found in text with emphasis markers.
package highlight

import (
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/indexer/tokenizer"
)

const (
	OpenTag  = "<mark>"
	CloseTag = "</mark>"
)

// Matches returns text with every whole-word, case-insensitive occurrence of
// each query token wrapped in OpenTag/CloseTag.
//
// Each token gets its own replacement pass, in query order, over the output
// of the previous pass. Later passes therefore see the markers inserted by
// earlier ones: a repeated token is wrapped twice and a token such as
// "mark" also matches inside the tags. The original case of the matched
// text is kept.
func Matches(text, query string) string {
	result := text
	for _, term := range tokenizer.Tokenize(query) {
		re := regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(term) + `)\b`)
		result = re.ReplaceAllString(result, OpenTag+"${1}"+CloseTag)
	}
	return result
}
