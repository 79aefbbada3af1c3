// Package tokenizer splits text into the lowercase word tokens used by the
// index and by queries.
//
// A token is a maximal run of ASCII word characters [a-z0-9_] after
// lowercasing. Every other rune, including non-ASCII letters, separates
// tokens, so "café" yields "caf". These are the same word boundaries the
// highlighter's `\b` matches on.
package tokenizer

import "strings"

// Tokenize lowercases text and returns its word tokens in order, keeping
// repeated occurrences.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/6+1)
	start := -1
	for i := 0; i < len(text); i++ {
		if IsWordByte(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// IsWordByte reports whether b is an ASCII word character. Bytes of
// multi-byte UTF-8 sequences are all >= 0x80 and never match.
func IsWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
