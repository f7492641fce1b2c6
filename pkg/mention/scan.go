package mention

import (
	"regexp"
	"unicode/utf8"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Token is one "@username" occurrence. Offsets count characters, not bytes;
// End is Start plus the length of "@username".
type Token struct {
	Username string
	Start    int
	End      int
}

// Scan finds mention tokens left to right without overlap.
func Scan(text string) []Token {
	matches := mentionPattern.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		start := utf8.RuneCountInString(text[:m[0]])
		tokens = append(tokens, Token{
			Username: text[m[2]:m[3]],
			Start:    start,
			End:      start + utf8.RuneCountInString(text[m[0]:m[1]]),
		})
	}
	return tokens
}
