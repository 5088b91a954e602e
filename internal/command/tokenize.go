package command

import (
	"strings"
	"unicode"
)

// Tokenize splits line on whitespace outside quoted spans. A single or double
// quote opens a span that runs to the matching quote of the same kind (or to
// the end of the line) and may contain whitespace; the quotes themselves are
// dropped. Tokenize never fails; blank input yields no tokens.
func Tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	var quote rune
	inToken := false

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
