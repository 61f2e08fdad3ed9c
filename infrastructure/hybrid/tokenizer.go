package hybrid

import "strings"

// Tokenize splits source text into lexical index terms. The input is split
// on any character outside [A-Za-z0-9_], identifiers are further split on
// underscores and on lower-to-upper case boundaries, everything is
// lowercased, and tokens shorter than 2 bytes are dropped.
//
// Queries and documents must pass through the same tokenizer so term
// statistics line up.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() == 0 {
			return
		}
		tokens = appendIdentifierParts(tokens, word.String())
		word.Reset()
	}

	for _, r := range text {
		if isWordRune(r) {
			word.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// appendIdentifierParts splits one identifier on underscores and camelCase
// boundaries, lowercases the parts, and appends those at least 2 bytes long.
func appendIdentifierParts(tokens []string, identifier string) []string {
	for _, part := range strings.Split(identifier, "_") {
		start := 0
		runes := []rune(part)
		for i := 1; i < len(runes); i++ {
			if isLower(runes[i-1]) && isUpper(runes[i]) {
				tokens = appendToken(tokens, string(runes[start:i]))
				start = i
			}
		}
		if start < len(runes) {
			tokens = appendToken(tokens, string(runes[start:]))
		}
	}
	return tokens
}

func appendToken(tokens []string, token string) []string {
	token = strings.ToLower(token)
	if len(token) < 2 {
		return tokens
	}
	return append(tokens, token)
}

func isLower(r rune) bool { return r >= 'a' && r <= 'z' }

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
