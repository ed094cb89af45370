package pattern

import (
	"strings"
	"unicode"
)

// Derive builds a glob from a transaction's free text by keeping the
// stable word tokens and replacing volatile runs (digits, references,
// dates) with wildcards. Returns "" when the text carries no stable
// token worth learning from.
func Derive(freeText string) string {
	text := strings.ToLower(strings.TrimSpace(freeText))
	if text == "" {
		return ""
	}

	var parts []string
	for _, token := range strings.Fields(text) {
		if isVolatile(token) {
			continue
		}
		parts = append(parts, strings.Trim(token, "*"))
	}
	if len(parts) == 0 {
		return ""
	}

	return "*" + strings.Join(parts, "*") + "*"
}

// isVolatile reports whether a token is per-transaction noise rather than
// a recognizable counterparty marker: digit-heavy references, dates,
// very short fragments.
func isVolatile(token string) bool {
	if len(token) < 3 {
		return true
	}
	digits := 0
	letters := 0
	for _, r := range token {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return true
	}
	return digits > letters
}
