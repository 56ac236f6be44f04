package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Source kinds recognised by Score. Element types double as source kinds.
const (
	KindClient   = "client"
	KindTool     = "tool"
	KindService  = "service"
	KindHeading  = "heading"
	KindCTA      = "cta"
	KindLocation = "location"
)

var sourceBonus = map[string]float64{
	KindClient:   3.0,
	KindTool:     3.0,
	KindService:  2.0,
	KindHeading:  1.5,
	KindCTA:      1.0,
	KindLocation: 1.0,
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "for": true, "with": true, "on": true, "at": true,
	"by": true, "from": true, "our": true, "your": true, "we": true, "us": true,
	"is": true, "are": true, "be": true, "as": true, "it": true, "that": true,
}

// Score rates how specific and recognisable a phrase is. Higher is better.
// The constants are fixed: ranking ties inside a type depend on them.
func Score(text, sourceKind string) float64 {
	words := strings.Fields(text)
	n := len(words)

	var s float64
	switch {
	case n >= 3 && n <= 5:
		s += 2.0
	case n == 2 || n == 6:
		s += 1.0
	}

	for _, w := range words {
		if isCapitalized(w) {
			s += 0.5
		}
	}

	s += sourceBonus[sourceKind]

	if strings.ContainsAny(text, "\"“”®™") {
		s += 1.0
	}

	if hasLetter(text) && strings.ToLower(text) == text {
		s -= 1.0
	}

	for _, w := range words {
		if stopWords[normalizeToken(w)] {
			s -= 0.3
		}
	}

	return s
}

func isCapitalized(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsUpper(r)
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// normalizeToken lowercases a word and trims surrounding punctuation.
func normalizeToken(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}))
}
