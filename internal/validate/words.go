package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// timingWords imply a recency the pipeline cannot verify.
var timingWords = []string{
	"recently", "just", "rolled out", "implemented", "launched", "new", "latest",
}

// hypeWords read as flattery rather than observation.
var hypeWords = []string{
	"amazing", "awesome", "incredible", "impressive", "great", "fantastic",
	"outstanding", "exceptional", "remarkable", "stellar", "phenomenal", "innovative",
}

var (
	timingRe = wordListRegexp(timingWords)
	hypeRe   = wordListRegexp(hypeWords)
)

// wordListRegexp matches any entry as a whole word, case-insensitively.
// Multi-word entries tolerate any run of whitespace between words.
func wordListRegexp(words []string) *regexp.Regexp {
	parts := make([]string, len(words))
	for i, w := range words {
		fields := strings.Fields(w)
		for j, f := range fields {
			fields[j] = regexp.QuoteMeta(f)
		}
		parts[i] = strings.Join(fields, `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

// bannedTiming returns the timing words found in s, lowercased.
func bannedTiming(s string) []string {
	return uniqueLower(timingRe.FindAllString(s, -1))
}

// bannedHype returns the hype adjectives found in s, lowercased.
func bannedHype(s string) []string {
	return uniqueLower(hypeRe.FindAllString(s, -1))
}

func uniqueLower(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = strings.ToLower(strings.Join(strings.Fields(s), " "))
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// genericStandalone rejects only on an exact match: countries and
// industry jargon that says nothing about one company.
var genericStandalone = map[string]bool{
	"usa": true, "us": true, "u.s": true, "united states": true, "america": true,
	"united states of america": true, "canada": true, "mexico": true, "uk": true,
	"united kingdom": true, "north america": true,
	"solutions": true, "services": true, "innovation": true, "excellence": true,
	"quality": true, "integrity": true, "experience": true, "professionalism": true,
	"customer satisfaction": true, "best practices": true, "industry leader": true,
	"industry leaders": true, "one-stop shop": true, "one stop shop": true,
	"full service": true, "full-service": true, "world class": true,
	"world-class": true, "state of the art": true, "state-of-the-art": true,
	"cutting edge": true, "cutting-edge": true, "synergy": true, "value": true,
	"results": true, "commitment": true, "reliability": true, "peace of mind": true,
}

// genericCategories are bare service-category nouns, rejected on exact match.
var genericCategories = map[string]bool{
	"hvac": true, "plumbing": true, "electrical": true, "roofing": true,
	"landscaping": true, "cleaning": true, "restoration": true,
	"construction": true, "remodeling": true, "painting": true,
	"pest control": true, "water damage": true, "heating": true, "cooling": true,
	"air conditioning": true, "contractor": true, "contractors": true,
	"heating and cooling": true, "home services": true,
}

// genericMarketing rejects on word-boundary containment.
var genericMarketing = []string{
	"quality service", "family owned", "family-owned", "we provide",
	"customer service", "trusted partner", "trusted", "satisfaction guaranteed",
	"free estimate", "free estimates", "licensed and insured",
	"years of experience", "second to none", "best in class", "top quality",
	"affordable prices", "locally owned",
}

var genericMarketingRe = wordListRegexp(genericMarketing)

// normalizePhrase lowercases s, collapses whitespace and trims surrounding
// punctuation.
func normalizePhrase(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	return strings.TrimFunc(s, unicode.IsPunct)
}

// genericReason returns why text is too generic to personalize with, or "".
func genericReason(text string) string {
	norm := normalizePhrase(text)
	switch {
	case genericStandalone[norm]:
		return "generic term " + quote(norm)
	case genericCategories[norm]:
		return "bare service category " + quote(norm)
	}
	if m := genericMarketingRe.FindString(text); m != "" {
		return "generic marketing phrase " + quote(strings.ToLower(m))
	}
	return ""
}

func quote(s string) string {
	return `"` + s + `"`
}

// wordCount counts whitespace-separated tokens carrying a letter or digit.
func wordCount(s string) int {
	n := 0
	for _, f := range strings.Fields(s) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}

// containsPhrase reports whether needle occurs in hay on word boundaries.
// Both must already be lowercased.
func containsPhrase(hay, needle string) bool {
	if needle == "" {
		return false
	}
	for off := 0; off < len(hay); {
		i := strings.Index(hay[off:], needle)
		if i < 0 {
			return false
		}
		start, end := off+i, off+i+len(needle)
		if wordEdge(hay[:start], true) && wordEdge(hay[end:], false) {
			return true
		}
		_, size := utf8.DecodeRuneInString(hay[start:])
		off = start + size
	}
	return false
}

// wordEdge reports whether s ends (before) or starts (!before) outside a
// word.
func wordEdge(s string, before bool) bool {
	if s == "" {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(s)
	} else {
		r, _ = utf8.DecodeRuneInString(s)
	}
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// BannedWords returns the timing and hype words found in s, lowercased.
func BannedWords(s string) []string {
	return append(bannedTiming(s), bannedHype(s)...)
}
