package extract

import (
	"regexp"
	"strings"
)

// Scraped navigation and boilerplate that never identifies a company.
var genericExact = map[string]bool{
	"home": true, "home page": true, "about": true, "about us": true,
	"contact": true, "contact us": true, "services": true, "our services": true,
	"learn more": true, "read more": true, "get started": true,
	"free estimate": true, "free estimates": true, "request a quote": true,
	"get a quote": true, "call now": true, "call today": true, "book now": true,
	"schedule now": true, "schedule service": true, "menu": true, "faq": true,
	"faqs": true, "testimonials": true, "reviews": true, "blog": true,
	"careers": true, "gallery": true, "our team": true, "meet the team": true,
	"privacy policy": true, "terms of service": true, "sitemap": true,
	"welcome": true, "view all": true, "see all": true, "why choose us": true,
	"what we do": true, "who we are": true, "our work": true, "our story": true,
	"service areas": true, "service area": true, "locations": true,
	"our customers": true, "our clients": true, "financing": true,
	"special offers": true, "coupons": true,
}

var genericPrefixes = []string{
	"welcome to ",
	"learn more",
	"read more",
	"contact us",
	"call us",
	"get a ",
	"request a ",
	"see our ",
	"view our ",
	"check out ",
	"thank you",
}

var genericSuffixes = []string{
	" near me",
	" and more",
	" & more",
	" today",
	" now",
	" here",
}

var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[\d\s.,:+()\-/#%$]+$`),
	regexp.MustCompile(`^[A-Za-z]{2,3}$`),
	regexp.MustCompile(`(?i)^(?:click|call|visit|tap|book|schedule|request|get|contact|learn|read|see|view|download|subscribe|sign up|sign in|log in|shop|order|apply|text|email)\b`),
	regexp.MustCompile(`(?i)(?:©|copyright|all rights reserved|privacy policy|terms (?:of|and) (?:use|service|conditions)|cookie|disclaimer|accessibility statement)`),
}

// isGenericElement reports whether scraped element text is navigation,
// boilerplate, or otherwise too generic to personalize with.
func isGenericElement(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.TrimRight(lower, ".!?:")
	if lower == "" {
		return true
	}
	if genericExact[lower] {
		return true
	}
	for _, p := range genericPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, s := range genericSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	for _, re := range genericPatterns {
		if re.MatchString(strings.TrimSpace(text)) {
			return true
		}
	}
	return false
}

const (
	minElementWords = 2
	maxElementWords = 8
)

// withinElementLength applies the 2–8 word filter for scraped elements.
func withinElementLength(text string) bool {
	n := len(strings.Fields(text))
	return n >= minElementWords && n <= maxElementWords
}
