package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/openers/internal/model"
)

// rule is one named extraction pass over free text. Pattern finds matches,
// Capture turns a submatch slice into artifact text ("" skips the match) and
// Score rates the captured text.
type rule struct {
	Name    string
	Pattern *regexp.Regexp
	Type    model.ArtifactType
	Capture func(m []string) string
	Score   func(text string) float64

	// SkipContained drops a match already contained in a collected text.
	SkipContained bool

	// KeepOpening decides whether a capture whose match opens a sentence is
	// kept. Nil keeps every capture.
	KeepOpening func(m []string, text string) bool
}

func flat(v float64) func(string) float64 {
	return func(string) float64 { return v }
}

func group(i int) func([]string) string {
	return func(m []string) string {
		if i >= len(m) {
			return ""
		}
		return strings.TrimSpace(m[i])
	}
}

// knownTools maps lowercase names to canonical casing.
var knownTools = map[string]string{
	"servicetitan":     "ServiceTitan",
	"housecall pro":    "Housecall Pro",
	"jobber":           "Jobber",
	"fieldedge":        "FieldEdge",
	"successware":      "Successware",
	"servicem8":        "ServiceM8",
	"workiz":           "Workiz",
	"service fusion":   "Service Fusion",
	"hubspot":          "HubSpot",
	"salesforce":       "Salesforce",
	"zoho crm":         "Zoho CRM",
	"pipedrive":        "Pipedrive",
	"quickbooks":       "QuickBooks",
	"xero":             "Xero",
	"shopify":          "Shopify",
	"mailchimp":        "Mailchimp",
	"calendly":         "Calendly",
	"podium":           "Podium",
	"birdeye":          "Birdeye",
	"nicejob":          "NiceJob",
	"zendesk":          "Zendesk",
	"intercom":         "Intercom",
	"procore":          "Procore",
	"buildertrend":     "Buildertrend",
	"google workspace": "Google Workspace",
}

// commonNounTools are brands that are also ordinary words ("intercom
// systems", "took the podium"). They only match in brand casing and never
// when opening a sentence.
var commonNounTools = map[string]bool{
	"intercom": true,
	"podium":   true,
	"jobber":   true,
}

// canonicalTool returns the canonical casing for a known tool name.
func canonicalTool(name string) (string, bool) {
	c, ok := knownTools[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

var camelCaseRe = regexp.MustCompile(`[a-z][A-Z]`)

// brandShaped reports whether a token looks like a product brand rather than
// an ordinary capitalized word.
func brandShaped(s string) bool {
	if _, ok := canonicalTool(s); ok {
		return true
	}
	return camelCaseRe.MatchString(s)
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true,
	"DE": true, "DC": true, "FL": true, "GA": true, "HI": true, "ID": true, "IL": true,
	"IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true,
	"NV": true, "NH": true, "NJ": true, "NM": true, "NY": true, "NC": true, "ND": true,
	"OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true, "SD": true,
	"TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true,
}

// certLeadWords are capitalized sentence words that precede "certified"
// without naming a certifying body.
var certLeadWords = map[string]bool{
	"fully": true, "factory": true, "board": true, "state": true, "is": true,
	"are": true, "and": true, "also": true, "we": true, "our": true, "all": true,
	"being": true, "get": true, "now": true, "highly": true,
}

// properNounSkip are capitalized words that start sentences rather than name things.
var properNounSkip = map[string]bool{
	"the": true, "we": true, "our": true, "us": true, "this": true, "that": true,
	"these": true, "those": true, "your": true, "you": true, "a": true, "an": true,
	"it": true, "its": true, "they": true, "their": true, "i": true, "my": true,
	"if": true, "when": true, "with": true, "for": true, "from": true, "at": true,
	"in": true, "on": true, "as": true, "and": true, "but": true, "or": true,
	"since": true, "serving": true, "call": true, "contact": true, "get": true,
	"whether": true, "all": true, "every": true, "each": true, "here": true,
	"there": true, "what": true, "why": true, "how": true, "who": true, "now": true,
	"today": true, "yes": true, "no": true, "inc": true, "llc": true,
}

func captureProperNoun(m []string) string {
	words := strings.Fields(m[0])
	for len(words) > 0 && properNounSkip[normalizeToken(words[0])] {
		words = words[1:]
	}
	if len(words) == 0 {
		return ""
	}
	text := strings.Join(words, " ")
	if len(text) < 3 {
		return ""
	}
	if len(words) == 1 && usStates[strings.ToUpper(text)] && strings.ToUpper(text) == text {
		return ""
	}
	return text
}

var acronymRe = regexp.MustCompile(`^[A-Z0-9&]{2,}$`)

// keepOpeningProperNoun drops a lone capitalized word that opens a sentence,
// since sentence case alone says nothing about it being a name. Mixed-case
// and acronym tokens are kept, as are words that followed a stripped filler
// word ("The Jones").
func keepOpeningProperNoun(m []string, text string) bool {
	if text != strings.TrimSpace(m[0]) || len(strings.Fields(text)) > 1 {
		return true
	}
	return camelCaseRe.MatchString(text) || acronymRe.MatchString(text)
}

func never(_ []string, _ string) bool { return false }

func captureBrandSuffix(m []string) string {
	name := strings.TrimSpace(m[1])
	if !brandShaped(name) {
		return ""
	}
	if c, ok := canonicalTool(name); ok {
		return c
	}
	return name
}

func capturePoweredBy(m []string) string {
	name := strings.TrimSpace(m[1])
	if c, ok := canonicalTool(name); ok {
		return c
	}
	return name
}

func captureCertPrefix(m []string) string {
	if certLeadWords[strings.ToLower(m[1])] || brandShaped(m[1]) {
		return ""
	}
	return strings.TrimSpace(m[0])
}

func captureCertSuffix(m []string) string {
	return m[1] + " certified"
}

func captureLocation(m []string) string {
	text := strings.TrimSpace(m[1])
	text = strings.TrimPrefix(text, "the ")
	if i := strings.LastIndex(text, ","); i >= 0 {
		if !usStates[strings.TrimSpace(text[i+1:])] {
			text = strings.TrimSpace(text[:i])
		}
	}
	return text
}

func captureCityState(m []string) string {
	if !usStates[m[2]] {
		return ""
	}
	return strings.TrimSpace(m[1]) + ", " + m[2]
}

func captureHiring(m []string) string {
	return "hiring " + strings.Join(strings.Fields(m[1]), " ")
}

func captureFounded(m []string) string {
	return "since " + m[1]
}

func captureKnownTool(m []string) string {
	c, _ := canonicalTool(m[1])
	return c
}

// knownToolPattern matches the dictionary. Distinctive names match in any
// case; common-noun brands match only in their brand spelling.
func knownToolPattern(commonNouns bool) *regexp.Regexp {
	names := make([]string, 0, len(knownTools))
	for k, brand := range knownTools {
		if commonNounTools[k] != commonNouns {
			continue
		}
		if commonNouns {
			k = brand
		}
		names = append(names, regexp.QuoteMeta(k))
	}
	// Longest first so "housecall pro" wins over shorter overlaps.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	flags := "(?i)"
	if commonNouns {
		flags = ""
	}
	return regexp.MustCompile(flags + `\b(` + strings.Join(names, "|") + `)\b`)
}

// defaultRules is evaluated in order; earlier rules claim a text first.
func defaultRules() []rule {
	return []rule{
		{
			Name:    "quoted_phrase",
			Pattern: regexp.MustCompile(`["“]([^"“”]{10,60})["”]`),
			Type:    model.ArtifactExactPhrase,
			Capture: group(1),
			Score:   func(text string) float64 { return Score(text, "") + 2.0 },
		},
		{
			Name:    "brand_powered_by",
			Pattern: regexp.MustCompile(`\b(?:[Pp]owered by|[Bb]uilt on|[Rr]uns on|[Ii]ntegrated with)\s+([A-Z][A-Za-z0-9]*(?:\s[A-Z][A-Za-z0-9]*)?)`),
			Type:    model.ArtifactToolPlatform,
			Capture: capturePoweredBy,
			Score:   flat(6.0),
		},
		{
			Name:    "brand_suffix",
			Pattern: regexp.MustCompile(`\b([A-Z][A-Za-z0-9]+)[\s-](?:[Cc]ertified|[Pp]artner)\b`),
			Type:    model.ArtifactToolPlatform,
			Capture: captureBrandSuffix,
			Score:   flat(6.0),
		},
		{
			Name:    "certification",
			Pattern: regexp.MustCompile(`\b([A-Z][A-Za-z0-9]{1,14})[\s-][Cc]ertified\b`),
			Type:    model.ArtifactServiceProgram,
			Capture: captureCertPrefix,
			Score:   flat(4.0),
		},
		{
			Name:    "certification_by",
			Pattern: regexp.MustCompile(`\b[Cc]ertified\s+(?:by\s+(?:the\s+)?)?([A-Z][A-Z0-9]{1,9})\b`),
			Type:    model.ArtifactServiceProgram,
			Capture: captureCertSuffix,
			Score:   flat(4.0),
		},
		{
			Name:    "named_program",
			Pattern: regexp.MustCompile(`\b(?:[Tt]he|[Oo]ur)\s+((?:[A-Z][\w'&-]*\s+){1,4}(?:Club|Program|Plan|Membership|Guarantee|Rewards|Promise))\b`),
			Type:    model.ArtifactServiceProgram,
			Capture: group(1),
			Score:   flat(4.5),
		},
		{
			Name:    "review_count",
			Pattern: regexp.MustCompile(`\b\d\.\d\s*-?\s*stars?\s+(?:across|from|on|over|with)\s+\d[\d,]*\+?\s+(?:reviews|ratings)\b`),
			Type:    model.ArtifactReviewSignal,
			Capture: group(0),
			Score:   flat(5.0),
		},
		{
			Name:    "review_five_star",
			Pattern: regexp.MustCompile(`\b\d[\d,]*\+?\s+(?:five-star|5-star)\s+reviews\b`),
			Type:    model.ArtifactReviewSignal,
			Capture: group(0),
			Score:   flat(5.0),
		},
		{
			Name:    "hiring",
			Pattern: regexp.MustCompile(`(?i)\b(?:now hiring|we(?:'re| are) hiring)\s*:?\s+(?:for\s+)?((?:[a-z]+\s+){0,2}(?:technicians|techs|plumbers|electricians|installers|drivers|apprentices|managers|estimators|roofers|painters|cleaners|mechanics|specialists|coordinators))\b`),
			Type:    model.ArtifactHiringSignal,
			Capture: captureHiring,
			Score:   flat(3.5),
		},
		{
			Name:    "founded",
			Pattern: regexp.MustCompile(`(?i)\b(?:since|founded in|established in|est\.)\s+((?:19|20)\d{2})\b`),
			Type:    model.ArtifactYearsInBusiness,
			Capture: captureFounded,
			Score:   flat(3.0),
		},
		{
			Name:    "known_tool",
			Pattern: knownToolPattern(false),
			Type:    model.ArtifactToolPlatform,
			Capture: captureKnownTool,
			Score:   flat(5.0),
		},
		{
			Name:    "known_tool_common_noun",
			Pattern: knownToolPattern(true),
			Type:    model.ArtifactToolPlatform,
			Capture: captureKnownTool,
			Score:   flat(5.0),

			KeepOpening: never,
		},
		{
			Name:    "location_serving",
			Pattern: regexp.MustCompile(`\b[Ss]erving\s+((?:the\s+)?(?:[A-Z][a-z]+\s?){1,3}(?:,\s*[A-Z]{2})?)`),
			Type:    model.ArtifactLocation,
			Capture: captureLocation,
			Score:   flat(2.0),
		},
		{
			Name:    "location_city_state",
			Pattern: regexp.MustCompile(`\b([A-Z][a-z]+(?:\s[A-Z][a-z]+){0,2}),\s*([A-Z]{2})\b`),
			Type:    model.ArtifactLocation,
			Capture: captureCityState,
			Score:   flat(2.0),
		},
		{
			Name:    "proper_noun",
			Pattern: regexp.MustCompile(`\b[A-Z][\w&'-]+(?:\s+[A-Z][\w&'-]+){0,3}\b`),
			Type:    model.ArtifactCompanyDescription,
			Capture: captureProperNoun,
			Score:   func(text string) float64 { return Score(text, "") },

			SkipContained: true,
			KeepOpening:   keepOpeningProperNoun,
		},
	}
}
