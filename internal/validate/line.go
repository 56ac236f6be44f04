package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sells-group/openers/internal/model"
)

// Default line length bounds, in words.
const (
	DefaultMinLineWords = 5
	DefaultMaxLineWords = 30

	// verbLenientWords is the length at which the verb check is skipped.
	verbLenientWords = 10
	// openerWindow is how many leading words may contain "you"/"your".
	openerWindow = 8
)

// Check names prefix every line-level error as "<check>: <detail>".
const (
	CheckWordCount       = "word_count"
	CheckBannedWord      = "banned_word"
	CheckArtifactMissing = "artifact_missing"
	CheckStacking        = "stacking"
	CheckFabrication     = "fabrication"
	CheckIncomplete      = "incomplete"
	CheckPlaceholder     = "placeholder"
	CheckOpener          = "opener"
	CheckCompanySubject  = "company_subject"
	CheckCompanyMismatch = "company_mismatch"
)

// HasCheck reports whether res failed the named check.
func HasCheck(errs []string, check string) bool {
	for _, e := range errs {
		if strings.HasPrefix(e, check+":") {
			return true
		}
	}
	return false
}

var fabricationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bI\s+(?:met|attended|visited|stopped by|was at|ran into|toured|spoke with|talked to|saw you)\b`),
	regexp.MustCompile(`(?i)\bat\s+the\s+(?:[\w'&-]+\s+){0,5}(?:expo|conference|summit|trade show|show|convention|meetup)\b`),
	regexp.MustCompile(`(?i)\byour\s+booth\b`),
	regexp.MustCompile(`(?i)\bwe\s+(?:met|spoke|talked|chatted)\b`),
	regexp.MustCompile(`(?i)\bgreat\s+meeting\s+you\b`),
	regexp.MustCompile(`(?i)\bnice\s+(?:to\s+meet|meeting)\s+you\b`),
}

var (
	terminalRe    = regexp.MustCompile(`[.!?]["'”’)\]]*$`)
	danglingRe    = regexp.MustCompile(`(?i)\b(?:is|are|the|a|an|and|for|with|in|to)\s*[.!?]+["'”’)\]]*$`)
	placeholderRe = regexp.MustCompile(`\{[^}]*\}`)

	phraseRe     = regexp.MustCompile(`\b[A-Z][\w&'’-]*(?:\s+[A-Z][\w&'’-]*)+`)
	possessiveRe = regexp.MustCompile(`\b([A-Z][\w&-]*)['’]s\b`)

	corpSuffixRe = regexp.MustCompile(`(?i)[,\s]+(?:llc|l\.l\.c\.|inc\.?|incorporated|co\.?|corp\.?|corporation|ltd\.?|company)$`)
)

var verbTokens = map[string]bool{
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"has": true, "have": true, "had": true, "do": true, "does": true, "did": true,
	"offers": true, "offer": true, "provides": true, "provide": true,
	"serves": true, "serve": true, "serving": true, "runs": true, "run": true,
	"uses": true, "use": true, "using": true, "works": true, "work": true,
	"helps": true, "help": true, "noticed": true, "saw": true, "seen": true,
	"came": true, "caught": true, "stood": true, "stuck": true, "stands": true,
	"looks": true, "look": true, "says": true, "said": true, "earned": true,
	"based": true, "mentioned": true, "hiring": true, "keep": true, "keeps": true,
	"wanted": true, "want": true, "handled": true, "handles": true, "built": true,
	"builds": true, "read": true, "spotted": true, "found": true, "loved": true,
	"love": true, "shows": true, "grew": true, "covers": true, "reach": true,
}

// openers are approved first words or phrases, lowercase.
var openers = []string{
	"noticed", "saw", "came across", "your", "spotted", "caught", "read",
	"found", "loved", "love", "looks like", "seeing", "checked out",
	"stumbled on", "congrats",
}

// fillerWords never indicate another company by themselves.
var fillerWords = map[string]bool{
	"noticed": true, "saw": true, "came": true, "across": true, "your": true,
	"you": true, "i": true, "the": true, "we": true, "our": true, "my": true,
	"a": true, "an": true, "this": true, "that": true, "hi": true, "hey": true,
	"spotted": true, "caught": true, "read": true, "found": true, "loved": true,
	"google": true, "reviews": true, "yelp": true, "facebook": true,
	"linkedin": true, "instagram": true, "bbb": true, "better": true,
	"business": true, "bureau": true, "angi": true, "homeadvisor": true,
	"thumbtack": true, "nextdoor": true, "houzz": true, "trustpilot": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true, "may": true,
	"june": true, "july": true, "august": true, "september": true,
	"october": true, "november": true, "december": true,
}

// companyStopWords are ignored when comparing a phrase to the company name.
var companyStopWords = map[string]bool{
	"the": true, "and": true, "&": true, "of": true, "llc": true, "inc": true,
	"co": true, "corp": true, "company": true, "ltd": true,
}

// LineValidator is the final hard gate on a rendered line.
type LineValidator struct {
	MinWords int
	MaxWords int
}

// NewLineValidator returns a LineValidator. Non-positive bounds use the defaults.
func NewLineValidator(minWords, maxWords int) *LineValidator {
	if minWords <= 0 {
		minWords = DefaultMinLineWords
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxLineWords
	}
	return &LineValidator{MinWords: minWords, MaxWords: maxWords}
}

// Validate runs every line check and accumulates the failures. allArtifacts
// and company may be empty; the stacking and company checks then have less
// to compare against.
func (v *LineValidator) Validate(line string, artifact model.Artifact, allArtifacts []model.Artifact, company string) model.ValidationResult {
	line = strings.TrimSpace(line)
	var errs []string
	add := func(check, format string, args ...any) {
		errs = append(errs, check+": "+fmt.Sprintf(format, args...))
	}

	n := wordCount(line)
	if n < v.MinWords || n > v.MaxWords {
		add(CheckWordCount, "%d words, want %d-%d", n, v.MinWords, v.MaxWords)
	}

	for _, w := range bannedTiming(line) {
		add(CheckBannedWord, "timing word %q", w)
	}
	for _, w := range bannedHype(line) {
		add(CheckBannedWord, "hype word %q", w)
	}

	if !artifact.IsFallback() && !strings.Contains(strings.ToLower(line), strings.ToLower(artifact.Text)) {
		add(CheckArtifactMissing, "line does not contain %q", artifact.Text)
	}

	if stacked := stackedTexts(line, artifact, allArtifacts); len(stacked) > 1 {
		add(CheckStacking, "%d artifacts in one line: %s", len(stacked), strings.Join(stacked, ", "))
	}

	for _, re := range fabricationPatterns {
		if m := re.FindString(line); m != "" {
			add(CheckFabrication, "implies first-hand experience %q", m)
			break
		}
	}

	switch {
	case !terminalRe.MatchString(line):
		add(CheckIncomplete, "missing terminal punctuation")
	case danglingRe.MatchString(line):
		add(CheckIncomplete, "ends on a dangling word")
	}
	if n < verbLenientWords && !hasVerb(line) {
		add(CheckIncomplete, "no verb")
	}

	if m := placeholderRe.FindString(line); m != "" {
		add(CheckPlaceholder, "unreplaced %s", m)
	}

	if !hasOpener(line) {
		add(CheckOpener, "line does not address the recipient")
	}

	if company = strings.TrimSpace(company); company != "" {
		if m := companySubject(line, company); m != "" {
			add(CheckCompanySubject, "company used as subject %q", m)
		}
		for _, c := range mismatchCandidates(line, company, artifact, allArtifacts) {
			add(CheckCompanyMismatch, "possible reference to %q", c)
		}
	}

	return model.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

// stackedTexts returns the distinct artifact texts present in line. A text
// found only inside another matched text counts once.
func stackedTexts(line string, artifact model.Artifact, all []model.Artifact) []string {
	lower := strings.ToLower(line)
	seen := make(map[string]bool)
	var matched []string
	consider := func(a model.Artifact) {
		if a.IsFallback() {
			return
		}
		key := strings.ToLower(strings.Join(strings.Fields(a.Text), " "))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		if containsPhrase(lower, key) {
			matched = append(matched, key)
		}
	}
	consider(artifact)
	for _, a := range all {
		consider(a)
	}

	var out []string
	for _, t := range matched {
		inner := false
		for _, u := range matched {
			if u != t && strings.Contains(u, t) {
				inner = true
				break
			}
		}
		if !inner {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func hasVerb(line string) bool {
	for _, f := range strings.Fields(line) {
		if verbTokens[trimToken(f)] {
			return true
		}
	}
	return false
}

func hasOpener(line string) bool {
	lower := strings.ToLower(line)
	for _, o := range openers {
		if strings.HasPrefix(lower, o) {
			rest := lower[len(o):]
			r, _ := utf8.DecodeRuneInString(rest)
			if rest == "" || !unicode.IsLetter(r) {
				return true
			}
		}
	}

	// Stat-led lines ("4.8 stars across ...") open on the number itself.
	if r, _ := utf8.DecodeRuneInString(line); unicode.IsDigit(r) {
		return true
	}

	words := strings.Fields(lower)
	if len(words) > openerWindow {
		words = words[:openerWindow]
	}
	for _, w := range words {
		switch trimToken(w) {
		case "you", "your", "you're", "youre", "yours":
			return true
		}
	}
	return false
}

// companyNames returns the forms of company worth matching: as given and
// without a trailing corporate suffix.
func companyNames(company string) []string {
	names := []string{company}
	if bare := strings.TrimSpace(corpSuffixRe.ReplaceAllString(company, "")); bare != "" && bare != company {
		names = append(names, bare)
	}
	return names
}

// companySubject returns the text where company acts as a sentence subject,
// or "".
func companySubject(line, company string) string {
	for _, name := range companyNames(company) {
		q := regexp.QuoteMeta(name)
		patterns := []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:^|[^\w])` + q + `['’]s\s+(?:[\w-]+\s+){0,3}(?:is|are|has|have|was|were)\b`),
			regexp.MustCompile(`(?i)(?:^|[^\w])` + q + `\s+(?:is|are|was|has|have|offers|provides|delivers|specializes|serves|helps|builds|runs|uses)\b`),
		}
		for _, re := range patterns {
			if m := re.FindString(line); m != "" {
				return strings.TrimSpace(m)
			}
		}
	}
	return ""
}

// mismatchCandidates returns capitalized names in line that look like some
// other company: not filler, not an artifact, and no word shared with company.
func mismatchCandidates(line, company string, artifact model.Artifact, all []model.Artifact) []string {
	var raw []string
	raw = append(raw, phraseRe.FindAllString(line, -1)...)
	for _, m := range possessiveRe.FindAllStringSubmatch(line, -1) {
		raw = append(raw, m[1])
	}

	companyWords := significantWords(company)
	artifactTexts := make([]string, 0, len(all)+1)
	if !artifact.IsFallback() {
		artifactTexts = append(artifactTexts, strings.ToLower(artifact.Text))
	}
	for _, a := range all {
		if !a.IsFallback() {
			artifactTexts = append(artifactTexts, strings.ToLower(a.Text))
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, cand := range raw {
		words := strings.Fields(cand)
		for len(words) > 0 && fillerWords[trimToken(words[0])] {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		cand = strings.Join(words, " ")
		cand = strings.TrimSuffix(strings.TrimSuffix(cand, "'s"), "’s")
		lower := strings.ToLower(cand)
		if seen[lower] {
			continue
		}
		seen[lower] = true

		if allFiller(words) || overlapsAny(lower, artifactTexts) || sharesWord(lower, companyWords) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func allFiller(words []string) bool {
	for _, w := range words {
		if !fillerWords[trimToken(w)] {
			return false
		}
	}
	return true
}

func overlapsAny(lower string, texts []string) bool {
	for _, t := range texts {
		if t == "" {
			continue
		}
		if strings.Contains(t, lower) || strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func sharesWord(lower string, words map[string]bool) bool {
	for _, w := range strings.Fields(lower) {
		if words[trimToken(w)] {
			return true
		}
	}
	return false
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		w = trimToken(w)
		if w != "" && !companyStopWords[w] {
			out[w] = true
		}
	}
	return out
}

// trimToken lowercases w and strips surrounding punctuation and a trailing
// possessive.
func trimToken(w string) string {
	w = strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	}))
	w = strings.TrimSuffix(strings.TrimSuffix(w, "'s"), "’s")
	return strings.Trim(w, "'’")
}
