package validate

import (
	"fmt"
	"strings"

	"github.com/sells-group/openers/internal/model"
)

// Quality penalties for model-authored lines.
const (
	penaltyBannedWord  = 30
	penaltyTruncated   = 25
	penaltyUnclosed    = 20
	penaltyLength      = 20
	penaltyArtifact    = 15
	penaltyFabrication = 40
	penaltyOther       = 10

	// minRetryScore is the lowest score worth another attempt.
	minRetryScore = 40
)

// AIValidator scores a model-authored line and wraps the LineValidator gate.
// A line is valid only if the gate passes and no heuristic fired.
type AIValidator struct {
	Lines *LineValidator
}

// NewAIValidator returns an AIValidator over lines.
func NewAIValidator(lines *LineValidator) *AIValidator {
	if lines == nil {
		lines = NewLineValidator(0, 0)
	}
	return &AIValidator{Lines: lines}
}

// Validate scores line from 100 down and suggests accept, retry or fallback.
func (v *AIValidator) Validate(line string, artifact model.Artifact, allArtifacts []model.Artifact, company string) model.AIValidationResult {
	line = strings.TrimSpace(line)
	score := 100
	var errs []string
	penalize := func(points int, msg string) {
		score -= points
		errs = append(errs, msg)
	}

	if line == "" {
		return model.AIValidationResult{
			Errors:          []string{CheckIncomplete + ": empty line"},
			SuggestedAction: model.ActionFallback,
		}
	}

	if words := append(bannedTiming(line), bannedHype(line)...); len(words) > 0 {
		penalize(penaltyBannedWord, CheckBannedWord+": "+strings.Join(words, ", "))
	}

	if truncated(line) {
		penalize(penaltyTruncated, CheckIncomplete+": line looks truncated")
	}

	if unclosedQuote(line) {
		penalize(penaltyUnclosed, CheckIncomplete+": unclosed quote")
	}

	if n := wordCount(line); n < v.Lines.MinWords || n > v.Lines.MaxWords {
		penalize(penaltyLength, fmt.Sprintf("%s: %d words, want %d-%d", CheckWordCount, n, v.Lines.MinWords, v.Lines.MaxWords))
	}

	if !artifact.IsFallback() && !strings.Contains(strings.ToLower(line), strings.ToLower(artifact.Text)) {
		penalize(penaltyArtifact, fmt.Sprintf("%s: line does not contain %q", CheckArtifactMissing, artifact.Text))
	}

	for _, re := range fabricationPatterns {
		if m := re.FindString(line); m != "" {
			penalize(penaltyFabrication, fmt.Sprintf("%s: implies first-hand experience %q", CheckFabrication, m))
			break
		}
	}

	// Gate failures not already scored above cost a flat penalty each.
	gate := v.Lines.Validate(line, artifact, allArtifacts, company)
	for _, e := range gate.Errors {
		if scored(e) {
			continue
		}
		penalize(penaltyOther, e)
	}

	if score < 0 {
		score = 0
	}
	res := model.AIValidationResult{
		IsValid:      len(errs) == 0,
		Errors:       errs,
		QualityScore: score,
	}
	switch {
	case res.IsValid:
		res.SuggestedAction = model.ActionAccept
	case score >= minRetryScore:
		res.SuggestedAction = model.ActionRetry
	default:
		res.SuggestedAction = model.ActionFallback
	}
	return res
}

// scored reports whether a gate error was already covered by a heuristic
// penalty.
func scored(e string) bool {
	for _, c := range []string{CheckBannedWord, CheckWordCount, CheckArtifactMissing, CheckFabrication} {
		if strings.HasPrefix(e, c+":") {
			return true
		}
	}
	return strings.HasPrefix(e, CheckIncomplete+": missing terminal")
}

func truncated(line string) bool {
	if strings.HasSuffix(line, "...") || strings.HasSuffix(line, "…") {
		return true
	}
	return !terminalRe.MatchString(line)
}

func unclosedQuote(line string) bool {
	if strings.Count(line, `"`)%2 != 0 {
		return true
	}
	return strings.Count(line, "“") != strings.Count(line, "”")
}
