package personalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/openers/internal/model"
	"github.com/sells-group/openers/internal/validate"
)

const (
	// DefaultAIAttempts bounds authoring attempts before the canned fallback.
	DefaultAIAttempts = 3
	// maxPromptArtifacts caps the candidate list shown to the model.
	maxPromptArtifacts = 8
)

// Author writes free text for a prompt.
type Author interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AIPersonalizer has a model author the line from ranked candidates. Every
// line it emits passed both the quality heuristics and the line gate; when
// no attempt passes it emits a canned fallback line.
type AIPersonalizer struct {
	base        *Personalizer
	author      Author
	validator   *validate.AIValidator
	maxAttempts int
}

// NewAI creates an AIPersonalizer on top of base, reusing its collaborators,
// generator and line bounds. maxAttempts <= 0 uses DefaultAIAttempts.
func NewAI(base *Personalizer, author Author, maxAttempts int) *AIPersonalizer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultAIAttempts
	}
	return &AIPersonalizer{
		base:        base,
		author:      author,
		validator:   validate.NewAIValidator(base.lines),
		maxAttempts: maxAttempts,
	}
}

// Personalize gathers evidence and authors a line for lead.
func (p *AIPersonalizer) Personalize(ctx context.Context, lead model.Lead) (model.Result, error) {
	if strings.TrimSpace(lead.CompanyName) == "" {
		return model.Result{}, eris.New("personalize: company name is required")
	}
	ev := p.base.Gather(ctx, lead)
	return p.PersonalizeEvidence(ctx, lead, ev), nil
}

// PersonalizeEvidence authors a line from already gathered evidence.
func (p *AIPersonalizer) PersonalizeEvidence(ctx context.Context, lead model.Lead, ev model.Evidence) model.Result {
	log := zap.L().With(zap.String("company", lead.CompanyName))
	candidates := p.base.Candidates(lead, ev)
	if len(candidates) == 0 {
		return p.fallback(lead, 0)
	}
	shown := candidates
	if len(shown) > maxPromptArtifacts {
		shown = shown[:maxPromptArtifacts]
	}

	var feedback []string
	attempts := 0
	for attempts < p.maxAttempts {
		attempts++
		if ctx.Err() != nil {
			break
		}

		raw, err := p.author.Complete(ctx, buildPrompt(lead, shown, feedback))
		if err != nil {
			log.Warn("personalize: author failed", zap.Int("attempt", attempts), zap.Error(err))
			continue
		}

		out := parseAuthored(raw)
		art, ok := matchArtifact(out, shown)
		if !ok {
			feedback = []string{fmt.Sprintf("ARTIFACT %q is not one of the listed facts; copy one exactly", out.Artifact)}
			continue
		}
		if out.Tier != "" && model.Tier(strings.ToUpper(out.Tier)) != model.TierOf(art.Type) {
			log.Debug("personalize: model tier ignored", zap.String("tier", out.Tier), zap.String("type", string(art.Type)))
		}

		res := p.validator.Validate(out.Line, art, candidates, lead.CompanyName)
		if res.IsValid {
			return p.base.result(lead, art, strings.TrimSpace(out.Line), model.ModeAI, attempts)
		}
		log.Debug("personalize: authored line rejected",
			zap.Int("attempt", attempts),
			zap.Int("quality", res.QualityScore),
			zap.Strings("errors", res.Errors),
		)
		if res.SuggestedAction == model.ActionFallback {
			break
		}
		feedback = res.Errors
	}
	return p.fallback(lead, attempts)
}

func (p *AIPersonalizer) fallback(lead model.Lead, attempts int) model.Result {
	fb := model.FallbackArtifact()
	line := p.base.gen.ForKey(lead.Key()).Generate(fb)
	return p.base.result(lead, fb, line, model.ModeAI, attempts)
}

const authorInstructions = `Write one opening line for a cold email to %s.
Use exactly one fact from the list below and copy its text verbatim into the line.
Rules:
- 8 to 25 words, one sentence, ending in a period.
- Start with "Noticed", "Saw", "Came across" or address the reader as "you"/"your".
- Do not mention more than one fact.
- Do not claim to have met them, visited them or attended an event.
- No hype words and no timing words such as recently, just, new, latest or launched.
- Do not make the company the subject ("%s is ...").

Facts (TYPE | TIER | TEXT):
%s
Answer in exactly this format:
LINE: <the line>
TIER: <tier of the fact>
TYPE: <type of the fact>
ARTIFACT: <the fact text, copied exactly>`

func buildPrompt(lead model.Lead, arts []model.Artifact, feedback []string) string {
	var facts strings.Builder
	for _, a := range arts {
		fmt.Fprintf(&facts, "- %s | %s | %s\n", a.Type, model.TierOf(a.Type), a.Text)
	}
	prompt := fmt.Sprintf(authorInstructions, lead.CompanyName, lead.CompanyName, facts.String())
	if len(feedback) > 0 {
		prompt += "\n\nYour previous answer was rejected:\n- " + strings.Join(feedback, "\n- ") + "\nFix these problems."
	}
	return prompt
}

// authored is one parsed model answer.
type authored struct {
	Line     string
	Tier     string
	Type     string
	Artifact string
}

var fieldRe = regexp.MustCompile(`(?i)^\s*\**\s*(LINE|TIER|TYPE|ARTIFACT)\s*\**\s*:\s*\**\s*(.*)$`)

// parseAuthored reads LINE/TIER/TYPE/ARTIFACT fields in any order. Lines
// that start no field continue the previous one.
func parseAuthored(raw string) authored {
	fields := make(map[string]string)
	current := ""
	for _, line := range strings.Split(raw, "\n") {
		if m := fieldRe.FindStringSubmatch(line); m != nil {
			current = strings.ToUpper(m[1])
			fields[current] = strings.TrimSpace(m[2])
			continue
		}
		if current == "" || strings.TrimSpace(line) == "" {
			continue
		}
		fields[current] = strings.TrimSpace(fields[current] + " " + strings.TrimSpace(line))
	}
	return authored{
		Line:     unquote(fields["LINE"]),
		Tier:     fields["TIER"],
		Type:     strings.ToUpper(fields["TYPE"]),
		Artifact: unquote(fields["ARTIFACT"]),
	}
}

// unquote strips one pair of wrapping quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// matchArtifact finds the candidate the model claims to have used. A type
// match wins when two candidates share a text.
func matchArtifact(out authored, arts []model.Artifact) (model.Artifact, bool) {
	if out.Artifact == "" {
		return model.Artifact{}, false
	}
	var found *model.Artifact
	for i := range arts {
		if !strings.EqualFold(arts[i].Text, out.Artifact) {
			continue
		}
		if string(arts[i].Type) == out.Type {
			return arts[i], true
		}
		if found == nil {
			found = &arts[i]
		}
	}
	if found == nil {
		return model.Artifact{}, false
	}
	return *found, true
}
