package personalize

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/openers/pkg/anthropic"
)

const (
	defaultAuthorModel     = "claude-haiku-4-5-20251001"
	defaultAuthorMaxTokens = 300
)

const authorSystemPrompt = `You write short, factual opening lines for B2B cold emails.
You only use facts you are given and never invent details.`

// AnthropicAuthor implements Author with the Anthropic messages API.
type AnthropicAuthor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicAuthor creates an Author. Empty model and non-positive
// maxTokens use defaults.
func NewAnthropicAuthor(client anthropic.Client, model string, maxTokens int64) *AnthropicAuthor {
	if model == "" {
		model = defaultAuthorModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultAuthorMaxTokens
	}
	return &AnthropicAuthor{client: client, model: model, maxTokens: maxTokens}
}

// Complete implements Author.
func (a *AnthropicAuthor) Complete(ctx context.Context, prompt string) (string, error) {
	temp := 0.7
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(authorSystemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "personalize: anthropic author")
	}
	resp.Usage.LogCost(a.model, "author")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.New("personalize: anthropic returned no text")
	}
	return text, nil
}
