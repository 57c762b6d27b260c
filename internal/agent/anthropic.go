package agent

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gtmcore/orchestrator/internal/core"
)

// AnthropicAgent runs one agent's prompt against Claude, expecting a
// single JSON object back shaped per outputContract.
type AnthropicAgent struct {
	name   core.AgentName
	client anthropic.Client
	model  string
}

// NewAnthropicAgent creates an agent backed by the given Anthropic
// model (e.g. "claude-sonnet-4-5-20250929").
func NewAnthropicAgent(name core.AgentName, apiKey, model string) *AnthropicAgent {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicAgent{name: name, client: client, model: model}
}

// Name implements core.Agent.
func (a *AnthropicAgent) Name() core.AgentName {
	return a.name
}

// Execute implements core.Agent.
func (a *AnthropicAgent) Execute(ctx context.Context, stateJSON []byte, opts core.ExecuteOptions) (core.ExecuteResult, error) {
	system, user, err := BuildPrompt(a.name, stateJSON, "")
	if err != nil {
		return core.ExecuteResult{}, core.ErrInternal("PROMPT_BUILD_FAILED", err.Error())
	}

	maxTokens := int64(opts.MaxOutputTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return core.ExecuteResult{}, core.ErrProvider("ANTHROPIC_CALL_FAILED", "anthropic messages.new failed").WithCause(err)
	}

	var text string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += tb.Text
		}
	}

	out, err := extractJSON(text)
	if err != nil {
		return core.ExecuteResult{}, err
	}

	return core.ExecuteResult{
		OutputJSON: out,
		TokensIn:   int(msg.Usage.InputTokens),
		TokensOut:  int(msg.Usage.OutputTokens),
	}, nil
}

var _ core.Agent = (*AnthropicAgent)(nil)
