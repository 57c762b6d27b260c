package agent

import (
	"context"

	"google.golang.org/genai"

	"github.com/gtmcore/orchestrator/internal/core"
)

// GeminiAgent runs one agent's prompt against a Gemini model, expecting
// a single JSON object back.
type GeminiAgent struct {
	name   core.AgentName
	client *genai.Client
	model  string
}

// NewGeminiAgent creates an agent backed by the given Gemini model
// (e.g. "gemini-2.5-flash").
func NewGeminiAgent(ctx context.Context, name core.AgentName, apiKey, model string) (*GeminiAgent, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, core.ErrProvider("GEMINI_CLIENT_INIT_FAILED", "creating genai client").WithCause(err)
	}
	return &GeminiAgent{name: name, client: client, model: model}, nil
}

// Name implements core.Agent.
func (a *GeminiAgent) Name() core.AgentName {
	return a.name
}

// Execute implements core.Agent.
func (a *GeminiAgent) Execute(ctx context.Context, stateJSON []byte, opts core.ExecuteOptions) (core.ExecuteResult, error) {
	system, user, err := BuildPrompt(a.name, stateJSON, "")
	if err != nil {
		return core.ExecuteResult{}, core.ErrInternal("PROMPT_BUILD_FAILED", err.Error())
	}

	maxTokens := int32(opts.MaxOutputTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   maxTokens,
		ResponseMIMEType:  "application/json",
	}

	result, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(user), config)
	if err != nil {
		return core.ExecuteResult{}, core.ErrProvider("GEMINI_CALL_FAILED", "gemini generatecontent failed").WithCause(err)
	}

	out, err := extractJSON(result.Text())
	if err != nil {
		return core.ExecuteResult{}, err
	}

	tokensIn, tokensOut := 0, 0
	if result.UsageMetadata != nil {
		tokensIn = int(result.UsageMetadata.PromptTokenCount)
		tokensOut = int(result.UsageMetadata.CandidatesTokenCount)
	}

	return core.ExecuteResult{
		OutputJSON: out,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
	}, nil
}

var _ core.Agent = (*GeminiAgent)(nil)
