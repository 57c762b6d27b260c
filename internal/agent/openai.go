package agent

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/gtmcore/orchestrator/internal/core"
)

// OpenAIAgent runs one agent's prompt against a GPT model via the
// Responses API, expecting a single JSON object back.
type OpenAIAgent struct {
	name   core.AgentName
	client openai.Client
	model  string
}

// NewOpenAIAgent creates an agent backed by the given OpenAI model
// (e.g. "gpt-5.2-codex").
func NewOpenAIAgent(name core.AgentName, apiKey, model string) *OpenAIAgent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAgent{name: name, client: client, model: model}
}

// Name implements core.Agent.
func (a *OpenAIAgent) Name() core.AgentName {
	return a.name
}

// Execute implements core.Agent.
func (a *OpenAIAgent) Execute(ctx context.Context, stateJSON []byte, opts core.ExecuteOptions) (core.ExecuteResult, error) {
	system, user, err := BuildPrompt(a.name, stateJSON, "")
	if err != nil {
		return core.ExecuteResult{}, core.ErrInternal("PROMPT_BUILD_FAILED", err.Error())
	}

	maxTokens := opts.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(a.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: responses.ResponseInputParam{
				responses.ResponseInputItemParamOfMessage(system, responses.EasyInputMessageRoleSystem),
				responses.ResponseInputItemParamOfMessage(user, responses.EasyInputMessageRoleUser),
			},
		},
		MaxOutputTokens: openai.Int(int64(maxTokens)),
	}

	result, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return core.ExecuteResult{}, core.ErrProvider("OPENAI_CALL_FAILED", "openai responses.new failed").WithCause(err)
	}

	out, err := extractJSON(result.OutputText())
	if err != nil {
		return core.ExecuteResult{}, err
	}

	return core.ExecuteResult{
		OutputJSON: out,
		TokensIn:   int(result.Usage.InputTokens),
		TokensOut:  int(result.Usage.OutputTokens),
	}, nil
}

var _ core.Agent = (*OpenAIAgent)(nil)
