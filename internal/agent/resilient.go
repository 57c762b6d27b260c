package agent

import (
	"context"

	"github.com/gtmcore/orchestrator/internal/core"
	"github.com/gtmcore/orchestrator/internal/service"
)

// ResilientAgent wraps a provider-backed core.Agent with the retry and
// rate-limit policies every outbound model call goes through: the token
// bucket it was given (which callers may share across agents), then
// exponential backoff on whatever the call returns as retryable.
type ResilientAgent struct {
	inner   core.Agent
	limiter *service.RateLimiter
	retry   *service.RetryPolicy
}

// NewResilientAgent wraps inner, acquiring from limiter before each
// call and retrying per policy on core.IsRetryable errors. A nil
// limiter skips rate limiting; a nil policy is replaced by
// service.DefaultRetryPolicy().
func NewResilientAgent(inner core.Agent, limiter *service.RateLimiter, retry *service.RetryPolicy) *ResilientAgent {
	if retry == nil {
		retry = service.DefaultRetryPolicy()
	}
	return &ResilientAgent{inner: inner, limiter: limiter, retry: retry}
}

// Name implements core.Agent.
func (a *ResilientAgent) Name() core.AgentName {
	return a.inner.Name()
}

// Execute implements core.Agent.
func (a *ResilientAgent) Execute(ctx context.Context, stateJSON []byte, opts core.ExecuteOptions) (core.ExecuteResult, error) {
	var result core.ExecuteResult
	attempts := 0

	err := a.retry.Execute(ctx, func(ctx context.Context) error {
		attempts++
		if a.limiter != nil {
			if err := a.limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		out, err := a.inner.Execute(ctx, stateJSON, opts)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return core.ExecuteResult{}, err
	}

	result.Retries = attempts - 1
	return result, nil
}

var _ core.Agent = (*ResilientAgent)(nil)
