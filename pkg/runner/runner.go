// Package runner implements the bounded tool-use loop every specialist
// agent runs. One Runner is shared by all roles; each role is a data-driven
// configuration of the same loop.
//
// Invariants:
//   - The loop issues at most MaxIterations model calls per run.
//   - The wall-clock deadline is polled at the top of each iteration; an
//     expired deadline is a soft stop, identical to the iteration cap.
//   - Tool failures are fed back to the model as data and never abort
//     the loop.
//   - Token usage accumulates across every model call, not just the last.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlsen/stagehand/internal/observability"
	"github.com/mkarlsen/stagehand/pkg/llm"
	"github.com/mkarlsen/stagehand/pkg/tools"
	"github.com/mkarlsen/stagehand/pkg/trace"
)

// Default loop bounds.
const (
	DefaultMaxIterations = 10
	DefaultMaxExecution  = 30 * time.Second
)

// Role configures one specialist as data: no subclassing, just parameters
// for the shared loop.
type Role struct {
	Name         string
	SystemPrompt string
	Tools        []string
	Model        string
	MaxTokens    int
	Temperature  float64
}

// Result is the outcome of one agent run.
type Result struct {
	Content    string `json:"content"`
	TokensIn   int    `json:"tokens_in"`
	TokensOut  int    `json:"tokens_out"`
	Iterations int    `json:"iterations"`
	// Incomplete marks a soft stop: the iteration cap or deadline was hit
	// while the model still wanted tools. The content is whatever text the
	// last response carried, possibly empty.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Runner drives the model+tool cycle for any role.
type Runner struct {
	client          llm.Client
	registry        *tools.Registry
	maxIterations   int
	maxExecution    time.Duration
	resultSanitizer func(context.Context, string) string
	logger          zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxIterations overrides the iteration cap.
func WithMaxIterations(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithMaxExecution overrides the per-run wall-clock budget.
func WithMaxExecution(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.maxExecution = d
		}
	}
}

// WithResultSanitizer installs a scrubber applied to every tool result
// before it is fed back to the model.
func WithResultSanitizer(fn func(context.Context, string) string) Option {
	return func(r *Runner) {
		r.resultSanitizer = fn
	}
}

// New creates a Runner on the given model client and tool registry.
func New(client llm.Client, registry *tools.Registry, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		client:        client,
		registry:      registry,
		maxIterations: DefaultMaxIterations,
		maxExecution:  DefaultMaxExecution,
		logger:        logger.With().Str("component", "runner").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the bounded loop for a role. history is the prior
// conversation; userMessage is appended as the final user turn. The trace
// handle may be nil, in which case events are inert.
func (r *Runner) Run(ctx context.Context, role Role, userMessage string, history []llm.Message, tr *trace.Trace) (*Result, error) {
	start := time.Now()
	deadline := start.Add(r.maxExecution)

	tr.RecordEvent(trace.EventAgentStart, role.Name, map[string]interface{}{
		"message_length": len(userMessage),
		"history_length": len(history),
	})

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	toolDefs := r.registry.LLMDefs(role.Tools)

	result := &Result{}
	lastContent := ""

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		if time.Now().After(deadline) {
			r.logger.Warn().
				Str("agent", role.Name).
				Int("iteration", iteration).
				Msg("execution deadline reached")
			result.Incomplete = true
			break
		}
		result.Iterations = iteration + 1

		response, err := r.callModel(ctx, role, messages, toolDefs, tr)
		if err != nil {
			r.finish(role, tr, result, start, false)
			return nil, err
		}

		result.TokensIn += response.Usage.TokensIn
		result.TokensOut += response.Usage.TokensOut
		tr.RecordTokens(response.Usage.TokensIn, response.Usage.TokensOut)
		lastContent = response.Content

		if !response.HasToolCalls() {
			result.Content = response.Content
			r.finish(role, tr, result, start, true)
			return result, nil
		}

		// Record the assistant turn, then execute each requested tool
		// sequentially and feed results back in request order.
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})
		for _, call := range response.ToolCalls {
			messages = append(messages, r.executeTool(ctx, role, call, tr))
		}

		if iteration == r.maxIterations-1 {
			result.Incomplete = true
		}
	}

	// Soft stop: cap or deadline hit while the model still wanted tools.
	// Return whatever text the last response carried.
	result.Content = lastContent
	result.Incomplete = true
	r.finish(role, tr, result, start, true)
	return result, nil
}

func (r *Runner) callModel(ctx context.Context, role Role, messages []llm.Message, toolDefs []llm.ToolDef, tr *trace.Trace) (*llm.Response, error) {
	span := tr.StartTimed(trace.EventLLMRequest, role.Name, map[string]interface{}{
		"model":         role.Model,
		"message_count": len(messages),
		"tool_count":    len(toolDefs),
	})

	callStart := time.Now()
	response, err := r.client.Call(ctx, llm.Request{
		Model:        role.Model,
		SystemPrompt: role.SystemPrompt,
		Messages:     messages,
		Tools:        toolDefs,
		MaxTokens:    role.MaxTokens,
		Temperature:  role.Temperature,
	})
	span.End()
	observability.RecordLLMCall(r.client.Provider(), role.Model, time.Since(callStart), err == nil)

	if err != nil {
		tr.RecordEvent(trace.EventError, role.Name, map[string]interface{}{
			"stage": "llm_call",
			"error": err.Error(),
		})
		return nil, fmt.Errorf("model call failed for %s: %w", role.Name, err)
	}

	tr.RecordEvent(trace.EventLLMResponse, role.Name, map[string]interface{}{
		"stop_reason": response.StopReason,
		"tool_calls":  len(response.ToolCalls),
		"tokens_in":   response.Usage.TokensIn,
		"tokens_out":  response.Usage.TokensOut,
	})
	return response, nil
}

// executeTool runs one tool call and converts the outcome into a tool
// message. Failures come back as {error: ...} data for the model.
func (r *Runner) executeTool(ctx context.Context, role Role, call llm.ToolCall, tr *trace.Trace) llm.Message {
	span := tr.StartTimed(trace.EventToolCall, role.Name, map[string]interface{}{
		"tool":  call.Name,
		"input": call.Input,
	})

	res := r.registry.Execute(ctx, call.Name, call.Input)
	span.End()
	observability.RecordToolExecution(call.Name, time.Duration(res.DurationMs)*time.Millisecond, res.Success)

	data := map[string]interface{}{
		"tool":    call.Name,
		"success": res.Success,
	}
	if !res.Success {
		data["error"] = res.Error
		r.logger.Warn().
			Str("agent", role.Name).
			Str("tool", call.Name).
			Str("error", res.Error).
			Msg("tool execution failed, feeding error back to model")
	}
	tr.RecordEvent(trace.EventToolResult, role.Name, data)

	content := res.Content()
	if r.resultSanitizer != nil {
		content = r.resultSanitizer(ctx, content)
	}
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
	}
}

func (r *Runner) finish(role Role, tr *trace.Trace, result *Result, start time.Time, success bool) {
	duration := time.Since(start)
	tr.RecordEvent(trace.EventAgentEnd, role.Name, map[string]interface{}{
		"iterations":  result.Iterations,
		"tokens_in":   result.TokensIn,
		"tokens_out":  result.TokensOut,
		"incomplete":  result.Incomplete,
		"duration_ms": duration.Milliseconds(),
	})
	observability.RecordAgentRun(role.Name, duration, result.Iterations, success)

	r.logger.Info().
		Str("agent", role.Name).
		Int("iterations", result.Iterations).
		Int("tokens_in", result.TokensIn).
		Int("tokens_out", result.TokensOut).
		Bool("incomplete", result.Incomplete).
		Dur("duration", duration).
		Msg("agent run completed")
}
