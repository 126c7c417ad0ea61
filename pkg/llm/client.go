// Package llm abstracts the hosted model APIs behind a single client
// contract consumed by the agent loop.
package llm

import (
	"context"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons normalized across providers.
const (
	StopEndTurn   = "end_turn"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
)

// Message is one conversation turn in provider-neutral form. Tool results
// are messages with RoleTool and the originating ToolCallID.
type Message struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ToolCalls  []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID string                 `json:"tool_call_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ToolCall is a tool-use request produced by the model.
type ToolCall struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Usage is the token accounting for one call.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// Total returns tokens in plus tokens out.
func (u Usage) Total() int {
	return u.TokensIn + u.TokensOut
}

// Request is a single model call.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDef
	MaxTokens    int
	Temperature  float64
}

// Response is the normalized model reply.
type Response struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// HasToolCalls reports whether the model requested tool use.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Client is the LLM collaborator contract.
type Client interface {
	// Call issues one model request.
	Call(ctx context.Context, req Request) (*Response, error)

	// Provider returns the provider name.
	Provider() string
}

// TransportError wraps a provider transport or rate-limit failure so the
// orchestrator boundary can convert it into a structured failure response.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm transport error (%s): %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
