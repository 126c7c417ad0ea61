package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// SessionIDKey is the context key for session ID
	SessionIDKey ContextKey = "session_id"
	// UserIDKey is the context key for user ID
	UserIDKey ContextKey = "user_id"
	// AgentNameKey is the context key for the executing agent name
	AgentNameKey ContextKey = "agent_name"
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
)

// RequestContext holds request-scoped identification
type RequestContext struct {
	TraceID   string
	SessionID string
	UserID    string
	AgentName string
	RequestID string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestID generates a new request ID
func NewRequestID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithUserID adds a user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithAgentName adds an agent name to the context
func WithAgentName(ctx context.Context, agentName string) context.Context {
	return context.WithValue(ctx, AgentNameKey, agentName)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// GetUserID retrieves the user ID from the context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetAgentName retrieves the agent name from the context
func GetAgentName(ctx context.Context) string {
	if agentName, ok := ctx.Value(AgentNameKey).(string); ok {
		return agentName
	}
	return ""
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// FromContext extracts all request identification from the context
func FromContext(ctx context.Context) *RequestContext {
	return &RequestContext{
		TraceID:   GetTraceID(ctx),
		SessionID: GetSessionID(ctx),
		UserID:    GetUserID(ctx),
		AgentName: GetAgentName(ctx),
		RequestID: GetRequestID(ctx),
	}
}

// NewRequestContext creates a new context for a request with fresh trace
// and request IDs.
func NewRequestContext(ctx context.Context, sessionID, userID string) context.Context {
	ctx = WithTraceID(ctx, NewTraceID())
	ctx = WithRequestID(ctx, NewRequestID())
	ctx = WithSessionID(ctx, sessionID)
	if userID != "" {
		ctx = WithUserID(ctx, userID)
	}
	return ctx
}
