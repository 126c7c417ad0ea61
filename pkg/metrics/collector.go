// Package metrics aggregates per-session and per-agent call statistics.
//
// Aggregates are updated incrementally from committed call results, never
// recomputed from raw traces.
package metrics

import (
	"sync"
	"time"

	"github.com/mkarlsen/stagehand/internal/observability"
)

// AgentMetrics holds aggregate statistics for one agent within a session.
type AgentMetrics struct {
	AgentName       string  `json:"agent_name"`
	TotalCalls      int     `json:"total_calls"`
	TotalTokensIn   int     `json:"total_tokens_in"`
	TotalTokensOut  int     `json:"total_tokens_out"`
	TotalDurationMs float64 `json:"total_duration_ms"`
	ErrorCount      int     `json:"error_count"`
}

// TotalTokens returns tokens in plus tokens out.
func (m *AgentMetrics) TotalTokens() int {
	return m.TotalTokensIn + m.TotalTokensOut
}

// AvgDurationMs returns the average call duration.
func (m *AgentMetrics) AvgDurationMs() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return m.TotalDurationMs / float64(m.TotalCalls)
}

func (m *AgentMetrics) snapshot() AgentMetrics {
	return *m
}

// SessionMetrics holds aggregate statistics for one session.
type SessionMetrics struct {
	SessionID      string                  `json:"session_id"`
	StartTime      time.Time               `json:"start_time"`
	TotalRequests  int                     `json:"total_requests"`
	TotalTokensIn  int                     `json:"total_tokens_in"`
	TotalTokensOut int                     `json:"total_tokens_out"`
	Agents         map[string]AgentMetrics `json:"agents"`
}

// TotalTokens returns tokens in plus tokens out.
func (s *SessionMetrics) TotalTokens() int {
	return s.TotalTokensIn + s.TotalTokensOut
}

type sessionState struct {
	sessionID      string
	startTime      time.Time
	totalRequests  int
	totalTokensIn  int
	totalTokensOut int
	agents         map[string]*AgentMetrics
}

// Collector is a thread-safe metrics collector keyed by session.
type Collector struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	observability.EnsureRegistered()
	return &Collector{
		sessions: make(map[string]*sessionState),
	}
}

// RecordAgentCall records one completed agent call. Safe for concurrent
// callers from different sessions.
func (c *Collector) RecordAgentCall(sessionID, agentName string, tokensIn, tokensOut int, durationMs float64, isError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		session = &sessionState{
			sessionID: sessionID,
			startTime: time.Now(),
			agents:    make(map[string]*AgentMetrics),
		}
		c.sessions[sessionID] = session
		observability.SetActiveSessions(len(c.sessions))
	}

	session.totalRequests++
	session.totalTokensIn += tokensIn
	session.totalTokensOut += tokensOut

	agent, ok := session.agents[agentName]
	if !ok {
		agent = &AgentMetrics{AgentName: agentName}
		session.agents[agentName] = agent
	}
	agent.TotalCalls++
	agent.TotalTokensIn += tokensIn
	agent.TotalTokensOut += tokensOut
	agent.TotalDurationMs += durationMs
	if isError {
		agent.ErrorCount++
	}
}

// SessionSummary returns a copy of a session's metrics, or nil if unknown.
func (c *Collector) SessionSummary(sessionID string) *SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		return nil
	}

	agents := make(map[string]AgentMetrics, len(session.agents))
	for name, am := range session.agents {
		agents[name] = am.snapshot()
	}
	return &SessionMetrics{
		SessionID:      session.sessionID,
		StartTime:      session.startTime,
		TotalRequests:  session.totalRequests,
		TotalTokensIn:  session.totalTokensIn,
		TotalTokensOut: session.totalTokensOut,
		Agents:         agents,
	}
}

// ClearSession drops a session's aggregates.
func (c *Collector) ClearSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[sessionID]; ok {
		delete(c.sessions, sessionID)
		observability.SetActiveSessions(len(c.sessions))
	}
}

// Sessions returns all known session IDs.
func (c *Collector) Sessions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}
