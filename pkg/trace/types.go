package trace

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// EventType identifies the kind of trace event.
type EventType string

const (
	EventAgentStart      EventType = "agent_start"
	EventAgentEnd        EventType = "agent_end"
	EventToolCall        EventType = "tool_call"
	EventToolResult      EventType = "tool_result"
	EventLLMRequest      EventType = "llm_request"
	EventLLMResponse     EventType = "llm_response"
	EventRoutingDecision EventType = "routing_decision"
	EventMemoryRead      EventType = "memory_read"
	EventMemoryWrite     EventType = "memory_write"
	EventError           EventType = "error"
)

// Event is a single entry in an execution trace. A timed event carries a
// non-nil DurationMs once its span ends.
type Event struct {
	ID         string                 `json:"event_id"`
	Type       EventType              `json:"event_type"`
	AgentName  string                 `json:"agent_name"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	DurationMs *float64               `json:"duration_ms,omitempty"`

	// recorded is false for events created while no trace was open.
	recorded bool
}

// Recorded reports whether the event was appended to an open trace.
func (e *Event) Recorded() bool {
	return e != nil && e.recorded
}

func newEvent(eventType EventType, agentName string, data map[string]interface{}) *Event {
	return &Event{
		ID:        gonanoid.Must(),
		Type:      eventType,
		AgentName: agentName,
		Data:      data,
		Timestamp: time.Now(),
	}
}
