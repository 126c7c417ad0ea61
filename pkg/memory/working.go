package memory

import (
	"sync"
	"time"
)

// RoutingRecord captures one coordinator hand-off within a request.
type RoutingRecord struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// WorkingContext is scratch state for a single in-flight request.
type WorkingContext struct {
	ContextID string
	UserQuery string
	Intent    string
	Results   map[string]interface{}
	Routing   []RoutingRecord
	CreatedAt time.Time
}

// SetResult stores an intermediate result under key.
func (c *WorkingContext) SetResult(key string, value interface{}) {
	c.Results[key] = value
}

// Result retrieves an intermediate result, or nil when absent.
func (c *WorkingContext) Result(key string) interface{} {
	return c.Results[key]
}

// AddRouting records a hand-off from one agent to another.
func (c *WorkingContext) AddRouting(from, to, reason string) {
	c.Routing = append(c.Routing, RoutingRecord{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

// WorkingMemory holds per-request contexts. Contexts are created when a
// request enters the orchestrator and cleaned up when it exits.
type WorkingMemory struct {
	mu       sync.RWMutex
	contexts map[string]*WorkingContext
}

// NewWorkingMemory creates an empty working memory.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{contexts: make(map[string]*WorkingContext)}
}

// Create registers a new context for a request.
func (m *WorkingMemory) Create(contextID, userQuery string) *WorkingContext {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx := &WorkingContext{
		ContextID: contextID,
		UserQuery: userQuery,
		Results:   make(map[string]interface{}),
		CreatedAt: time.Now(),
	}
	m.contexts[contextID] = ctx
	return ctx
}

// Get returns the context for a request, or nil if unknown.
func (m *WorkingMemory) Get(contextID string) *WorkingContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contexts[contextID]
}

// Cleanup removes a context once its request completes.
func (m *WorkingMemory) Cleanup(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, contextID)
}
