// Package trace records append-only execution traces for governed requests.
//
// Invariants:
// - A Trace accepts events only while open and is closed exactly once.
// - RecordEvent never fails: with no open trace it returns an inert event.
// - Timed spans stamp a non-negative duration on every exit path.
package trace

import (
	"sync"
	"time"

	"github.com/mkarlsen/stagehand/internal/tracing"
)

// DefaultMaxTraces bounds the in-memory trace store.
const DefaultMaxTraces = 100

// Tracer manages execution traces. Each in-flight request owns exactly one
// Trace handle, threaded explicitly through the call chain.
type Tracer struct {
	mu        sync.Mutex
	traces    []*Trace
	maxTraces int
	notify    func(traceID string, ev Event)
}

// NewTracer creates a tracer retaining up to maxTraces completed traces.
func NewTracer(maxTraces int) *Tracer {
	if maxTraces <= 0 {
		maxTraces = DefaultMaxTraces
	}
	return &Tracer{maxTraces: maxTraces}
}

// SetNotifier installs a callback invoked for every recorded event. The
// callback must not block; it receives copies.
func (t *Tracer) SetNotifier(fn func(traceID string, ev Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = fn
}

// Start opens a new trace. If traceID is empty a new one is generated.
func (t *Tracer) Start(traceID string) *Trace {
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	return &Trace{
		TraceID:   traceID,
		StartTime: time.Now(),
		owner:     t,
	}
}

// Recent returns up to limit completed traces, newest first.
func (t *Tracer) Recent(limit int) []*Trace {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.traces) {
		limit = len(t.traces)
	}
	out := make([]*Trace, 0, limit)
	for i := len(t.traces) - 1; i >= len(t.traces)-limit; i-- {
		out = append(out, t.traces[i])
	}
	return out
}

// Clear drops all stored traces.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traces = nil
}

func (t *Tracer) store(tr *Trace) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traces = append(t.traces, tr)
	if len(t.traces) > t.maxTraces {
		t.traces = t.traces[len(t.traces)-t.maxTraces:]
	}
}

func (t *Tracer) notifyEvent(traceID string, ev *Event) {
	t.mu.Lock()
	fn := t.notify
	t.mu.Unlock()
	if fn != nil {
		fn(traceID, *ev)
	}
}

// Trace is the append-only record of one request.
type Trace struct {
	TraceID   string     `json:"trace_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Events    []*Event   `json:"events"`
	TokensIn  int        `json:"total_tokens_in"`
	TokensOut int        `json:"total_tokens_out"`

	mu     sync.Mutex
	closed bool
	owner  *Tracer
}

// RecordEvent appends an event to the trace. Safe on a nil or closed trace:
// the event is returned but marked unrecorded.
func (tr *Trace) RecordEvent(eventType EventType, agentName string, data map[string]interface{}) *Event {
	ev := newEvent(eventType, agentName, data)
	if tr == nil {
		return ev
	}

	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return ev
	}
	ev.recorded = true
	tr.Events = append(tr.Events, ev)
	owner := tr.owner
	traceID := tr.TraceID
	tr.mu.Unlock()

	if owner != nil {
		owner.notifyEvent(traceID, ev)
	}
	return ev
}

// StartTimed records an event and returns a span whose End stamps the
// elapsed duration. End is safe to call exactly once from a defer.
func (tr *Trace) StartTimed(eventType EventType, agentName string, data map[string]interface{}) *Span {
	return &Span{
		event: tr.RecordEvent(eventType, agentName, data),
		start: time.Now(),
	}
}

// RecordTokens accumulates token usage on the trace.
func (tr *Trace) RecordTokens(tokensIn, tokensOut int) {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.closed {
		return
	}
	tr.TokensIn += tokensIn
	tr.TokensOut += tokensOut
}

// Close ends the trace and hands it to the tracer store. Subsequent calls
// are no-ops; subsequent events are dropped.
func (tr *Trace) Close() {
	if tr == nil {
		return
	}
	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return
	}
	tr.closed = true
	now := time.Now()
	tr.EndTime = &now
	owner := tr.owner
	tr.mu.Unlock()

	if owner != nil {
		owner.store(tr)
	}
}

// EventCount returns the number of recorded events.
func (tr *Trace) EventCount() int {
	if tr == nil {
		return 0
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.Events)
}

// DurationMs returns the trace duration, or nil while the trace is open.
func (tr *Trace) DurationMs() *float64 {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.EndTime == nil {
		return nil
	}
	d := tr.EndTime.Sub(tr.StartTime).Seconds() * 1000
	return &d
}

// Snapshot returns a copy safe for serialization while the trace is live.
func (tr *Trace) Snapshot() Trace {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	events := make([]*Event, len(tr.Events))
	copy(events, tr.Events)
	return Trace{
		TraceID:   tr.TraceID,
		StartTime: tr.StartTime,
		EndTime:   tr.EndTime,
		Events:    events,
		TokensIn:  tr.TokensIn,
		TokensOut: tr.TokensOut,
	}
}

// Span is an in-flight timed event.
type Span struct {
	event *Event
	start time.Time
	once  sync.Once
}

// Event returns the underlying event.
func (s *Span) Event() *Event {
	return s.event
}

// End stamps the span duration. Duration is never negative and is set
// unconditionally, including on error exits.
func (s *Span) End() {
	s.once.Do(func() {
		d := time.Since(s.start).Seconds() * 1000
		if d < 0 {
			d = 0
		}
		s.event.DurationMs = &d
	})
}
