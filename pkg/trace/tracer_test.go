package trace

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceLifecycle(t *testing.T) {
	t.Run("records events while open", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("")
		require.NotEmpty(t, tr.TraceID)

		ev := tr.RecordEvent(EventAgentStart, "coordinator", map[string]interface{}{"query": "hi"})

		assert.True(t, ev.Recorded())
		assert.Equal(t, 1, tr.EventCount())
		assert.Equal(t, EventAgentStart, ev.Type)
		assert.NotEmpty(t, ev.ID)
	})

	t.Run("close stamps end time and stores the trace", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("t1")
		tr.RecordEvent(EventAgentStart, "a", nil)
		tr.Close()

		require.NotNil(t, tr.EndTime)
		assert.False(t, tr.EndTime.Before(tr.StartTime))
		require.NotNil(t, tr.DurationMs())
		assert.GreaterOrEqual(t, *tr.DurationMs(), 0.0)

		recent := tracer.Recent(5)
		require.Len(t, recent, 1)
		assert.Equal(t, "t1", recent[0].TraceID)
	})

	t.Run("events after close are dropped", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("t1")
		tr.Close()

		ev := tr.RecordEvent(EventToolCall, "a", nil)

		assert.False(t, ev.Recorded())
		assert.Equal(t, 0, tr.EventCount())
	})

	t.Run("double close is a no-op", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("t1")
		tr.Close()
		end := *tr.EndTime
		tr.Close()

		assert.Equal(t, end, *tr.EndTime)
		assert.Len(t, tracer.Recent(0), 1)
	})

	t.Run("nil trace is safe", func(t *testing.T) {
		var tr *Trace
		ev := tr.RecordEvent(EventError, "a", nil)
		assert.False(t, ev.Recorded())
		tr.RecordTokens(10, 20)
		tr.Close()
		assert.Equal(t, 0, tr.EventCount())
		assert.Nil(t, tr.DurationMs())
	})

	t.Run("token accumulation", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("t1")
		tr.RecordTokens(100, 50)
		tr.RecordTokens(30, 20)

		assert.Equal(t, 130, tr.TokensIn)
		assert.Equal(t, 70, tr.TokensOut)
	})
}

func TestTracerRetention(t *testing.T) {
	tracer := NewTracer(3)
	for i := 0; i < 5; i++ {
		tr := tracer.Start("")
		tr.Close()
	}

	recent := tracer.Recent(0)
	assert.Len(t, recent, 3)

	tracer.Clear()
	assert.Empty(t, tracer.Recent(0))
}

func TestRecentOrdering(t *testing.T) {
	tracer := NewTracer(10)
	for _, id := range []string{"a", "b", "c"} {
		tracer.Start(id).Close()
	}

	recent := tracer.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].TraceID)
	assert.Equal(t, "b", recent[1].TraceID)
}

func TestSpan(t *testing.T) {
	t.Run("end stamps a non-negative duration", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("t1")

		span := tr.StartTimed(EventLLMRequest, "a", nil)
		time.Sleep(time.Millisecond)
		span.End()

		require.NotNil(t, span.Event().DurationMs)
		assert.GreaterOrEqual(t, *span.Event().DurationMs, 0.0)
	})

	t.Run("end is idempotent", func(t *testing.T) {
		tracer := NewTracer(10)
		tr := tracer.Start("t1")

		span := tr.StartTimed(EventToolCall, "a", nil)
		span.End()
		first := *span.Event().DurationMs
		time.Sleep(2 * time.Millisecond)
		span.End()

		assert.Equal(t, first, *span.Event().DurationMs)
	})
}

func TestNotifier(t *testing.T) {
	tracer := NewTracer(10)

	var mu sync.Mutex
	var got []Event
	tracer.SetNotifier(func(traceID string, ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})

	tr := tracer.Start("t1")
	tr.RecordEvent(EventAgentStart, "a", nil)
	tr.RecordEvent(EventAgentEnd, "a", nil)
	tr.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, EventAgentStart, got[0].Type)
	assert.Equal(t, EventAgentEnd, got[1].Type)
}

func TestSnapshot(t *testing.T) {
	tracer := NewTracer(10)
	tr := tracer.Start("t1")
	tr.RecordEvent(EventAgentStart, "a", nil)
	tr.RecordTokens(10, 5)

	snap := tr.Snapshot()
	tr.RecordEvent(EventAgentEnd, "a", nil)

	assert.Len(t, snap.Events, 1)
	assert.Equal(t, 10, snap.TokensIn)
	assert.Equal(t, 2, tr.EventCount())
}
