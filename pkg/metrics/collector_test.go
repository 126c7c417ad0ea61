package metrics

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAgentCall(t *testing.T) {
	t.Run("aggregates per agent within a session", func(t *testing.T) {
		c := NewCollector()
		c.RecordAgentCall("s1", "artist_discovery", 100, 50, 1200, false)
		c.RecordAgentCall("s1", "artist_discovery", 200, 80, 800, false)
		c.RecordAgentCall("s1", "venue_matching", 50, 20, 400, true)

		summary := c.SessionSummary("s1")
		require.NotNil(t, summary)

		assert.Equal(t, 3, summary.TotalRequests)
		assert.Equal(t, 350, summary.TotalTokensIn)
		assert.Equal(t, 150, summary.TotalTokensOut)
		assert.Equal(t, 500, summary.TotalTokens())

		artist := summary.Agents["artist_discovery"]
		assert.Equal(t, 2, artist.TotalCalls)
		assert.Equal(t, 300, artist.TotalTokensIn)
		assert.Equal(t, 130, artist.TotalTokensOut)
		assert.Equal(t, 430, artist.TotalTokens())
		assert.Equal(t, 1000.0, artist.AvgDurationMs())
		assert.Equal(t, 0, artist.ErrorCount)

		venue := summary.Agents["venue_matching"]
		assert.Equal(t, 1, venue.ErrorCount)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		c := NewCollector()
		c.RecordAgentCall("s1", "a", 100, 50, 10, false)
		c.RecordAgentCall("s2", "a", 5, 5, 10, false)

		assert.Equal(t, 150, c.SessionSummary("s1").TotalTokens())
		assert.Equal(t, 10, c.SessionSummary("s2").TotalTokens())
		assert.ElementsMatch(t, []string{"s1", "s2"}, c.Sessions())
	})

	t.Run("unknown session returns nil", func(t *testing.T) {
		c := NewCollector()
		assert.Nil(t, c.SessionSummary("nope"))
	})

	t.Run("summary is a copy", func(t *testing.T) {
		c := NewCollector()
		c.RecordAgentCall("s1", "a", 100, 50, 10, false)

		summary := c.SessionSummary("s1")
		agent := summary.Agents["a"]
		agent.TotalCalls = 99

		assert.Equal(t, 1, c.SessionSummary("s1").Agents["a"].TotalCalls)
	})
}

func TestClearSession(t *testing.T) {
	c := NewCollector()
	c.RecordAgentCall("s1", "a", 100, 50, 10, false)

	c.ClearSession("s1")

	assert.Nil(t, c.SessionSummary("s1"))
	assert.Empty(t, c.Sessions())
	c.ClearSession("s1") // second clear is a no-op
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", n%2)
			for j := 0; j < 100; j++ {
				c.RecordAgentCall(session, "a", 1, 1, 1, false)
			}
		}(i)
	}
	wg.Wait()

	total := c.SessionSummary("s0").TotalRequests + c.SessionSummary("s1").TotalRequests
	assert.Equal(t, 1000, total)
}

func TestAvgDurationEmptyAgent(t *testing.T) {
	m := &AgentMetrics{}
	assert.Equal(t, 0.0, m.AvgDurationMs())
}
