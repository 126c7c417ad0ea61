package memory

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/stagehand/pkg/llm"
)

func TestConversationMemory(t *testing.T) {
	t.Run("append and history", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		m.AppendUser("s1", "find me a jazz artist")
		m.AppendAssistant("s1", "The Midnight Echoes fit.")

		history := m.History("s1", 10)

		require.Len(t, history, 2)
		assert.Equal(t, llm.RoleUser, history[0].Role)
		assert.Equal(t, "find me a jazz artist", history[0].Content)
		assert.Equal(t, llm.RoleAssistant, history[1].Role)
		assert.Equal(t, 2, m.MessageCount("s1"))
	})

	t.Run("unknown session yields empty history", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		assert.Empty(t, m.History("nope", 10))
		assert.Equal(t, 0, m.MessageCount("nope"))
	})

	t.Run("tool and system messages are filtered out", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		m.AppendUser("s1", "hi")
		m.Append("s1", llm.Message{Role: llm.RoleSystem, Content: "prompt"})
		m.Append("s1", llm.Message{Role: llm.RoleTool, Content: `{"ok":true}`, ToolCallID: "t1"})
		m.AppendAssistant("s1", "hello")

		history := m.History("s1", 10)

		require.Len(t, history, 2)
		assert.Equal(t, llm.RoleUser, history[0].Role)
		assert.Equal(t, llm.RoleAssistant, history[1].Role)
		assert.Equal(t, 4, m.MessageCount("s1"))
	})

	t.Run("history is trimmed to the limit, keeping newest", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		for i := 0; i < 60; i++ {
			m.AppendUser("s1", fmt.Sprintf("msg %d", i))
		}

		history := m.History("s1", 50)

		require.Len(t, history, 50)
		assert.Equal(t, "msg 10", history[0].Content)
		assert.Equal(t, "msg 59", history[49].Content)
	})

	t.Run("zero limit falls back to the default", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		for i := 0; i < DefaultHistoryLimit+5; i++ {
			m.AppendUser("s1", "x")
		}
		assert.Len(t, m.History("s1", 0), DefaultHistoryLimit)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		m.AppendUser("s1", "a")
		m.AppendUser("s2", "b")

		assert.Len(t, m.History("s1", 10), 1)
		assert.Len(t, m.History("s2", 10), 1)
		assert.ElementsMatch(t, []string{"s1", "s2"}, m.Sessions())
	})

	t.Run("clear drops one session only", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		m.AppendUser("s1", "a")
		m.AppendUser("s2", "b")

		m.Clear("s1")

		assert.Empty(t, m.History("s1", 10))
		assert.Len(t, m.History("s2", 10), 1)
		m.Clear("nope") // no-op
	})

	t.Run("history copies do not alias the log", func(t *testing.T) {
		m := NewConversationMemory(zerolog.Nop())
		m.AppendUser("s1", "a")

		history := m.History("s1", 10)
		history[0].Content = "mutated"

		assert.Equal(t, "a", m.History("s1", 10)[0].Content)
	})
}

func TestWorkingMemory(t *testing.T) {
	t.Run("create, get, cleanup", func(t *testing.T) {
		m := NewWorkingMemory()
		ctx := m.Create("r1", "book a venue")

		require.NotNil(t, ctx)
		assert.Equal(t, "book a venue", ctx.UserQuery)
		assert.Same(t, ctx, m.Get("r1"))

		m.Cleanup("r1")
		assert.Nil(t, m.Get("r1"))
	})

	t.Run("results and routing records", func(t *testing.T) {
		m := NewWorkingMemory()
		ctx := m.Create("r1", "q")

		ctx.SetResult("artists", []string{"The Midnight Echoes"})
		ctx.AddRouting("coordinator", "artist_discovery", "artist query")

		assert.Equal(t, []string{"The Midnight Echoes"}, ctx.Result("artists"))
		assert.Nil(t, ctx.Result("missing"))
		require.Len(t, ctx.Routing, 1)
		assert.Equal(t, "coordinator", ctx.Routing[0].From)
		assert.Equal(t, "artist_discovery", ctx.Routing[0].To)
	})
}
