package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/stagehand/pkg/llm"
	"github.com/mkarlsen/stagehand/pkg/runner"
	"github.com/mkarlsen/stagehand/pkg/tools"
	"github.com/mkarlsen/stagehand/pkg/trace"
)

// scriptedClient answers routing calls and specialist calls from separate
// scripts, keyed on whether the request offers the routing tool.
type scriptedClient struct {
	mu          sync.Mutex
	routing     []*llm.Response
	specialist  []*llm.Response
	err         error
	routeCalls  int
	directCalls int
}

func (s *scriptedClient) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}

	isRouting := false
	for _, tool := range req.Tools {
		if tool.Name == RouteToolName {
			isRouting = true
		}
	}

	if isRouting {
		i := s.routeCalls
		s.routeCalls++
		if i < len(s.routing) {
			return s.routing[i], nil
		}
		return &llm.Response{Content: "ok", StopReason: llm.StopEndTurn}, nil
	}

	i := s.directCalls
	s.directCalls++
	if i < len(s.specialist) {
		return s.specialist[i], nil
	}
	return &llm.Response{Content: "specialist answer", StopReason: llm.StopEndTurn}, nil
}

func (s *scriptedClient) Provider() string { return "fake" }

func routeCall(agent, reason string) *llm.Response {
	return &llm.Response{
		ToolCalls: []llm.ToolCall{{
			ID:   "route-1",
			Name: RouteToolName,
			Input: map[string]interface{}{
				"agent":  agent,
				"reason": reason,
			},
		}},
		StopReason: llm.StopToolUse,
		Usage:      llm.Usage{TokensIn: 15, TokensOut: 8},
	}
}

func newTestCoordinator(t *testing.T, client llm.Client) *Coordinator {
	t.Helper()

	reg := tools.NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "search_artists",
		Description: "Search the artist catalog.",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return map[string]interface{}{"artists": []string{"Velvet Thunder"}}, nil
		},
	}))
	specialistRunner := runner.New(client, reg, zerolog.Nop())

	c := New(client, specialistRunner, runner.Role{
		Name:         "coordinator",
		SystemPrompt: "Route requests.",
		Model:        "claude-sonnet-4-5",
	}, zerolog.Nop())
	c.RegisterSpecialist(runner.Role{
		Name:         "artist_discovery",
		SystemPrompt: "You find artists.",
		Tools:        []string{"search_artists"},
		Model:        "claude-sonnet-4-5",
	})
	c.RegisterSpecialist(runner.Role{
		Name:         "venue_matching",
		SystemPrompt: "You find venues.",
		Model:        "claude-sonnet-4-5",
	})
	return c
}

func TestRoute(t *testing.T) {
	ctx := context.Background()

	t.Run("hand-off delegates to the specialist", func(t *testing.T) {
		client := &scriptedClient{
			routing: []*llm.Response{routeCall("artist_discovery", "artist query")},
			specialist: []*llm.Response{{
				Content:    "Velvet Thunder would be a great fit.",
				StopReason: llm.StopEndTurn,
				Usage:      llm.Usage{TokensIn: 40, TokensOut: 20},
			}},
		}
		c := newTestCoordinator(t, client)

		result, err := c.Route(ctx, "find me a rock band", "", nil, nil)

		require.NoError(t, err)
		assert.True(t, result.Routed)
		assert.Equal(t, "artist_discovery", result.TargetAgent)
		assert.Equal(t, "artist query", result.RouteReason)
		assert.Equal(t, "Velvet Thunder would be a great fit.", result.Content)

		// Routing and specialist tokens both count.
		assert.Equal(t, 55, result.TokensIn)
		assert.Equal(t, 28, result.TokensOut)

		decisions := c.Decisions()
		require.Len(t, decisions, 1)
		assert.Equal(t, "coordinator", decisions[0].From)
		assert.Equal(t, "artist_discovery", decisions[0].To)
		assert.Equal(t, "artist query", decisions[0].Reason)
	})

	t.Run("direct answer is terminal", func(t *testing.T) {
		client := &scriptedClient{
			routing: []*llm.Response{{
				Content:    "Hi! What kind of event are you planning?",
				StopReason: llm.StopEndTurn,
				Usage:      llm.Usage{TokensIn: 12, TokensOut: 9},
			}},
		}
		c := newTestCoordinator(t, client)

		result, err := c.Route(ctx, "hello", "", nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Routed)
		assert.Empty(t, result.TargetAgent)
		assert.Equal(t, "Hi! What kind of event are you planning?", result.Content)
		assert.Equal(t, 0, client.directCalls, "no specialist run for a direct answer")
		assert.Empty(t, c.Decisions())
	})

	t.Run("unknown specialist is fed back and resolved in the second turn", func(t *testing.T) {
		client := &scriptedClient{
			routing: []*llm.Response{
				routeCall("booking_wizard", "sounds right"),
				{Content: "Let me route you properly next time.", StopReason: llm.StopEndTurn},
			},
		}
		c := newTestCoordinator(t, client)

		result, err := c.Route(ctx, "book something", "", nil, nil)

		require.NoError(t, err)
		assert.False(t, result.Routed)
		assert.Equal(t, "Let me route you properly next time.", result.Content)
		assert.Empty(t, c.Decisions())
	})

	t.Run("model error propagates", func(t *testing.T) {
		client := &scriptedClient{err: errors.New("rate limited")}
		c := newTestCoordinator(t, client)

		result, err := c.Route(ctx, "hi", "", nil, nil)

		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("routing tool lists the registered specialists", func(t *testing.T) {
		c := newTestCoordinator(t, &scriptedClient{})
		assert.Equal(t, []string{"artist_discovery", "venue_matching"}, c.Specialists())
	})

	t.Run("trace records the routing decision", func(t *testing.T) {
		client := &scriptedClient{
			routing: []*llm.Response{routeCall("venue_matching", "venue query")},
		}
		c := newTestCoordinator(t, client)

		tracer := trace.NewTracer(10)
		tr := tracer.Start("t1")
		_, err := c.Route(ctx, "find a venue", "", nil, tr)
		require.NoError(t, err)
		tr.Close()

		var found bool
		for _, ev := range tr.Events {
			if ev.Type == trace.EventRoutingDecision {
				found = true
				assert.Equal(t, true, ev.Data["routed"])
				assert.Equal(t, "venue_matching", ev.Data["target"])
			}
		}
		assert.True(t, found)
	})
}

func TestRouteHistoryPassedThrough(t *testing.T) {
	// The specialist sees the same history the router saw.
	var specialistReq llm.Request
	client := &capturingClient{
		inner: &scriptedClient{
			routing: []*llm.Response{routeCall("artist_discovery", "follow-up")},
		},
		capture: func(req llm.Request) {
			if !strings.Contains(req.SystemPrompt, "Route") {
				specialistReq = req
			}
		},
	}
	c := newTestCoordinator(t, client)

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier"},
		{Role: llm.RoleAssistant, Content: "noted"},
	}
	_, err := c.Route(context.Background(), "more please", "", history, nil)
	require.NoError(t, err)

	require.Len(t, specialistReq.Messages, 3)
	assert.Equal(t, "earlier", specialistReq.Messages[0].Content)
	assert.Equal(t, "more please", specialistReq.Messages[2].Content)
}

func TestRouteContextInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("context is prefixed for router and specialist alike", func(t *testing.T) {
		var requests []llm.Request
		client := &capturingClient{
			inner: &scriptedClient{
				routing: []*llm.Response{routeCall("artist_discovery", "artist query")},
			},
			capture: func(req llm.Request) {
				requests = append(requests, req)
			},
		}
		c := newTestCoordinator(t, client)

		_, err := c.Route(ctx, "find me a rock band", "User Preferences:\nPreferred genres: rock", nil, nil)
		require.NoError(t, err)

		require.Len(t, requests, 2, "one routing call, one specialist call")
		for _, req := range requests {
			userTurn := req.Messages[len(req.Messages)-1].Content
			assert.Contains(t, userTurn, "User Preferences:\nPreferred genres: rock")
			assert.Contains(t, userTurn, "User request: find me a rock band")
		}
	})

	t.Run("empty context leaves the message untouched", func(t *testing.T) {
		var userTurn string
		client := &capturingClient{
			inner: &scriptedClient{},
			capture: func(req llm.Request) {
				userTurn = req.Messages[len(req.Messages)-1].Content
			},
		}
		c := newTestCoordinator(t, client)

		_, err := c.Route(ctx, "hello", "", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", userTurn)
	})
}

type capturingClient struct {
	inner   llm.Client
	capture func(llm.Request)
}

func (c *capturingClient) Call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.capture(req)
	return c.inner.Call(ctx, req)
}

func (c *capturingClient) Provider() string { return c.inner.Provider() }
