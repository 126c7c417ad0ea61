// Package coordinator routes incoming messages to specialist agents. The
// routing decision itself is made by a model run with a single
// route_to_specialist tool; when the model answers directly instead, that
// answer is the terminal outcome.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkarlsen/stagehand/internal/observability"
	"github.com/mkarlsen/stagehand/pkg/llm"
	"github.com/mkarlsen/stagehand/pkg/runner"
	"github.com/mkarlsen/stagehand/pkg/tools"
	"github.com/mkarlsen/stagehand/pkg/trace"
)

// RouteToolName is the tool the routing model calls to hand off.
const RouteToolName = "route_to_specialist"

// RoutingDecision is an advisory record of one hand-off.
type RoutingDecision struct {
	From      string    `json:"from_agent"`
	To        string    `json:"to_agent"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteResult is the outcome of routing one message.
type RouteResult struct {
	Content     string `json:"content"`
	Routed      bool   `json:"routed"`
	TargetAgent string `json:"target_agent,omitempty"`
	RouteReason string `json:"route_reason,omitempty"`
	TokensIn    int    `json:"tokens_in"`
	TokensOut   int    `json:"tokens_out"`
	Iterations  int    `json:"iterations"`
	Incomplete  bool   `json:"incomplete,omitempty"`
}

// Coordinator holds the specialist registry and drives routing.
type Coordinator struct {
	client      llm.Client
	runner      *runner.Runner
	role        runner.Role
	specialists map[string]runner.Role
	runnerOpts  []runner.Option
	logger      zerolog.Logger

	mu        sync.Mutex
	decisions []RoutingDecision
}

// New creates a Coordinator. specialistRunner executes delegated runs with
// the full domain tool set; the routing model call uses a private registry
// holding only the routing tool.
func New(client llm.Client, specialistRunner *runner.Runner, role runner.Role, logger zerolog.Logger, opts ...runner.Option) *Coordinator {
	return &Coordinator{
		client:      client,
		runner:      specialistRunner,
		role:        role,
		specialists: make(map[string]runner.Role),
		runnerOpts:  opts,
		logger:      logger.With().Str("component", "coordinator").Logger(),
	}
}

// RegisterSpecialist adds a specialist role to the routing registry.
func (c *Coordinator) RegisterSpecialist(role runner.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specialists[role.Name] = role
}

// Specialists returns the registered specialist names, sorted.
func (c *Coordinator) Specialists() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.specialists))
	for name := range c.specialists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decisions returns a copy of the routing decisions made so far.
func (c *Coordinator) Decisions() []RoutingDecision {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RoutingDecision, len(c.decisions))
	copy(out, c.decisions)
	return out
}

// Route decides where a message goes. contextInfo is prompt context built
// outside the conversation (user preferences, intermediate results); when
// non-empty it is prefixed to the user turn for both the routing model and
// any delegated specialist. When the routing model calls the hand-off tool,
// the full context and history delegate to that specialist's loop; a direct
// answer (greeting, clarifying question) is returned as-is with routed=false.
func (c *Coordinator) Route(ctx context.Context, userMessage, contextInfo string, history []llm.Message, tr *trace.Trace) (*RouteResult, error) {
	var (
		selMu     sync.Mutex
		selected  string
		selReason string
	)

	specialists := c.Specialists()
	routeRegistry := tools.NewRegistry(c.logger)
	err := routeRegistry.Register(tools.Definition{
		Name:        RouteToolName,
		Description: "Hand this conversation to a specialist agent. Call at most once.",
		Parameters: []tools.Parameter{
			{Name: "agent", Type: "string", Description: "One of: " + strings.Join(specialists, ", "), Required: true},
			{Name: "reason", Type: "string", Description: "Why this specialist fits", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			agent, _ := params["agent"].(string)
			reason, _ := params["reason"].(string)

			c.mu.Lock()
			_, known := c.specialists[agent]
			c.mu.Unlock()
			if !known {
				return nil, fmt.Errorf("unknown specialist: %s", agent)
			}

			selMu.Lock()
			selected = agent
			selReason = reason
			selMu.Unlock()
			return map[string]interface{}{
				"status": "handoff recorded",
				"agent":  agent,
			}, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register routing tool: %w", err)
	}

	// The routing run uses its own short loop: one call to decide, one to
	// acknowledge the hand-off.
	opts := append([]runner.Option{runner.WithMaxIterations(2)}, c.runnerOpts...)
	routeRunner := runner.New(c.client, routeRegistry, c.logger, opts...)

	routeRole := c.role
	routeRole.Tools = []string{RouteToolName}

	content := userMessage
	if contextInfo != "" {
		content = contextInfo + "\n\nUser request: " + userMessage
	}

	routeRes, err := routeRunner.Run(ctx, routeRole, content, history, tr)
	if err != nil {
		return nil, err
	}

	result := &RouteResult{
		TokensIn:   routeRes.TokensIn,
		TokensOut:  routeRes.TokensOut,
		Iterations: routeRes.Iterations,
	}

	selMu.Lock()
	target, reason := selected, selReason
	selMu.Unlock()

	if target == "" {
		// Direct answer or clarifying question: an allowed terminal outcome.
		result.Content = routeRes.Content
		result.Incomplete = routeRes.Incomplete
		observability.RecordRoutingDecision("direct")
		tr.RecordEvent(trace.EventRoutingDecision, c.role.Name, map[string]interface{}{
			"routed": false,
		})
		return result, nil
	}

	c.recordDecision(c.role.Name, target, reason)
	observability.RecordRoutingDecision(target)
	tr.RecordEvent(trace.EventRoutingDecision, c.role.Name, map[string]interface{}{
		"routed": true,
		"target": target,
		"reason": reason,
	})

	c.mu.Lock()
	specialistRole := c.specialists[target]
	c.mu.Unlock()

	specRes, err := c.runner.Run(ctx, specialistRole, content, history, tr)
	if err != nil {
		return nil, err
	}

	result.Content = specRes.Content
	result.Routed = true
	result.TargetAgent = target
	result.RouteReason = reason
	result.TokensIn += specRes.TokensIn
	result.TokensOut += specRes.TokensOut
	result.Iterations += specRes.Iterations
	result.Incomplete = specRes.Incomplete
	return result, nil
}

func (c *Coordinator) recordDecision(from, to, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions = append(c.decisions, RoutingDecision{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	c.logger.Info().Str("from", from).Str("to", to).Str("reason", reason).Msg("routing decision")
}
