// Package orchestrator is the top-level driver. It wires governance,
// routing, memory, tracing, and metrics around one request, and guarantees
// that every exit path settles outstanding reservations and closes the
// trace exactly once.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mkarlsen/stagehand/internal/observability"
	"github.com/mkarlsen/stagehand/internal/tracing"
	"github.com/mkarlsen/stagehand/pkg/coordinator"
	"github.com/mkarlsen/stagehand/pkg/governance"
	"github.com/mkarlsen/stagehand/pkg/llm"
	"github.com/mkarlsen/stagehand/pkg/memory"
	"github.com/mkarlsen/stagehand/pkg/metrics"
	"github.com/mkarlsen/stagehand/pkg/trace"
)

// Failure kinds reported in Response.Metadata["error_kind"].
const (
	ErrKindBudget     = "budget_exceeded"
	ErrKindGuardrail  = "guardrail_violation"
	ErrKindTransport  = "llm_transport_error"
	ErrKindIncomplete = "incomplete"
)

// TokenUsage is the token accounting of one processed request.
type TokenUsage struct {
	In    int `json:"in"`
	Out   int `json:"out"`
	Total int `json:"total"`
}

// Response is the structured result of Process.
type Response struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
	Tokens   TokenUsage             `json:"tokens"`
	TraceID  string                 `json:"trace_id"`
	Success  bool                   `json:"success"`
}

// Orchestrator owns the long-lived services and processes requests.
type Orchestrator struct {
	governance   *governance.Pipeline
	coordinator  *coordinator.Coordinator
	tracer       *trace.Tracer
	collector    *metrics.Collector
	conversation *memory.ConversationMemory
	working      *memory.WorkingMemory
	preferences  *memory.PreferenceStore
	estimated    int
	historyLimit int
	logger       zerolog.Logger
}

// Config assembles an Orchestrator from its collaborators.
type Config struct {
	Governance   *governance.Pipeline
	Coordinator  *coordinator.Coordinator
	Tracer       *trace.Tracer
	Collector    *metrics.Collector
	Conversation *memory.ConversationMemory
	Working      *memory.WorkingMemory
	// Preferences is optional; when set, stored user preferences feed the
	// routing context and search parameters feed back into the store.
	Preferences *memory.PreferenceStore
	// EstimatedTokens is the optimistic reservation per request.
	EstimatedTokens int
	HistoryLimit    int
	Logger          zerolog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	estimated := cfg.EstimatedTokens
	if estimated <= 0 {
		estimated = 1000
	}
	working := cfg.Working
	if working == nil {
		working = memory.NewWorkingMemory()
	}
	return &Orchestrator{
		governance:   cfg.Governance,
		coordinator:  cfg.Coordinator,
		tracer:       cfg.Tracer,
		collector:    cfg.Collector,
		conversation: cfg.Conversation,
		working:      working,
		preferences:  cfg.Preferences,
		estimated:    estimated,
		historyLimit: cfg.HistoryLimit,
		logger:       cfg.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Process runs one governed request end to end. It never panics and never
// leaves an orphaned reservation or open trace, regardless of exit path.
func (o *Orchestrator) Process(ctx context.Context, message, sessionID, userID string) Response {
	start := time.Now()

	ctx = tracing.NewRequestContext(ctx, sessionID, userID)
	ctx, span := tracing.StartRequestSpan(ctx, "orchestrator.process",
		attribute.String("session.id", sessionID))
	defer span.End()

	requestID := tracing.GetRequestID(ctx)
	tr := o.tracer.Start(tracing.GetTraceID(ctx))
	defer tr.Close()

	wc := o.working.Create(requestID, message)
	defer o.working.Cleanup(requestID)

	observability.SetActiveSessions(len(o.conversation.Sessions()))

	// Stage 1: governed input (budget reserve, safety, PII).
	input := o.governance.CheckInput(ctx, message, sessionID, userID, o.estimated)
	if !input.Passed {
		kind := ErrKindGuardrail
		content := "I can't help with that request."
		if !input.Budget.Allowed {
			kind = ErrKindBudget
			content = "Usage limit reached. Please try again later."
		}
		o.logger.Warn().
			Str("session_id", sessionID).
			Str("kind", kind).
			Strs("violations", input.Violations).
			Msg("request blocked by governance")

		return Response{
			Content: content,
			Metadata: map[string]interface{}{
				"routed":     false,
				"error_kind": kind,
				"violations": input.Violations,
			},
			TraceID: tr.TraceID,
			Success: false,
		}
	}

	sanitized := input.SanitizedText
	if sanitized == "" {
		sanitized = message
	}

	history := o.conversation.History(sessionID, o.historyLimit)
	tr.RecordEvent(trace.EventMemoryRead, "conversation_memory", map[string]interface{}{
		"session_id":    sessionID,
		"message_count": len(history),
	})

	contextInfo := o.buildContext(userID, wc, tr)

	// Stage 2: route and run. A transport error releases the reservation
	// and returns a zero-token failure response.
	routeRes, err := o.coordinator.Route(ctx, sanitized, contextInfo, history, tr)
	if err != nil {
		o.governance.ReleaseReservation(input.ReservationID)
		return o.transportFailure(err, sessionID, tr)
	}

	// Stage 3: settle the reservation against actual usage.
	agentName := routeRes.TargetAgent
	if agentName == "" {
		agentName = "coordinator"
	}
	actual := routeRes.TokensIn + routeRes.TokensOut
	o.governance.CommitUsage(input.ReservationID, actual, agentName)

	// Stage 4: governed output (safety + PII, no budget).
	content := routeRes.Content
	output := o.governance.CheckOutput(ctx, content, sessionID, input.EventID, userID)
	if !output.Passed {
		o.logger.Warn().
			Str("session_id", sessionID).
			Strs("violations", output.Violations).
			Msg("response blocked by governance")
		return Response{
			Content: "The generated response was withheld by policy.",
			Metadata: map[string]interface{}{
				"routed":     routeRes.Routed,
				"error_kind": ErrKindGuardrail,
				"violations": output.Violations,
			},
			Tokens:  TokenUsage{In: routeRes.TokensIn, Out: routeRes.TokensOut, Total: actual},
			TraceID: tr.TraceID,
			Success: false,
		}
	}
	content = output.SanitizedText

	// Stage 5: record the exchange.
	o.conversation.AppendUser(sessionID, message)
	o.conversation.AppendAssistant(sessionID, content)
	tr.RecordEvent(trace.EventMemoryWrite, "conversation_memory", map[string]interface{}{
		"session_id": sessionID,
	})

	if routeRes.Routed {
		wc.AddRouting("coordinator", routeRes.TargetAgent, routeRes.RouteReason)
	}
	wc.SetResult("response", content)
	tr.RecordEvent(trace.EventMemoryWrite, "working_memory", map[string]interface{}{
		"context_id": requestID,
		"results":    len(wc.Results),
		"routing":    len(wc.Routing),
	})

	o.learnPreferences(userID, tr)

	durationMs := float64(time.Since(start).Milliseconds())
	o.collector.RecordAgentCall(sessionID, agentName, routeRes.TokensIn, routeRes.TokensOut, durationMs, false)
	o.governance.LogResponse(input.EventID, sessionID, userID, actual, durationMs, true)

	metadata := map[string]interface{}{
		"routed": routeRes.Routed,
	}
	if routeRes.Routed {
		metadata["target_agent"] = routeRes.TargetAgent
	}
	if routeRes.Incomplete {
		// Soft stop (iteration cap or deadline): still a success, flagged.
		metadata["incomplete"] = true
	}

	return Response{
		Content:  content,
		Metadata: metadata,
		Tokens:   TokenUsage{In: routeRes.TokensIn, Out: routeRes.TokensOut, Total: actual},
		TraceID:  tr.TraceID,
		Success:  true,
	}
}

// buildContext assembles prompt context from the memory systems. Today that
// is stored user preferences; working-memory results could join it later.
func (o *Orchestrator) buildContext(userID string, wc *memory.WorkingContext, tr *trace.Trace) string {
	if o.preferences == nil || userID == "" {
		return ""
	}

	prefCtx, err := o.preferences.Context(userID)
	if err != nil {
		o.logger.Warn().Str("user_id", userID).Err(err).Msg("failed to load preferences")
		return ""
	}

	wc.SetResult("user_preferences", prefCtx)
	tr.RecordEvent(trace.EventMemoryRead, "preference_store", map[string]interface{}{
		"user_id": userID,
	})
	return "User Preferences:\n" + prefCtx
}

// learnPreferences persists the structured facts the model itself put into
// catalog search calls this request: genres, locations and capacity bounds
// from tool parameters, read off the trace.
func (o *Orchestrator) learnPreferences(userID string, tr *trace.Trace) {
	if o.preferences == nil || userID == "" {
		return
	}

	var update memory.PreferenceUpdate
	snapshot := tr.Snapshot()
	for _, ev := range snapshot.Events {
		if ev.Type != trace.EventToolCall {
			continue
		}
		tool, _ := ev.Data["tool"].(string)
		input, _ := ev.Data["input"].(map[string]interface{})
		if input == nil || !searchTools[tool] {
			continue
		}

		if genre, ok := input["genre"].(string); ok && genre != "" {
			update.Genres = append(update.Genres, genre)
		}
		if location, ok := input["location"].(string); ok && location != "" {
			update.Locations = append(update.Locations, location)
		}
		if maxCap := numericParam(input, "max_capacity", "max_venue_capacity"); maxCap > 0 {
			update.CapacityMin = numericParam(input, "min_capacity")
			update.CapacityMax = maxCap
		}
	}

	if len(update.Genres) == 0 && len(update.Locations) == 0 && update.CapacityMax == 0 {
		return
	}
	if err := o.preferences.Update(userID, update); err != nil {
		o.logger.Warn().Str("user_id", userID).Err(err).Msg("failed to update preferences")
	}
}

// searchTools are the catalog tools whose parameters encode preferences.
var searchTools = map[string]bool{
	"search_artists":          true,
	"search_venues":           true,
	"semantic_search_artists": true,
	"semantic_search_venues":  true,
}

func numericParam(input map[string]interface{}, keys ...string) int {
	for _, key := range keys {
		switch v := input[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

func (o *Orchestrator) transportFailure(err error, sessionID string, tr *trace.Trace) Response {
	var transport *llm.TransportError
	kind := ErrKindTransport
	if !errors.As(err, &transport) {
		o.logger.Error().Str("session_id", sessionID).Err(err).Msg("request failed")
	} else {
		o.logger.Error().
			Str("session_id", sessionID).
			Str("provider", transport.Provider).
			Err(err).
			Msg("model transport failure")
	}

	tr.RecordEvent(trace.EventError, "orchestrator", map[string]interface{}{
		"error": err.Error(),
	})
	o.collector.RecordAgentCall(sessionID, "coordinator", 0, 0, 0, true)

	return Response{
		Content: "Something went wrong talking to the model. Please try again.",
		Metadata: map[string]interface{}{
			"routed":     false,
			"error_kind": kind,
		},
		TraceID: tr.TraceID,
		Success: false,
	}
}

// GetSessionMetrics returns aggregates for one session, or nil when the
// session has no recorded calls.
func (o *Orchestrator) GetSessionMetrics(sessionID string) *metrics.SessionMetrics {
	return o.collector.SessionSummary(sessionID)
}

// GetRecentTraces returns up to limit completed traces, newest first.
func (o *Orchestrator) GetRecentTraces(limit int) []*trace.Trace {
	return o.tracer.Recent(limit)
}

// ClearSession drops a session's conversation history and metrics.
func (o *Orchestrator) ClearSession(sessionID string) {
	o.conversation.Clear(sessionID)
	o.collector.ClearSession(sessionID)
	observability.SetActiveSessions(len(o.conversation.Sessions()))
}
