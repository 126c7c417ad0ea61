// Package governance runs the ordered input/output safety pipeline around
// every agent request: budget, guardrail, PII protection, audit.
//
// Invariants:
//   - Input stages run in fixed order and short-circuit on first failure.
//   - A reservation made at the budget stage is released before returning
//     whenever a later stage fails.
//   - Output checks never touch the budget: the tokens were already settled
//     by the commit that followed the LLM call.
package governance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mkarlsen/stagehand/internal/observability"
	"github.com/mkarlsen/stagehand/pkg/budget"
)

// Pipeline coordinates the governance components around one request.
type Pipeline struct {
	ledger  *budget.Ledger
	safety  SafetyChecker
	pii     PIIProtector
	audit   *AuditLogger
	logger  zerolog.Logger
	enabled bool
}

// Config wires the pipeline's collaborators.
type Config struct {
	Enabled bool
	Ledger  *budget.Ledger
	Safety  SafetyChecker
	PII     PIIProtector
	Audit   *AuditLogger
	Logger  zerolog.Logger
}

// NewPipeline creates the governance pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Enabled && cfg.Ledger == nil {
		return nil, fmt.Errorf("budget ledger is required")
	}
	return &Pipeline{
		ledger:  cfg.Ledger,
		safety:  cfg.Safety,
		pii:     cfg.PII,
		audit:   cfg.Audit,
		logger:  cfg.Logger.With().Str("component", "governance").Logger(),
		enabled: cfg.Enabled,
	}, nil
}

// CheckInput validates an incoming message: budget check plus reservation,
// safety rail, then PII protection. On a stage-2 or stage-3 failure the
// stage-1 reservation is released before returning.
func (p *Pipeline) CheckInput(ctx context.Context, text, sessionID, userID string, estimatedTokens int) InputResult {
	eventID := uuid.New().String()

	if !p.enabled {
		return InputResult{Passed: true, SanitizedText: text, EventID: eventID}
	}

	if p.audit != nil {
		p.audit.LogRequest(eventID, sessionID, userID, len(text))
	}

	// Stage 1: budget check and reservation, one critical section.
	budgetResult, reservationID := p.ledger.CheckAndReserve(estimatedTokens, sessionID, userID)
	if !budgetResult.Allowed {
		observability.RecordGovernanceCheck("input", false)
		observability.RecordGovernanceViolation("budget")
		if p.audit != nil {
			p.audit.LogViolation(eventID, sessionID, userID, "budget_exceeded", map[string]interface{}{
				"reason": budgetResult.Reason,
				"scope":  budgetResult.Scope,
			})
		}
		return InputResult{
			Passed:     false,
			Violations: []string{fmt.Sprintf("budget exceeded: %s", budgetResult.Reason)},
			EventID:    eventID,
			Budget:     budgetResult,
		}
	}

	// Stage 2: safety rail.
	if p.safety != nil {
		safetyResult := p.safety.Check(ctx, text, DirectionInput)
		if !safetyResult.Passed {
			p.releaseReservation(reservationID)
			observability.RecordGovernanceCheck("input", false)
			observability.RecordGovernanceViolation("guardrail")
			if p.audit != nil {
				p.audit.LogViolation(eventID, sessionID, userID, "guardrails_failed", map[string]interface{}{
					"violations": safetyResult.Violations,
					"risk_score": safetyResult.RiskScore,
				})
			}
			return InputResult{
				Passed:     false,
				Violations: safetyResult.Violations,
				EventID:    eventID,
				Budget:     budgetResult,
			}
		}
	}

	// Stage 3: PII detection and anonymization. Detection alone is not a
	// failure; the sanitized text replaces the original downstream.
	sanitized := text
	if p.pii != nil {
		piiResult := p.pii.Protect(ctx, text, "user_input")
		if piiResult.HasPII {
			types := make([]string, 0, len(piiResult.Entities))
			for _, e := range piiResult.Entities {
				types = append(types, e.Type)
			}
			if p.audit != nil {
				p.audit.LogPIIEvent(eventID, sessionID, userID, len(piiResult.Entities), types)
			}
			p.logger.Info().
				Int("entities", len(piiResult.Entities)).
				Str("session_id", sessionID).
				Msg("PII detected in input")
		}
		sanitized = piiResult.ProtectedText
	}

	observability.RecordGovernanceCheck("input", true)
	return InputResult{
		Passed:        true,
		SanitizedText: sanitized,
		EventID:       eventID,
		ReservationID: reservationID,
		Budget:        budgetResult,
	}
}

// CheckOutput validates an agent reply: safety rail plus PII protection,
// with no budget involvement.
func (p *Pipeline) CheckOutput(ctx context.Context, text, sessionID, eventID, userID string) OutputResult {
	if !p.enabled {
		return OutputResult{Passed: true, SanitizedText: text}
	}

	var violations []string
	if p.safety != nil {
		safetyResult := p.safety.Check(ctx, text, DirectionOutput)
		if !safetyResult.Passed {
			violations = append(violations, safetyResult.Violations...)
			observability.RecordGovernanceViolation("output_guardrail")
			if p.audit != nil {
				p.audit.LogViolation(eventID, sessionID, userID, "output_guardrails_failed", map[string]interface{}{
					"violations": safetyResult.Violations,
				})
			}
		}
	}

	sanitized := text
	if p.pii != nil {
		piiResult := p.pii.Protect(ctx, text, "agent_output")
		if piiResult.HasPII {
			p.logger.Warn().
				Int("entities", len(piiResult.Entities)).
				Str("session_id", sessionID).
				Msg("PII detected in agent output")
			sanitized = piiResult.ProtectedText
		}
	}

	passed := len(violations) == 0
	observability.RecordGovernanceCheck("output", passed)
	return OutputResult{
		Passed:        passed,
		SanitizedText: sanitized,
		Violations:    violations,
	}
}

// SanitizeToolResult scrubs PII from a tool result before it re-enters the
// model context. Catalog contact data stays intact under the tool_result
// hint; sensitive identifiers like SSNs and card numbers are anonymized.
func (p *Pipeline) SanitizeToolResult(ctx context.Context, text string) string {
	if !p.enabled || p.pii == nil {
		return text
	}
	piiResult := p.pii.Protect(ctx, text, "tool_result")
	if piiResult.HasPII && piiResult.ProtectedText != text {
		p.logger.Info().
			Int("entities", len(piiResult.Entities)).
			Msg("PII anonymized in tool result")
	}
	return piiResult.ProtectedText
}

// CommitUsage settles the reservation made by CheckInput against actual
// token usage.
func (p *Pipeline) CommitUsage(reservationID string, actualTokens int, agentName string) {
	if !p.enabled || reservationID == "" {
		return
	}
	if err := p.ledger.Commit(reservationID, actualTokens, agentName); err != nil {
		p.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("commit failed")
	}
}

// ReleaseReservation reverts the reservation made by CheckInput, for exit
// paths that never reached a commit.
func (p *Pipeline) ReleaseReservation(reservationID string) {
	if !p.enabled || reservationID == "" {
		return
	}
	p.releaseReservation(reservationID)
}

func (p *Pipeline) releaseReservation(reservationID string) {
	if err := p.ledger.Release(reservationID); err != nil {
		p.logger.Error().Err(err).Str("reservation_id", reservationID).Msg("release failed")
	}
}

// LogResponse records the final outcome for audit.
func (p *Pipeline) LogResponse(eventID, sessionID, userID string, tokensUsed int, latencyMs float64, success bool) {
	if !p.enabled || p.audit == nil {
		return
	}
	p.audit.LogResponse(eventID, sessionID, userID, tokensUsed, latencyMs, success)
}

// Ledger exposes the underlying budget ledger for diagnostics.
func (p *Pipeline) Ledger() *budget.Ledger {
	return p.ledger
}
