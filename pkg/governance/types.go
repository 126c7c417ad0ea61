package governance

import (
	"context"

	"github.com/mkarlsen/stagehand/pkg/budget"
)

// Direction tells a safety rail whether it is inspecting user input or
// agent output.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// SafetyResult is the outcome of a content-safety check.
type SafetyResult struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
	RiskScore  float64  `json:"risk_score"`
}

// SafetyChecker screens text for policy violations. Implementations must
// not panic across this boundary; an unreachable rail should fail open and
// report it out of band.
type SafetyChecker interface {
	Check(ctx context.Context, text string, direction Direction) SafetyResult
}

// PIIEntity is one detected span of personally identifying content.
type PIIEntity struct {
	Type  string  `json:"entity_type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// PIIResult is the outcome of PII detection and anonymization.
type PIIResult struct {
	HasPII        bool        `json:"has_pii"`
	ProtectedText string      `json:"protected_text"`
	Entities      []PIIEntity `json:"entities,omitempty"`
}

// PIIProtector detects and anonymizes personally identifying content.
// contextHint names the call site (e.g. "user_input", "agent_output").
type PIIProtector interface {
	Protect(ctx context.Context, text, contextHint string) PIIResult
}

// InputResult is the outcome of the governed input pipeline.
type InputResult struct {
	Passed        bool               `json:"passed"`
	SanitizedText string             `json:"sanitized_text,omitempty"`
	Violations    []string           `json:"violations,omitempty"`
	EventID       string             `json:"event_id"`
	ReservationID string             `json:"reservation_id,omitempty"`
	Budget        budget.CheckResult `json:"budget,omitempty"`
}

// OutputResult is the outcome of the governed output pipeline.
type OutputResult struct {
	Passed        bool     `json:"passed"`
	SanitizedText string   `json:"sanitized_text"`
	Violations    []string `json:"violations,omitempty"`
}
