package governance

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ContentRail is a keyword- and pattern-based SafetyChecker. It is the
// built-in stand-in for a hosted guardrail service and shares its contract.
type ContentRail struct {
	enabled  bool
	keywords []string
	patterns []*regexp.Regexp
}

// ContentRailConfig configures the built-in rail.
type ContentRailConfig struct {
	Enabled         bool     `json:"enabled" mapstructure:"enabled"`
	BlockedKeywords []string `json:"blocked_keywords" mapstructure:"blocked_keywords"`
	BlockedPatterns []string `json:"blocked_patterns" mapstructure:"blocked_patterns"`
}

// DefaultContentRailConfig blocks common jailbreak phrasings.
func DefaultContentRailConfig() ContentRailConfig {
	return ContentRailConfig{
		Enabled: true,
		BlockedKeywords: []string{
			"ignore previous instructions",
			"ignore all previous instructions",
			"disregard your system prompt",
		},
		BlockedPatterns: []string{
			`(?i)pretend\s+you\s+are\s+not\s+an\s+(ai|assistant)`,
			`(?i)you\s+are\s+now\s+DAN`,
		},
	}
}

// NewContentRail compiles the configured patterns.
func NewContentRail(cfg ContentRailConfig) (*ContentRail, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.BlockedPatterns))
	for _, p := range cfg.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &ContentRail{
		enabled:  cfg.Enabled,
		keywords: cfg.BlockedKeywords,
		patterns: patterns,
	}, nil
}

// Check screens text against the blocked keywords and patterns.
func (r *ContentRail) Check(_ context.Context, text string, direction Direction) SafetyResult {
	if !r.enabled {
		return SafetyResult{Passed: true}
	}

	var violations []string
	normalized := strings.ToLower(text)
	for _, kw := range r.keywords {
		if strings.Contains(normalized, strings.ToLower(kw)) {
			violations = append(violations, fmt.Sprintf("%s contains blocked phrase: %s", direction, kw))
		}
	}
	for i, re := range r.patterns {
		if re.MatchString(text) {
			violations = append(violations, fmt.Sprintf("%s matches blocked pattern #%d", direction, i+1))
		}
	}

	risk := 0.0
	if len(violations) > 0 {
		risk = 0.9
	}
	return SafetyResult{
		Passed:     len(violations) == 0,
		Violations: violations,
		RiskScore:  risk,
	}
}
