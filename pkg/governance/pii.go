package governance

import (
	"context"
	"fmt"
	"regexp"
)

// piiPattern pairs an entity type with its detector.
type piiPattern struct {
	entityType string
	re         *regexp.Regexp
	score      float64
}

// RegexProtector is a pattern-based PIIProtector. Detected spans are
// replaced with their entity type tag. Entity types on the allow list
// (business contact fields such as venue emails) are reported but left in
// place.
type RegexProtector struct {
	enabled        bool
	patterns       []piiPattern
	allowedByHint  map[string][]string
	defaultAllowed []string
}

// RegexProtectorConfig configures the built-in protector.
type RegexProtectorConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// AllowedEntities lists entity types that are permitted business
	// contact data and must not be anonymized.
	AllowedEntities []string `json:"allowed_entities" mapstructure:"allowed_entities"`
}

// DefaultRegexProtectorConfig anonymizes every detected entity type on
// user input. Catalog contact data is allowed per context hint instead,
// so tool results and agent answers keep venue and artist contacts.
func DefaultRegexProtectorConfig() RegexProtectorConfig {
	return RegexProtectorConfig{Enabled: true}
}

// NewRegexProtector builds the protector with stock detectors for emails,
// phone numbers, SSNs and credit cards.
func NewRegexProtector(cfg RegexProtectorConfig) *RegexProtector {
	return &RegexProtector{
		enabled: cfg.Enabled,
		patterns: []piiPattern{
			{"EMAIL", regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), 0.95},
			{"PHONE", regexp.MustCompile(`\+?\d{1,2}[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`), 0.8},
			{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), 0.95},
			{"CREDIT_CARD", regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`), 0.7},
		},
		defaultAllowed: cfg.AllowedEntities,
		allowedByHint: map[string][]string{
			// Tool results and agent answers carry catalog contact data on
			// purpose. SSNs and card numbers are never allowed anywhere.
			"tool_result":  {"EMAIL", "PHONE"},
			"agent_output": {"EMAIL", "PHONE"},
		},
	}
}

// Protect detects PII spans in text and anonymizes those not allowed for
// the given context hint.
func (p *RegexProtector) Protect(_ context.Context, text, contextHint string) PIIResult {
	if !p.enabled {
		return PIIResult{HasPII: false, ProtectedText: text}
	}

	allowed := append([]string(nil), p.defaultAllowed...)
	allowed = append(allowed, p.allowedByHint[contextHint]...)
	isAllowed := func(entityType string) bool {
		for _, a := range allowed {
			if a == entityType {
				return true
			}
		}
		return false
	}

	var entities []PIIEntity
	protected := text
	for _, pat := range p.patterns {
		locs := pat.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			entities = append(entities, PIIEntity{
				Type:  pat.entityType,
				Start: loc[0],
				End:   loc[1],
				Score: pat.score,
			})
		}
		if len(locs) > 0 && !isAllowed(pat.entityType) {
			protected = pat.re.ReplaceAllString(protected, fmt.Sprintf("[%s]", pat.entityType))
		}
	}

	return PIIResult{
		HasPII:        len(entities) > 0,
		ProtectedText: protected,
		Entities:      entities,
	}
}
