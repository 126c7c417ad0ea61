package budget

// Scope names a budget counter family, checked in fixed order.
const (
	ScopeGlobal      = "global"
	ScopeSession     = "session"
	ScopeUser        = "user"
	ScopeAgent       = "agent"
	ScopeRequestRate = "request_rate"
	ScopeTokenRate   = "token_rate"
)

// Limits holds the hierarchical budget and rate limits. All token limits
// are inclusive upper bounds: a request that lands exactly on the limit is
// allowed, one that exceeds it is denied.
type Limits struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Enforce bool `json:"enforce" mapstructure:"enforce"`

	GlobalDailyTokens  int `json:"global_daily_tokens" mapstructure:"global_daily_tokens"`
	PerSessionTokens   int `json:"per_session_tokens" mapstructure:"per_session_tokens"`
	PerUserDailyTokens int `json:"per_user_daily_tokens" mapstructure:"per_user_daily_tokens"`

	RequestsPerMinute int `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	TokensPerHour     int `json:"tokens_per_hour" mapstructure:"tokens_per_hour"`
}

// DefaultLimits returns the stock limit set.
func DefaultLimits() Limits {
	return Limits{
		Enabled:            true,
		Enforce:            true,
		GlobalDailyTokens:  1_000_000,
		PerSessionTokens:   50_000,
		PerUserDailyTokens: 100_000,
		RequestsPerMinute:  30,
		TokensPerHour:      100_000,
	}
}

// CheckResult reports the outcome of a budget check. Reason and Scope are
// set for the first violated scope only.
type CheckResult struct {
	Allowed   bool           `json:"allowed"`
	Remaining map[string]int `json:"remaining,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Scope     string         `json:"scope,omitempty"`
}
