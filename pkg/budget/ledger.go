// Package budget enforces hierarchical token budgets and rate limits with
// reserve/commit/release semantics.
//
// Invariants:
//   - Counters never go negative.
//   - The global counter equals committed usage plus outstanding reservations.
//   - A reservation is settled (committed or released) at most once; the
//     second settle attempt is rejected, never double-adjusted.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mkarlsen/stagehand/internal/observability"
)

var (
	// ErrUnknownReservation is returned when settling an id the ledger
	// has no record of.
	ErrUnknownReservation = errors.New("budget: unknown reservation")
	// ErrAlreadySettled is returned on a second commit or release of the
	// same reservation.
	ErrAlreadySettled = errors.New("budget: reservation already settled")
)

// Reservation is a provisional debit against the budget counters. Exactly
// one of commit or release settles it.
type Reservation struct {
	ID        string
	Amount    int
	CreatedAt time.Time

	sessionID string
	userID    string
	committed bool
	released  bool
}

// Settled reports whether the reservation has been committed or released.
func (r *Reservation) Settled() bool {
	return r.committed || r.released
}

// Ledger tracks token usage per scope and enforces limits. All methods are
// safe for concurrent use; CheckAndReserve runs as one critical section so
// two concurrent requests cannot both pass a check before either reserves.
type Ledger struct {
	mu     sync.Mutex
	limits Limits
	logger zerolog.Logger

	globalUsage  int
	sessionUsage map[string]int
	userUsage    map[string]int
	agentUsage   map[string]int

	reservations map[string]*Reservation
	outstanding  int

	requestLimiters map[string]*rate.Limiter
	tokenLimiter    *rate.Limiter
}

// NewLedger creates a ledger with the given limits.
func NewLedger(limits Limits, logger zerolog.Logger) *Ledger {
	observability.EnsureRegistered()

	l := &Ledger{
		limits:          limits,
		logger:          logger.With().Str("component", "budget").Logger(),
		sessionUsage:    make(map[string]int),
		userUsage:       make(map[string]int),
		agentUsage:      make(map[string]int),
		reservations:    make(map[string]*Reservation),
		requestLimiters: make(map[string]*rate.Limiter),
	}
	l.tokenLimiter = newTokenLimiter(limits.TokensPerHour)
	return l
}

func newTokenLimiter(tokensPerHour int) *rate.Limiter {
	if tokensPerHour <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(tokensPerHour)/3600.0), tokensPerHour)
}

func (l *Ledger) sessionLimiter(sessionID string) *rate.Limiter {
	rpm := l.limits.RequestsPerMinute
	if rpm <= 0 {
		return nil
	}
	lim, ok := l.requestLimiters[sessionID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
		l.requestLimiters[sessionID] = lim
	}
	return lim
}

// SetLimits replaces the limit set. Existing usage counters are kept; the
// token rate window restarts.
func (l *Ledger) SetLimits(limits Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = limits
	l.tokenLimiter = newTokenLimiter(limits.TokensPerHour)
	l.requestLimiters = make(map[string]*rate.Limiter)
	l.logger.Info().
		Int("global_daily_tokens", limits.GlobalDailyTokens).
		Int("per_session_tokens", limits.PerSessionTokens).
		Msg("budget limits updated")
}

// CheckBudget evaluates scopes in fixed order: global daily, session, user
// daily, request rate, token rate. The first violated scope's reason wins.
func (l *Ledger) CheckBudget(estimatedTokens int, sessionID, userID string) CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkLocked(estimatedTokens, sessionID, userID)
}

func (l *Ledger) checkLocked(estimatedTokens int, sessionID, userID string) CheckResult {
	if !l.limits.Enabled {
		return CheckResult{Allowed: true}
	}

	deny := func(scope, reason string, remaining map[string]int) CheckResult {
		l.logger.Warn().Str("scope", scope).Str("session_id", sessionID).Msg(reason)
		observability.RecordBudgetCheck(false, scope)
		if !l.limits.Enforce {
			// Alert-only mode: log the violation but let the request pass.
			return CheckResult{Allowed: true, Remaining: remaining}
		}
		return CheckResult{Allowed: false, Scope: scope, Reason: reason, Remaining: remaining}
	}

	if l.limits.GlobalDailyTokens > 0 && l.globalUsage+estimatedTokens > l.limits.GlobalDailyTokens {
		r := deny(ScopeGlobal,
			fmt.Sprintf("global daily limit exceeded (%d/%d)", l.globalUsage, l.limits.GlobalDailyTokens),
			map[string]int{ScopeGlobal: max(0, l.limits.GlobalDailyTokens-l.globalUsage)})
		if !r.Allowed {
			return r
		}
	}

	sessionUsage := l.sessionUsage[sessionID]
	if l.limits.PerSessionTokens > 0 && sessionUsage+estimatedTokens > l.limits.PerSessionTokens {
		r := deny(ScopeSession,
			fmt.Sprintf("session limit exceeded (%d/%d)", sessionUsage, l.limits.PerSessionTokens),
			map[string]int{ScopeSession: max(0, l.limits.PerSessionTokens-sessionUsage)})
		if !r.Allowed {
			return r
		}
	}

	if userID != "" && l.limits.PerUserDailyTokens > 0 {
		userUsage := l.userUsage[userID]
		if userUsage+estimatedTokens > l.limits.PerUserDailyTokens {
			r := deny(ScopeUser,
				fmt.Sprintf("user daily limit exceeded (%d/%d)", userUsage, l.limits.PerUserDailyTokens),
				map[string]int{ScopeUser: max(0, l.limits.PerUserDailyTokens-userUsage)})
			if !r.Allowed {
				return r
			}
		}
	}

	// Rate limits are window-scoped checks; they never touch the
	// cumulative counters.
	if lim := l.sessionLimiter(sessionID); lim != nil && !lim.Allow() {
		r := deny(ScopeRequestRate,
			fmt.Sprintf("request rate limit exceeded (%d/min)", l.limits.RequestsPerMinute), nil)
		if !r.Allowed {
			return r
		}
	}
	if l.tokenLimiter != nil && !l.tokenLimiter.AllowN(time.Now(), estimatedTokens) {
		r := deny(ScopeTokenRate,
			fmt.Sprintf("token rate limit exceeded (%d/hour)", l.limits.TokensPerHour), nil)
		if !r.Allowed {
			return r
		}
	}

	observability.RecordBudgetCheck(true, "")
	remaining := map[string]int{
		ScopeGlobal:  max(0, l.limits.GlobalDailyTokens-l.globalUsage),
		ScopeSession: max(0, l.limits.PerSessionTokens-sessionUsage),
	}
	if userID != "" {
		remaining[ScopeUser] = max(0, l.limits.PerUserDailyTokens-l.userUsage[userID])
	}
	return CheckResult{Allowed: true, Remaining: remaining}
}

// Reserve optimistically debits amount from the global, session and (if
// present) user counters and records an unsettled reservation. Callers must
// have passed CheckBudget; use CheckAndReserve to do both atomically.
func (l *Ledger) Reserve(amount int, sessionID, userID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserveLocked(amount, sessionID, userID)
}

func (l *Ledger) reserveLocked(amount int, sessionID, userID string) string {
	res := &Reservation{
		ID:        gonanoid.Must(),
		Amount:    amount,
		CreatedAt: time.Now(),
		sessionID: sessionID,
		userID:    userID,
	}

	l.globalUsage += amount
	l.sessionUsage[sessionID] += amount
	if userID != "" {
		l.userUsage[userID] += amount
	}
	l.reservations[res.ID] = res
	l.outstanding++
	observability.SetActiveReservations(l.outstanding)

	l.logger.Debug().
		Str("reservation_id", res.ID).
		Int("amount", amount).
		Str("session_id", sessionID).
		Msg("tokens reserved")

	return res.ID
}

// CheckAndReserve runs the budget check and, when allowed, the reservation
// inside one critical section.
func (l *Ledger) CheckAndReserve(estimatedTokens int, sessionID, userID string) (CheckResult, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := l.checkLocked(estimatedTokens, sessionID, userID)
	if !result.Allowed {
		return result, ""
	}
	return result, l.reserveLocked(estimatedTokens, sessionID, userID)
}

// Commit settles a reservation against actual usage: the delta between
// actual and reserved tokens is applied to the counters debited at reserve
// time, and the full actual amount is attributed to the agent scope.
func (l *Ledger) Commit(reservationID string, actualTokens int, agentName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[reservationID]
	if !ok {
		l.logger.Error().Str("reservation_id", reservationID).Msg("commit of unknown reservation")
		return ErrUnknownReservation
	}
	if res.Settled() {
		l.logger.Error().
			Str("reservation_id", reservationID).
			Bool("committed", res.committed).
			Msg("commit of settled reservation rejected")
		return ErrAlreadySettled
	}

	delta := actualTokens - res.Amount
	l.globalUsage += delta
	l.addClamped(l.sessionUsage, res.sessionID, delta)
	if res.userID != "" {
		l.addClamped(l.userUsage, res.userID, delta)
	}
	if l.globalUsage < 0 {
		l.globalUsage = 0
	}
	if agentName != "" {
		l.agentUsage[agentName] += actualTokens
	}

	res.committed = true
	l.outstanding--
	observability.SetActiveReservations(l.outstanding)
	observability.RecordTokensCommitted(agentName, actualTokens)

	l.logger.Debug().
		Str("reservation_id", reservationID).
		Int("actual", actualTokens).
		Int("reserved", res.Amount).
		Int("delta", delta).
		Msg("usage committed")

	return nil
}

// Release reverts the full reserved amount if and only if the reservation
// was never committed, and removes the record.
func (l *Ledger) Release(reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[reservationID]
	if !ok {
		l.logger.Error().Str("reservation_id", reservationID).Msg("release of unknown reservation")
		return ErrUnknownReservation
	}
	if res.Settled() {
		l.logger.Error().
			Str("reservation_id", reservationID).
			Bool("committed", res.committed).
			Msg("release of settled reservation rejected")
		return ErrAlreadySettled
	}

	l.globalUsage -= res.Amount
	if l.globalUsage < 0 {
		l.globalUsage = 0
	}
	l.addClamped(l.sessionUsage, res.sessionID, -res.Amount)
	if res.userID != "" {
		l.addClamped(l.userUsage, res.userID, -res.Amount)
	}

	res.released = true
	delete(l.reservations, reservationID)
	l.outstanding--
	observability.SetActiveReservations(l.outstanding)

	l.logger.Debug().
		Str("reservation_id", reservationID).
		Int("amount", res.Amount).
		Msg("reservation released")

	return nil
}

func (l *Ledger) addClamped(m map[string]int, key string, delta int) {
	v := m[key] + delta
	if v < 0 {
		v = 0
	}
	m[key] = v
}

// GlobalUsage returns the current global counter.
func (l *Ledger) GlobalUsage() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.globalUsage
}

// SessionUsage returns the counter for one session.
func (l *Ledger) SessionUsage(sessionID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionUsage[sessionID]
}

// AgentUsage returns the committed token total for one agent.
func (l *Ledger) AgentUsage(agentName string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agentUsage[agentName]
}

// Outstanding returns the number of unsettled reservations.
func (l *Ledger) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding
}

// Stats summarizes ledger state for diagnostics.
type Stats struct {
	Enabled            bool           `json:"enabled"`
	Enforce            bool           `json:"enforce"`
	GlobalUsage        int            `json:"global_usage"`
	GlobalLimit        int            `json:"global_limit"`
	SessionCount       int            `json:"session_count"`
	UserCount          int            `json:"user_count"`
	AgentUsage         map[string]int `json:"agent_usage"`
	ActiveReservations int            `json:"active_reservations"`
}

// GetStats returns a snapshot of the ledger.
func (l *Ledger) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	agents := make(map[string]int, len(l.agentUsage))
	for k, v := range l.agentUsage {
		agents[k] = v
	}
	return Stats{
		Enabled:            l.limits.Enabled,
		Enforce:            l.limits.Enforce,
		GlobalUsage:        l.globalUsage,
		GlobalLimit:        l.limits.GlobalDailyTokens,
		SessionCount:       len(l.sessionUsage),
		UserCount:          len(l.userUsage),
		AgentUsage:         agents,
		ActiveReservations: l.outstanding,
	}
}

// ResetDaily zeroes the daily-windowed counters (global and per-user) and
// prunes settled reservation records. In-flight reservations survive so
// they can still settle. Session counters are lifetime-scoped and survive.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for id, res := range l.reservations {
		if res.Settled() {
			delete(l.reservations, id)
			pruned++
		}
	}

	l.globalUsage = 0
	l.userUsage = make(map[string]int)
	l.logger.Info().Int("reservations_pruned", pruned).Msg("daily budget counters reset")
}
