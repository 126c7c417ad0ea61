package budget

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		Enabled:            true,
		Enforce:            true,
		GlobalDailyTokens:  10_000,
		PerSessionTokens:   1_000,
		PerUserDailyTokens: 2_000,
		RequestsPerMinute:  0, // rate windows off unless a test turns them on
		TokensPerHour:      0,
	}
}

func newTestLedger(limits Limits) *Ledger {
	return NewLedger(limits, zerolog.Nop())
}

func TestCheckBudget(t *testing.T) {
	t.Run("allows within all limits", func(t *testing.T) {
		l := newTestLedger(testLimits())
		result := l.CheckBudget(500, "s1", "u1")

		require.True(t, result.Allowed)
		assert.Equal(t, 10_000, result.Remaining[ScopeGlobal])
		assert.Equal(t, 1_000, result.Remaining[ScopeSession])
		assert.Equal(t, 2_000, result.Remaining[ScopeUser])
	})

	t.Run("exactly at limit is allowed", func(t *testing.T) {
		l := newTestLedger(testLimits())
		result := l.CheckBudget(1_000, "s1", "")
		assert.True(t, result.Allowed)
	})

	t.Run("one over limit is denied", func(t *testing.T) {
		l := newTestLedger(testLimits())
		result := l.CheckBudget(1_001, "s1", "")

		require.False(t, result.Allowed)
		assert.Equal(t, ScopeSession, result.Scope)
	})

	t.Run("session denial after reserved usage", func(t *testing.T) {
		l := newTestLedger(testLimits())
		l.Reserve(600, "s1", "u1")

		result := l.CheckBudget(600, "s1", "u1")

		require.False(t, result.Allowed)
		assert.Equal(t, ScopeSession, result.Scope)
		assert.Equal(t, 400, result.Remaining[ScopeSession])
	})

	t.Run("global checked before session", func(t *testing.T) {
		limits := testLimits()
		limits.GlobalDailyTokens = 100
		l := newTestLedger(limits)

		result := l.CheckBudget(5_000, "s1", "u1")

		require.False(t, result.Allowed)
		assert.Equal(t, ScopeGlobal, result.Scope)
	})

	t.Run("user checked after session", func(t *testing.T) {
		limits := testLimits()
		limits.PerSessionTokens = 0 // unlimited
		l := newTestLedger(limits)
		l.Reserve(1_900, "s1", "u1")

		result := l.CheckBudget(200, "s2", "u1")

		require.False(t, result.Allowed)
		assert.Equal(t, ScopeUser, result.Scope)
	})

	t.Run("user scope skipped for anonymous requests", func(t *testing.T) {
		limits := testLimits()
		limits.PerSessionTokens = 0
		l := newTestLedger(limits)
		// Overcommit a user counter; anonymous requests never see it.
		l.Reserve(1_999, "s1", "u1")

		result := l.CheckBudget(500, "s2", "")
		assert.True(t, result.Allowed)
	})

	t.Run("disabled ledger allows everything", func(t *testing.T) {
		limits := testLimits()
		limits.Enabled = false
		l := newTestLedger(limits)

		result := l.CheckBudget(1_000_000_000, "s1", "u1")
		assert.True(t, result.Allowed)
	})

	t.Run("alert-only mode logs but allows", func(t *testing.T) {
		limits := testLimits()
		limits.Enforce = false
		l := newTestLedger(limits)

		result := l.CheckBudget(5_000, "s1", "")
		assert.True(t, result.Allowed)
	})

	t.Run("request rate limit denies burst overflow", func(t *testing.T) {
		limits := testLimits()
		limits.RequestsPerMinute = 3
		l := newTestLedger(limits)

		for i := 0; i < 3; i++ {
			result := l.CheckBudget(10, "s1", "")
			require.True(t, result.Allowed, "request %d should pass", i)
		}
		result := l.CheckBudget(10, "s1", "")
		require.False(t, result.Allowed)
		assert.Equal(t, ScopeRequestRate, result.Scope)
	})

	t.Run("token rate limit denies burst overflow", func(t *testing.T) {
		limits := testLimits()
		limits.TokensPerHour = 1_000
		l := newTestLedger(limits)

		result := l.CheckBudget(900, "s1", "")
		require.True(t, result.Allowed)
		result = l.CheckBudget(900, "s2", "")
		require.False(t, result.Allowed)
		assert.Equal(t, ScopeTokenRate, result.Scope)
	})
}

func TestReserveCommitRelease(t *testing.T) {
	t.Run("reserve debits all scopes", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "u1")

		require.NotEmpty(t, id)
		assert.Equal(t, 500, l.GlobalUsage())
		assert.Equal(t, 500, l.SessionUsage("s1"))
		assert.Equal(t, 1, l.Outstanding())
	})

	t.Run("commit applies the delta, not the total", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "u1")

		err := l.Commit(id, 700, "artist_discovery")

		require.NoError(t, err)
		assert.Equal(t, 700, l.GlobalUsage())
		assert.Equal(t, 700, l.SessionUsage("s1"))
		assert.Equal(t, 700, l.AgentUsage("artist_discovery"))
		assert.Equal(t, 0, l.Outstanding())
	})

	t.Run("commit under reservation refunds the difference", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(1_000, "s1", "")

		err := l.Commit(id, 300, "coordinator")

		require.NoError(t, err)
		assert.Equal(t, 300, l.GlobalUsage())
		assert.Equal(t, 300, l.SessionUsage("s1"))
	})

	t.Run("release restores counters exactly", func(t *testing.T) {
		l := newTestLedger(testLimits())
		l.Reserve(200, "s1", "u1")
		id := l.Reserve(500, "s1", "u1")

		err := l.Release(id)

		require.NoError(t, err)
		assert.Equal(t, 200, l.GlobalUsage())
		assert.Equal(t, 200, l.SessionUsage("s1"))
		assert.Equal(t, 1, l.Outstanding())
	})

	t.Run("double commit is rejected without double counting", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "")
		require.NoError(t, l.Commit(id, 500, "a"))

		err := l.Commit(id, 500, "a")

		assert.ErrorIs(t, err, ErrAlreadySettled)
		assert.Equal(t, 500, l.GlobalUsage())
		assert.Equal(t, 500, l.AgentUsage("a"))
	})

	t.Run("release after commit is rejected", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "")
		require.NoError(t, l.Commit(id, 500, "a"))

		err := l.Release(id)

		assert.ErrorIs(t, err, ErrAlreadySettled)
		assert.Equal(t, 500, l.GlobalUsage())
	})

	t.Run("double release is rejected", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "")
		require.NoError(t, l.Release(id))

		err := l.Release(id)

		assert.ErrorIs(t, err, ErrUnknownReservation)
		assert.Equal(t, 0, l.GlobalUsage())
	})

	t.Run("settle of unknown id", func(t *testing.T) {
		l := newTestLedger(testLimits())
		assert.ErrorIs(t, l.Commit("nope", 100, "a"), ErrUnknownReservation)
		assert.ErrorIs(t, l.Release("nope"), ErrUnknownReservation)
	})

	t.Run("counters never go negative", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "u1")

		require.NoError(t, l.Commit(id, 0, "a"))

		assert.GreaterOrEqual(t, l.GlobalUsage(), 0)
		assert.GreaterOrEqual(t, l.SessionUsage("s1"), 0)
	})
}

func TestCheckAndReserve(t *testing.T) {
	t.Run("allowed check yields a reservation", func(t *testing.T) {
		l := newTestLedger(testLimits())
		result, id := l.CheckAndReserve(500, "s1", "u1")

		require.True(t, result.Allowed)
		require.NotEmpty(t, id)
		assert.Equal(t, 500, l.GlobalUsage())
	})

	t.Run("denied check reserves nothing", func(t *testing.T) {
		l := newTestLedger(testLimits())
		result, id := l.CheckAndReserve(2_000, "s1", "")

		require.False(t, result.Allowed)
		assert.Empty(t, id)
		assert.Equal(t, 0, l.GlobalUsage())
	})

	t.Run("concurrent reservations never overshoot the session cap", func(t *testing.T) {
		limits := testLimits()
		limits.PerSessionTokens = 1_000
		l := newTestLedger(limits)

		var wg sync.WaitGroup
		var mu sync.Mutex
		granted := 0
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result, id := l.CheckAndReserve(100, "s1", "")
				if result.Allowed && id != "" {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, granted)
		assert.Equal(t, 1_000, l.SessionUsage("s1"))
	})
}

func TestLedgerInvariants(t *testing.T) {
	// Global counter equals committed usage plus outstanding reservations,
	// through an arbitrary interleaving of reserve, commit and release.
	l := newTestLedger(Limits{Enabled: true, Enforce: true, GlobalDailyTokens: 1_000_000})

	committed := 0
	var open []string
	for i := 0; i < 50; i++ {
		id := l.Reserve(100, fmt.Sprintf("s%d", i%5), "")
		open = append(open, id)

		switch i % 3 {
		case 0:
			require.NoError(t, l.Commit(open[0], 130, "a"))
			committed += 130
			open = open[1:]
		case 1:
			require.NoError(t, l.Release(open[0]))
			open = open[1:]
		}
	}

	outstanding := 100 * len(open)
	assert.Equal(t, committed+outstanding, l.GlobalUsage())
	assert.Equal(t, len(open), l.Outstanding())
}

func TestResetDaily(t *testing.T) {
	t.Run("daily counters reset, session counters survive", func(t *testing.T) {
		l := newTestLedger(testLimits())
		id := l.Reserve(500, "s1", "u1")
		require.NoError(t, l.Commit(id, 500, "a"))

		l.ResetDaily()

		assert.Equal(t, 0, l.GlobalUsage())
		// Session counters are lifetime-scoped and survive the daily reset.
		assert.Equal(t, 500, l.SessionUsage("s1"))
	})

	t.Run("settled reservation records are pruned", func(t *testing.T) {
		l := newTestLedger(testLimits())
		committed := l.Reserve(500, "s1", "u1")
		require.NoError(t, l.Commit(committed, 500, "a"))
		released := l.Reserve(500, "s2", "u2")
		require.NoError(t, l.Release(released))

		l.ResetDaily()

		// A settled reservation is gone, so a late commit reports it
		// unknown rather than already settled.
		assert.ErrorIs(t, l.Commit(committed, 100, "a"), ErrUnknownReservation)
		assert.ErrorIs(t, l.Release(released), ErrUnknownReservation)
	})

	t.Run("in-flight reservations survive and still settle", func(t *testing.T) {
		l := newTestLedger(testLimits())
		open := l.Reserve(500, "s1", "u1")

		l.ResetDaily()

		assert.Equal(t, 1, l.Outstanding())
		require.NoError(t, l.Commit(open, 400, "a"))
		assert.Equal(t, 0, l.Outstanding())
	})
}

func TestSetLimits(t *testing.T) {
	l := newTestLedger(testLimits())
	l.Reserve(900, "s1", "")

	next := testLimits()
	next.PerSessionTokens = 5_000
	l.SetLimits(next)

	result := l.CheckBudget(2_000, "s1", "")
	assert.True(t, result.Allowed, "raised limit should apply to existing usage")

	stats := l.GetStats()
	assert.Equal(t, 900, stats.GlobalUsage)
	assert.Equal(t, 1, stats.ActiveReservations)
}
