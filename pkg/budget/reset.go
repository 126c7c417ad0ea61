package budget

import (
	"github.com/robfig/cron/v3"
)

// ResetScheduler clears daily budget windows on a cron schedule.
type ResetScheduler struct {
	cron   *cron.Cron
	ledger *Ledger
}

// NewResetScheduler creates a scheduler that resets the ledger's daily
// counters at midnight. spec overrides the default "@daily" schedule.
func NewResetScheduler(ledger *Ledger, spec string) (*ResetScheduler, error) {
	if spec == "" {
		spec = "@daily"
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, ledger.ResetDaily); err != nil {
		return nil, err
	}

	return &ResetScheduler{cron: c, ledger: ledger}, nil
}

// Start begins the schedule in its own goroutine.
func (s *ResetScheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule; running jobs complete.
func (s *ResetScheduler) Stop() {
	s.cron.Stop()
}
