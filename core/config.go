package core

import "time"

// Config carries the evaluator's tunables. The zero value is usable; missing
// fields fall back to defaults.
type Config struct {
	// EscalationWindow is the span within which a second quota violation
	// suspends the grant until an explicit restore. Defaults to 30 days.
	EscalationWindow time.Duration

	// IssueAttempts bounds retries when a freshly generated secret collides
	// with an existing purchase record.
	IssueAttempts int

	// UpdateAttempts bounds rereads when an aggregate write loses its
	// compare-and-swap race.
	UpdateAttempts int
}

const (
	defaultEscalationWindow = 30 * 24 * time.Hour
	defaultIssueAttempts    = 5
	defaultUpdateAttempts   = 3
)

func (c Config) withDefaults() Config {
	if c.EscalationWindow <= 0 {
		c.EscalationWindow = defaultEscalationWindow
	}
	if c.IssueAttempts <= 0 {
		c.IssueAttempts = defaultIssueAttempts
	}
	if c.UpdateAttempts <= 0 {
		c.UpdateAttempts = defaultUpdateAttempts
	}
	return c
}
