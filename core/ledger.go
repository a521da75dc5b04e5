package core

import (
	"time"

	"github.com/google/uuid"
)

// Ledger is the feature entitlement ledger: per-feature usage counting,
// daily reset, violation escalation, and restoration. It operates on one
// grant of one aggregate at a time and keeps no state of its own beyond the
// escalation window.
type Ledger struct {
	window time.Duration
}

func NewLedger(escalationWindow time.Duration) *Ledger {
	if escalationWindow <= 0 {
		escalationWindow = defaultEscalationWindow
	}
	return &Ledger{window: escalationWindow}
}

// dayOf truncates a timestamp to the start of its UTC calendar day.
// Timestamps reloaded from the store arrive in UTC while the system clock
// reports local time, so both sides normalize before comparing.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordUsage accounts one use of a feature against its grant.
//
// A grant with limit N permits N+1 uses per calendar day; the next attempt
// records a violation (at most one per day) and is denied with
// CodeQuotaExceeded. A second violation whose predecessor falls inside the
// escalation window moves the grant to the disabled set and denies with
// CodeFeatureSuspended. Counter mutations made before a denial are the
// violation record itself and must still be persisted by the caller.
func (l *Ledger) RecordUsage(k *LicenseKey, featureID uuid.UUID, now time.Time) error {
	if _, ok := k.DisabledFeatures.Get(featureID); ok {
		return Errf(CodeFeatureSuspended, "feature %s is disabled until restored", featureID)
	}
	g, ok := k.AllowedFeatures.Get(featureID)
	if !ok {
		return Err(CodeNotFound, "license key does not apply to this feature")
	}

	// Unlimited perpetual grants are unmetered: no counters are kept.
	if g.Limit == nil && k.IsPerpetual && k.Status == StatusActive {
		return nil
	}

	// Usage counts are per calendar day; the first touch on a new day
	// resets before any further accounting.
	if g.LastUsedAt != nil && dayOf(*g.LastUsedAt).Before(dayOf(now)) {
		g.UsageCount = 0
		g.Status = GrantActive
	}

	if g.Limit != nil && g.UsageCount >= *g.Limit+1 {
		// Record at most one violation per day.
		if g.LastViolationAt == nil || dayOf(*g.LastViolationAt).Before(dayOf(now)) {
			prev := g.LastViolationAt
			g.ConsecutiveViolations++
			g.Status = GrantDisabled
			t := now
			g.LastViolationAt = &t

			if g.ConsecutiveViolations >= 2 && prev != nil && now.Sub(*prev) <= l.window {
				k.DisableGrant(featureID)
				return Errf(CodeFeatureSuspended, "feature %s disabled due to repeated violations", featureID)
			}
		}
		return Errf(CodeQuotaExceeded, "feature %s has exceeded its usage limit", featureID)
	}

	// Stale violations do not accumulate indefinitely: once the grant's
	// first use falls out of the window, the violation streak decays.
	if g.FirstUsedAt != nil && now.Sub(*g.FirstUsedAt) > l.window {
		g.ConsecutiveViolations = 0
		g.LastViolationAt = nil
		t := now
		g.FirstUsedAt = &t
		g.Status = GrantActive
	}

	g.UsageCount++
	t := now
	g.LastUsedAt = &t
	if g.FirstUsedAt == nil {
		g.FirstUsedAt = &t
	}
	return nil
}

// Restore moves a disabled feature back into the allowed set with fresh
// counters and its original limit.
func (l *Ledger) Restore(k *LicenseKey, featureID uuid.UUID) error {
	return k.RestoreGrant(featureID)
}
