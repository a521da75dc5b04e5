package core

import "time"

// This file is the license registry: the lifecycle state machine of a
// LicenseKey. All transitions mutate the aggregate in memory; persistence is
// the evaluator's job.

// RefreshStatus applies read-time normalization to a key and reports whether
// anything changed. A key that was never activated reads as inactive; an
// active annual key past its expiration reads as expired. Perpetual keys
// never expire by time. Callers apply this lazily on every read or write
// entry point; nothing is ever scheduled.
func RefreshStatus(k *LicenseKey, now time.Time) bool {
	if k.ActivatedAt == nil {
		if k.Status != StatusInactive {
			k.Status = StatusInactive
			return true
		}
		return false
	}
	if k.Status == StatusActive && k.LicenseMode == ModeAnnual &&
		k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
		k.Status = StatusExpired
		return true
	}
	return false
}

// Activate transitions an issued key to active. Annual keys get an
// expiration of now plus the accumulated issued duration in years;
// perpetual keys stay non-expiring.
func (k *LicenseKey) Activate(now time.Time) error {
	if k.Status == StatusActive {
		return Err(CodeAlreadyActive, "license key is already active")
	}
	t := now
	k.ActivatedAt = &t
	k.Status = StatusActive
	if k.LicenseMode == ModeAnnual {
		exp := now.AddDate(k.IssuedDuration, 0, 0)
		k.ExpiresAt = &exp
	} else {
		k.ExpiresAt = nil
	}
	return nil
}

// applyUpgrade rewrites tier, mode, duration, and grants on an existing key.
// The grants argument is the replacement set: catalog-derived for annual
// mode, caller-supplied for perpetual. A nil grants leaves the current set
// untouched (perpetual upgrade without an explicit grant list).
func applyUpgrade(k *LicenseKey, newTier PackageTier, newMode LicenseMode, addedDuration int, grants *GrantList, now time.Time) {
	switch {
	case k.Status == StatusExpired || k.Status == StatusInactive:
		// A dormant key starts over: duration is replaced, not extended.
		k.Status = StatusInactive
		k.IssuedDuration = addedDuration
		k.ActivatedAt = nil
		k.ExpiresAt = nil
	case newMode == ModeAnnual:
		k.IssuedDuration += addedDuration
		base := now
		if k.ExpiresAt != nil {
			base = *k.ExpiresAt
		}
		exp := base.AddDate(addedDuration, 0, 0)
		k.ExpiresAt = &exp
	default:
		// Active key moving to perpetual stops expiring.
		k.ExpiresAt = nil
	}

	k.PackageTier = newTier
	k.LicenseMode = newMode
	k.IsPerpetual = newMode == ModePerpetual

	if grants != nil {
		k.AllowedFeatures = *grants
		k.DisabledFeatures = DisabledList{}
	}
}
