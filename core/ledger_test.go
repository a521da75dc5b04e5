package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func meteredKey(featureID uuid.UUID, limit int) *LicenseKey {
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	act := now
	return &LicenseKey{
		ID:              uuid.New(),
		PackageTier:     TierStandard,
		LicenseMode:     ModePerpetual,
		IsPerpetual:     true,
		Status:          StatusActive,
		ActivatedAt:     &act,
		CreatedAt:       now,
		AllowedFeatures: NewGrantList(FeatureGrant{FeatureID: featureID, Limit: &limit, Status: GrantActive}),
	}
}

func TestRecordUsageUnmeteredPerpetual(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 0)
	g, _ := k.AllowedFeatures.Get(featureID)
	g.Limit = nil

	l := NewLedger(0)
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		if err := l.RecordUsage(k, featureID, now); err != nil {
			t.Fatalf("use %d: unexpected error %v", i, err)
		}
	}
	g, _ = k.AllowedFeatures.Get(featureID)
	if g.UsageCount != 0 || g.LastUsedAt != nil || g.FirstUsedAt != nil {
		t.Errorf("unmetered grant mutated: count=%d first=%v last=%v", g.UsageCount, g.FirstUsedAt, g.LastUsedAt)
	}
}

func TestRecordUsageLimitAndFirstViolation(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 5)
	l := NewLedger(0)
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	// Limit 5 permits six uses per day.
	for i := 0; i < 6; i++ {
		if err := l.RecordUsage(k, featureID, now); err != nil {
			t.Fatalf("use %d: unexpected error %v", i, err)
		}
	}
	err := l.RecordUsage(k, featureID, now)
	if CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("seventh use: want quota_exceeded, got %v", err)
	}

	g, _ := k.AllowedFeatures.Get(featureID)
	if g.ConsecutiveViolations != 1 {
		t.Errorf("violations = %d, want 1", g.ConsecutiveViolations)
	}
	if g.Status != GrantDisabled {
		t.Errorf("grant status = %q, want disabled", g.Status)
	}
	if g.LastViolationAt == nil || !g.LastViolationAt.Equal(now) {
		t.Errorf("last violation = %v, want %v", g.LastViolationAt, now)
	}

	// Same-day retries do not stack violations.
	err = l.RecordUsage(k, featureID, now.Add(time.Hour))
	if CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("same-day retry: want quota_exceeded, got %v", err)
	}
	g, _ = k.AllowedFeatures.Get(featureID)
	if g.ConsecutiveViolations != 1 {
		t.Errorf("same-day retry stacked violations: %d", g.ConsecutiveViolations)
	}
}

func TestRecordUsageDailyReset(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 2)
	l := NewLedger(0)
	day1 := time.Date(2024, time.March, 1, 23, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := l.RecordUsage(k, featureID, day1); err != nil {
			t.Fatalf("day1 use %d: %v", i, err)
		}
	}

	// An hour later but across midnight: the counter starts over.
	day2 := day1.Add(2 * time.Hour)
	if err := l.RecordUsage(k, featureID, day2); err != nil {
		t.Fatalf("first use after midnight: %v", err)
	}
	g, _ := k.AllowedFeatures.Get(featureID)
	if g.UsageCount != 1 {
		t.Errorf("usage count after reset = %d, want 1", g.UsageCount)
	}
}

func TestSecondViolationWithinWindowSuspends(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 1)
	l := NewLedger(30 * 24 * time.Hour)
	day1 := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(k, featureID, day1); err != nil {
			t.Fatalf("day1 use %d: %v", i, err)
		}
	}
	if err := l.RecordUsage(k, featureID, day1); CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("day1 violation: want quota_exceeded, got %v", err)
	}

	day2 := day1.AddDate(0, 0, 1)
	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(k, featureID, day2); err != nil {
			t.Fatalf("day2 use %d: %v", i, err)
		}
	}
	err := l.RecordUsage(k, featureID, day2)
	if CodeOf(err) != CodeFeatureSuspended {
		t.Fatalf("day2 violation: want feature_suspended, got %v", err)
	}

	if _, ok := k.AllowedFeatures.Get(featureID); ok {
		t.Error("suspended feature still in allowed set")
	}
	d, ok := k.DisabledFeatures.Get(featureID)
	if !ok {
		t.Fatal("suspended feature missing from disabled set")
	}
	if d.Limit == nil || *d.Limit != 1 {
		t.Errorf("disabled record lost the original limit: %v", d.Limit)
	}

	// Any further use is refused outright.
	if err := l.RecordUsage(k, featureID, day2); CodeOf(err) != CodeFeatureSuspended {
		t.Errorf("use of suspended feature: want feature_suspended, got %v", err)
	}
}

func TestViolationStreakDecaysOutsideWindow(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 1)
	l := NewLedger(48 * time.Hour)
	day1 := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(k, featureID, day1); err != nil {
			t.Fatalf("day1 use %d: %v", i, err)
		}
	}
	if err := l.RecordUsage(k, featureID, day1); CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("day1 violation: want quota_exceeded, got %v", err)
	}

	// Four days later the first use is outside the window, so the streak
	// decays and the next violation counts as a first offense again.
	day5 := day1.AddDate(0, 0, 4)
	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(k, featureID, day5); err != nil {
			t.Fatalf("day5 use %d: %v", i, err)
		}
	}
	err := l.RecordUsage(k, featureID, day5)
	if CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("day5 violation: want quota_exceeded, got %v", err)
	}
	if _, ok := k.AllowedFeatures.Get(featureID); !ok {
		t.Error("grant suspended despite decayed streak")
	}
	g, _ := k.AllowedFeatures.Get(featureID)
	if g.ConsecutiveViolations != 1 {
		t.Errorf("violations after decay = %d, want 1", g.ConsecutiveViolations)
	}
}

func TestDayBoundariesUseUTC(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 1)
	l := NewLedger(0)

	// Stored timestamps come back in UTC; the live clock may sit in another
	// zone. Both calls below fall on the same UTC day even though the local
	// date of the second one has already rolled over.
	utcEvening := time.Date(2024, time.March, 1, 21, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(k, featureID, utcEvening); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}

	eastOfGreenwich := time.FixedZone("UTC+2", 2*60*60)
	localPastMidnight := time.Date(2024, time.March, 2, 0, 30, 0, 0, eastOfGreenwich) // 22:30 UTC March 1
	if err := l.RecordUsage(k, featureID, localPastMidnight); CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("same UTC day: want quota_exceeded, got %v", err)
	}

	// Once the UTC day rolls over the counter resets, regardless of zone.
	localNextDay := time.Date(2024, time.March, 2, 2, 30, 0, 0, eastOfGreenwich) // 00:30 UTC March 2
	if err := l.RecordUsage(k, featureID, localNextDay); err != nil {
		t.Fatalf("next UTC day: %v", err)
	}
	g, _ := k.AllowedFeatures.Get(featureID)
	if g.UsageCount != 1 {
		t.Errorf("usage count after UTC rollover = %d, want 1", g.UsageCount)
	}
}

func TestRecordUsageUnknownFeature(t *testing.T) {
	k := meteredKey(uuid.New(), 5)
	l := NewLedger(0)
	err := l.RecordUsage(k, uuid.New(), time.Now())
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("want not_found, got %v", err)
	}
}

func TestRestoreReinstatesGrant(t *testing.T) {
	featureID := uuid.New()
	k := meteredKey(featureID, 1)
	l := NewLedger(30 * 24 * time.Hour)
	day1 := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	for _, day := range []time.Time{day1, day2} {
		for i := 0; i < 2; i++ {
			if err := l.RecordUsage(k, featureID, day); err != nil {
				t.Fatalf("use on %v: %v", day, err)
			}
		}
		l.RecordUsage(k, featureID, day)
	}
	if _, ok := k.DisabledFeatures.Get(featureID); !ok {
		t.Fatal("setup: feature not suspended")
	}

	if err := l.Restore(k, featureID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	g, ok := k.AllowedFeatures.Get(featureID)
	if !ok {
		t.Fatal("restored feature missing from allowed set")
	}
	if g.UsageCount != 0 || g.ConsecutiveViolations != 0 || g.LastViolationAt != nil {
		t.Errorf("restored grant kept stale counters: %+v", g)
	}
	if g.Limit == nil || *g.Limit != 1 {
		t.Errorf("restored grant lost the original limit: %v", g.Limit)
	}

	// The full cycle works again after restore: limit+1 uses succeed, and
	// the next attempt is a first offense again, not a re-suspension.
	day3 := day2.AddDate(0, 0, 1)
	for i := 0; i < 2; i++ {
		if err := l.RecordUsage(k, featureID, day3); err != nil {
			t.Fatalf("post-restore use %d: %v", i, err)
		}
	}
	if err := l.RecordUsage(k, featureID, day3); CodeOf(err) != CodeQuotaExceeded {
		t.Fatalf("post-restore violation: want quota_exceeded, got %v", err)
	}
	g, ok = k.AllowedFeatures.Get(featureID)
	if !ok {
		t.Fatal("first post-restore violation suspended the grant")
	}
	if g.ConsecutiveViolations != 1 {
		t.Errorf("post-restore violations = %d, want 1", g.ConsecutiveViolations)
	}
	if k.DisabledFeatures.Len() != 0 {
		t.Error("post-restore violation landed in the disabled set")
	}

	// Restoring a feature that is not disabled fails.
	if err := l.Restore(k, featureID); CodeOf(err) != CodeNotFound {
		t.Errorf("restore of active grant: want not_found, got %v", err)
	}
}
