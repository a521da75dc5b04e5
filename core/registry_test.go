package core

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRefreshStatusNeverActivated(t *testing.T) {
	k := &LicenseKey{ID: uuid.New(), Status: StatusActive}
	if !RefreshStatus(k, time.Now()) {
		t.Fatal("expected a status change")
	}
	if k.Status != StatusInactive {
		t.Errorf("status = %q, want inactive", k.Status)
	}
	if RefreshStatus(k, time.Now()) {
		t.Error("second refresh reported a change")
	}
}

func TestRefreshStatusAnnualExpiry(t *testing.T) {
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	act := now
	exp := now.AddDate(1, 0, 0)
	k := &LicenseKey{
		ID:          uuid.New(),
		LicenseMode: ModeAnnual,
		Status:      StatusActive,
		ActivatedAt: &act,
		ExpiresAt:   &exp,
	}

	if RefreshStatus(k, exp.Add(-time.Minute)) {
		t.Error("refresh before expiry changed the key")
	}
	if !RefreshStatus(k, exp.Add(time.Minute)) {
		t.Fatal("refresh after expiry did not change the key")
	}
	if k.Status != StatusExpired {
		t.Errorf("status = %q, want expired", k.Status)
	}
}

func TestRefreshStatusPerpetualNeverExpires(t *testing.T) {
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	act := now
	k := &LicenseKey{
		ID:          uuid.New(),
		LicenseMode: ModePerpetual,
		IsPerpetual: true,
		Status:      StatusActive,
		ActivatedAt: &act,
	}
	if RefreshStatus(k, now.AddDate(50, 0, 0)) {
		t.Error("perpetual key expired by time")
	}
	if k.Status != StatusActive {
		t.Errorf("status = %q, want active", k.Status)
	}
}

func TestActivate(t *testing.T) {
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	annual := &LicenseKey{ID: uuid.New(), LicenseMode: ModeAnnual, Status: StatusInactive, IssuedDuration: 2}
	if err := annual.Activate(now); err != nil {
		t.Fatalf("activate annual: %v", err)
	}
	if annual.Status != StatusActive || annual.ActivatedAt == nil {
		t.Fatalf("annual key not active after Activate: %+v", annual)
	}
	wantExp := now.AddDate(2, 0, 0)
	if annual.ExpiresAt == nil || !annual.ExpiresAt.Equal(wantExp) {
		t.Errorf("expiration = %v, want %v", annual.ExpiresAt, wantExp)
	}

	if err := annual.Activate(now); CodeOf(err) != CodeAlreadyActive {
		t.Errorf("double activation: want already_active, got %v", err)
	}

	perp := &LicenseKey{ID: uuid.New(), LicenseMode: ModePerpetual, IsPerpetual: true, Status: StatusInactive}
	if err := perp.Activate(now); err != nil {
		t.Fatalf("activate perpetual: %v", err)
	}
	if perp.ExpiresAt != nil {
		t.Errorf("perpetual key got an expiration: %v", perp.ExpiresAt)
	}
}

func TestApplyUpgrade(t *testing.T) {
	now := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

	t.Run("expired key starts over", func(t *testing.T) {
		act := now.AddDate(-2, 0, 0)
		exp := now.AddDate(-1, 0, 0)
		k := &LicenseKey{
			ID: uuid.New(), LicenseMode: ModeAnnual, Status: StatusExpired,
			IssuedDuration: 1, ActivatedAt: &act, ExpiresAt: &exp,
		}
		applyUpgrade(k, TierPremium, ModeAnnual, 3, nil, now)
		if k.Status != StatusInactive {
			t.Errorf("status = %q, want inactive", k.Status)
		}
		if k.IssuedDuration != 3 {
			t.Errorf("duration = %d, want 3 (replaced, not extended)", k.IssuedDuration)
		}
		if k.ActivatedAt != nil || k.ExpiresAt != nil {
			t.Error("dormant upgrade kept stale activation timestamps")
		}
		if k.PackageTier != TierPremium {
			t.Errorf("tier = %q, want premium", k.PackageTier)
		}
	})

	t.Run("active annual extends expiry", func(t *testing.T) {
		act := now.AddDate(0, -6, 0)
		exp := now.AddDate(0, 6, 0)
		k := &LicenseKey{
			ID: uuid.New(), LicenseMode: ModeAnnual, Status: StatusActive,
			IssuedDuration: 1, ActivatedAt: &act, ExpiresAt: &exp,
		}
		applyUpgrade(k, TierStandard, ModeAnnual, 2, nil, now)
		if k.IssuedDuration != 3 {
			t.Errorf("duration = %d, want 3", k.IssuedDuration)
		}
		wantExp := exp.AddDate(2, 0, 0)
		if k.ExpiresAt == nil || !k.ExpiresAt.Equal(wantExp) {
			t.Errorf("expiration = %v, want %v", k.ExpiresAt, wantExp)
		}
	})

	t.Run("active annual to perpetual stops expiring", func(t *testing.T) {
		act := now.AddDate(0, -6, 0)
		exp := now.AddDate(0, 6, 0)
		k := &LicenseKey{
			ID: uuid.New(), LicenseMode: ModeAnnual, Status: StatusActive,
			IssuedDuration: 1, ActivatedAt: &act, ExpiresAt: &exp,
		}
		applyUpgrade(k, TierPremium, ModePerpetual, 0, nil, now)
		if k.ExpiresAt != nil {
			t.Errorf("perpetual key kept an expiration: %v", k.ExpiresAt)
		}
		if !k.IsPerpetual || k.LicenseMode != ModePerpetual {
			t.Errorf("mode not switched: %+v", k)
		}
		if k.Status != StatusActive {
			t.Errorf("status = %q, want active", k.Status)
		}
	})

	t.Run("replacement grants clear the disabled set", func(t *testing.T) {
		featureID := uuid.New()
		k := &LicenseKey{
			ID: uuid.New(), LicenseMode: ModePerpetual, Status: StatusInactive,
			DisabledFeatures: NewDisabledList(DisabledFeature{FeatureID: featureID}),
		}
		grants := NewGrantList(FeatureGrant{FeatureID: uuid.New(), Status: GrantActive})
		applyUpgrade(k, TierBasic, ModePerpetual, 0, &grants, now)
		if k.DisabledFeatures.Len() != 0 {
			t.Error("upgrade with new grants kept disabled records")
		}
		if k.AllowedFeatures.Len() != 1 {
			t.Errorf("allowed features = %d, want 1", k.AllowedFeatures.Len())
		}
	})
}

func TestTierIncludes(t *testing.T) {
	cases := []struct {
		holder, feature PackageTier
		want            bool
	}{
		{TierPremium, TierBasic, true},
		{TierPremium, TierPremium, true},
		{TierStandard, TierBasic, true},
		{TierStandard, TierPremium, false},
		{TierBasic, TierStandard, false},
		{TierBasic, TierBasic, true},
		{"unknown", TierBasic, false},
	}
	for _, c := range cases {
		if got := c.holder.Includes(c.feature); got != c.want {
			t.Errorf("%s includes %s = %v, want %v", c.holder, c.feature, got, c.want)
		}
	}
}
