package core_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tuan304201/generate-license-key/clock"
	core "github.com/tuan304201/generate-license-key/core"
	"github.com/tuan304201/generate-license-key/keygen"
	memorystore "github.com/tuan304201/generate-license-key/storage/memory"
	kittest "github.com/tuan304201/generate-license-key/testing"
)

var keyFormat = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func intp(v int) *int { return &v }

func TestIssueAndActivatePerpetual(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	ctx := context.Background()
	env.SeedUser("alice")
	product := env.SeedProduct("metricsd")
	feature := env.SeedFeature(product.ID, "export", core.TierBasic)

	res := env.Issue(core.IssueCommand{
		OwnerUsername: "alice",
		ProductID:     product.ID,
		Tier:          core.TierPremium,
		Mode:          core.ModePerpetual,
		Grants:        []core.GrantRequest{{FeatureID: feature.ID, Limit: intp(5)}},
	})
	if !keyFormat.MatchString(res.RawSecret) {
		t.Fatalf("raw secret %q does not match the key format", res.RawSecret)
	}
	if res.Status != core.StatusInactive {
		t.Errorf("issued status = %q, want inactive", res.Status)
	}
	if len(res.AllowedFeatures) != 1 {
		t.Fatalf("allowed features = %d, want 1", len(res.AllowedFeatures))
	}

	// A second key for the same owner/product is refused.
	_, err := env.Service.IssueLicense(ctx, core.IssueCommand{
		OwnerUsername: "alice",
		ProductID:     product.ID,
		Tier:          core.TierBasic,
		Mode:          core.ModePerpetual,
	})
	if core.CodeOf(err) != core.CodeConflict {
		t.Fatalf("duplicate issue: want conflict, got %v", err)
	}

	// Wrong secret is rejected before any state change.
	_, err = env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "alice", ProductName: "metricsd", Secret: "AAAA-BBBB-CCCC-DDDD",
	})
	if core.CodeOf(err) != core.CodeInvalidCredential {
		t.Fatalf("wrong secret: want invalid_credential, got %v", err)
	}

	act, err := env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "alice", ProductName: "metricsd", Secret: res.RawSecret,
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if act.Status != core.StatusActive {
		t.Errorf("status = %q, want active", act.Status)
	}
	if act.ExpiresAt != nil {
		t.Errorf("perpetual key got expiration %v", act.ExpiresAt)
	}

	// Activating twice is a conflict.
	_, err = env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "alice", ProductName: "metricsd", Secret: res.RawSecret,
	})
	if core.CodeOf(err) != core.CodeAlreadyActive {
		t.Fatalf("double activation: want already_active, got %v", err)
	}
}

func TestIssueRejectsGrantsOutsideTier(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	env.SeedUser("alice")
	product := env.SeedProduct("metricsd")
	premium := env.SeedFeature(product.ID, "forecasting", core.TierPremium)

	_, err := env.Service.IssueLicense(context.Background(), core.IssueCommand{
		OwnerUsername: "alice",
		ProductID:     product.ID,
		Tier:          core.TierBasic,
		Mode:          core.ModePerpetual,
		Grants:        []core.GrantRequest{{FeatureID: premium.ID}},
	})
	if core.CodeOf(err) != core.CodeValidation {
		t.Fatalf("premium grant on basic tier: want validation, got %v", err)
	}
}

func TestAnnualLifecycle(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	ctx := context.Background()
	env.SeedUser("bob")
	product := env.SeedProduct("reportgen")
	env.SeedFeature(product.ID, "pdf-export", core.TierBasic)
	env.SeedFeature(product.ID, "scheduling", core.TierStandard)
	env.SeedFeature(product.ID, "forecasting", core.TierPremium)

	res := env.Issue(core.IssueCommand{
		OwnerUsername: "bob",
		ProductID:     product.ID,
		Tier:          core.TierStandard,
		Mode:          core.ModeAnnual,
		Duration:      1,
	})

	// Annual grants come from the catalog: the tier's features plus lower
	// tiers, all unmetered.
	if len(res.AllowedFeatures) != 2 {
		t.Fatalf("annual grants = %d, want 2 (basic + standard)", len(res.AllowedFeatures))
	}
	for _, g := range res.AllowedFeatures {
		if g.Limit != nil {
			t.Errorf("annual grant %s has a limit", g.FeatureID)
		}
	}

	act, err := env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "bob", ProductName: "reportgen", Secret: res.RawSecret,
	})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	wantExp := env.Clock.Now().AddDate(1, 0, 0)
	if act.ExpiresAt == nil || !act.ExpiresAt.Equal(wantExp) {
		t.Fatalf("expiration = %v, want %v", act.ExpiresAt, wantExp)
	}

	chk, err := env.Service.CheckLicense(ctx, core.CheckCommand{Username: "bob", ProductName: "reportgen"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if chk.Status != core.StatusActive {
		t.Errorf("check status = %q, want active", chk.Status)
	}

	// Past the expiration the key reads as expired, with no scheduler in
	// between.
	env.Clock.Advance(366 * 24 * time.Hour)
	chk, err = env.Service.CheckLicense(ctx, core.CheckCommand{Username: "bob", ProductName: "reportgen"})
	if err != nil {
		t.Fatalf("check after expiry: %v", err)
	}
	if chk.Status != core.StatusExpired {
		t.Errorf("check status = %q, want expired", chk.Status)
	}

	// The observed transition was persisted.
	list, err := env.Service.ListLicenses(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != core.StatusExpired {
		t.Errorf("listed status = %+v, want one expired key", list)
	}
}

func TestCheckLicenseUnknownPurchase(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	env.SeedUser("carol")
	env.SeedProduct("metricsd")

	_, err := env.Service.CheckLicense(context.Background(), core.CheckCommand{
		Username: "carol", ProductName: "metricsd",
	})
	if core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("want not_found, got %v", err)
	}
}

func TestUpgradeActiveAnnualToPerpetual(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	ctx := context.Background()
	env.SeedUser("dave")
	product := env.SeedProduct("metricsd")
	feature := env.SeedFeature(product.ID, "export", core.TierBasic)

	res := env.Issue(core.IssueCommand{
		OwnerUsername: "dave",
		ProductID:     product.ID,
		Tier:          core.TierBasic,
		Mode:          core.ModeAnnual,
		Duration:      1,
	})
	if _, err := env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "dave", ProductName: "metricsd", Secret: res.RawSecret,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	sum, err := env.Service.UpgradeLicense(ctx, core.UpgradeCommand{
		LicenseID: res.ID,
		NewTier:   core.TierPremium,
		NewMode:   core.ModePerpetual,
		Grants:    []core.GrantRequest{{FeatureID: feature.ID, Limit: intp(10)}},
	})
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if sum.ExpiresAt != nil {
		t.Errorf("perpetual key kept expiration %v", sum.ExpiresAt)
	}
	if sum.Status != core.StatusActive {
		t.Errorf("status = %q, want active", sum.Status)
	}
	if sum.PackageTier != core.TierPremium || sum.LicenseMode != core.ModePerpetual {
		t.Errorf("tier/mode not applied: %+v", sum)
	}
	if len(sum.AllowedFeatures) != 1 || sum.AllowedFeatures[0].Limit == nil || *sum.AllowedFeatures[0].Limit != 10 {
		t.Errorf("replacement grants not applied: %+v", sum.AllowedFeatures)
	}
}

func TestFeatureUsageLifecycle(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	ctx := context.Background()
	env.SeedUser("erin")
	product := env.SeedProduct("metricsd")
	feature := env.SeedFeature(product.ID, "export", core.TierBasic)

	res := env.Issue(core.IssueCommand{
		OwnerUsername: "erin",
		ProductID:     product.ID,
		Tier:          core.TierBasic,
		Mode:          core.ModePerpetual,
		Grants:        []core.GrantRequest{{FeatureID: feature.ID, Limit: intp(5)}},
	})

	use := func() error {
		return env.Service.RecordFeatureUsage(ctx, core.UsageCommand{Username: "erin", FeatureID: feature.ID})
	}

	// Before activation every usage call reads as not activated.
	if err := use(); core.CodeOf(err) != core.CodeNotFound {
		t.Fatalf("usage before activation: want not_found, got %v", err)
	}

	if _, err := env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "erin", ProductName: "metricsd", Secret: res.RawSecret,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// Limit 5 permits six uses; the seventh records the first violation.
	for i := 0; i < 6; i++ {
		if err := use(); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}
	if err := use(); core.CodeOf(err) != core.CodeQuotaExceeded {
		t.Fatalf("seventh use: want quota_exceeded, got %v", err)
	}

	// The next day the counter resets; exhausting it again escalates.
	env.Clock.Advance(24 * time.Hour)
	for i := 0; i < 6; i++ {
		if err := use(); err != nil {
			t.Fatalf("day2 use %d: %v", i, err)
		}
	}
	if err := use(); core.CodeOf(err) != core.CodeFeatureSuspended {
		t.Fatalf("day2 violation: want feature_suspended, got %v", err)
	}

	// Suspension survives persistence: further calls refuse immediately.
	if err := use(); core.CodeOf(err) != core.CodeFeatureSuspended {
		t.Fatalf("suspended use: want feature_suspended, got %v", err)
	}

	if err := env.Service.RestoreFeature(ctx, core.RestoreCommand{Username: "erin", FeatureID: feature.ID}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	// After restore the full allowance is back, and exceeding it again is a
	// soft denial: the cleared violation history means no re-suspension.
	env.Clock.Advance(24 * time.Hour)
	for i := 0; i < 6; i++ {
		if err := use(); err != nil {
			t.Fatalf("post-restore use %d: %v", i, err)
		}
	}
	if err := use(); core.CodeOf(err) != core.CodeQuotaExceeded {
		t.Fatalf("post-restore violation: want quota_exceeded, got %v", err)
	}
	key, err := env.Licenses.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := key.AllowedFeatures.Get(feature.ID); !ok {
		t.Fatal("first post-restore violation suspended the grant")
	}
}

// flakyLicenseStore fails Create on demand so issuance failure paths can be
// driven from a test.
type flakyLicenseStore struct {
	core.LicenseStore
	failCreate bool
}

func (s *flakyLicenseStore) Create(ctx context.Context, key *core.LicenseKey) error {
	if s.failCreate {
		return errors.New("storage offline")
	}
	return s.LicenseStore.Create(ctx, key)
}

func TestIssueFailureLeavesNoOrphanPurchase(t *testing.T) {
	ctx := context.Background()
	dir := memorystore.NewDirectory()
	cat := memorystore.NewCatalog()
	store := &flakyLicenseStore{LicenseStore: memorystore.NewLicenseStore(), failCreate: true}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := core.NewService(core.Config{}, store, dir, cat,
		keygen.New(keygen.Config{BcryptCost: 4}), clock.NewFake(kittest.EpochStart)).WithLogger(log)

	if _, err := dir.CreateAccount(ctx, "grace"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	product, err := cat.CreateProduct(ctx, "metricsd", "")
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}

	cmd := core.IssueCommand{
		OwnerUsername: "grace",
		ProductID:     product.ID,
		Tier:          core.TierBasic,
		Mode:          core.ModePerpetual,
	}
	if _, err := svc.IssueLicense(ctx, cmd); err == nil {
		t.Fatal("issue succeeded despite failing license store")
	}

	// The failed issuance backed its purchase record out, so the owner can
	// be issued again once storage recovers.
	acct, err := dir.AccountByUsername(ctx, "grace")
	if err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if _, ok := acct.PurchaseFor(product.ID); ok {
		t.Fatal("orphan purchase record survived the failed issuance")
	}

	store.failCreate = false
	res, err := svc.IssueLicense(ctx, cmd)
	if err != nil {
		t.Fatalf("reissue after recovery: %v", err)
	}
	if res.RawSecret == "" {
		t.Fatal("reissue returned no secret")
	}
}

func TestUnmeteredUsageLeavesAggregateUntouched(t *testing.T) {
	env := kittest.NewEnv(core.Config{})
	ctx := context.Background()
	env.SeedUser("frank")
	product := env.SeedProduct("metricsd")
	feature := env.SeedFeature(product.ID, "export", core.TierBasic)

	res := env.Issue(core.IssueCommand{
		OwnerUsername: "frank",
		ProductID:     product.ID,
		Tier:          core.TierBasic,
		Mode:          core.ModePerpetual,
		Grants:        []core.GrantRequest{{FeatureID: feature.ID}}, // no limit
	})
	if _, err := env.Service.ActivateLicense(ctx, core.ActivateCommand{
		Username: "frank", ProductName: "metricsd", Secret: res.RawSecret,
	}); err != nil {
		t.Fatalf("activate: %v", err)
	}

	for i := 0; i < 50; i++ {
		if err := env.Service.RecordFeatureUsage(ctx, core.UsageCommand{Username: "frank", FeatureID: feature.ID}); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}

	key, err := env.Licenses.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	g, ok := key.AllowedFeatures.Get(feature.ID)
	if !ok {
		t.Fatal("grant missing after unmetered usage")
	}
	if g.UsageCount != 0 || g.LastUsedAt != nil {
		t.Errorf("unmetered grant accumulated counters: %+v", g)
	}
}
