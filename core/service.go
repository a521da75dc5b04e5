package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tuan304201/generate-license-key/clock"
	"github.com/tuan304201/generate-license-key/keygen"
)

// Service is the entitlement evaluator: the façade combining the license
// registry and the feature entitlement ledger. It is the only component the
// request gateway calls. Every operation is a synchronous read-modify-write
// of a single LicenseKey aggregate; lost compare-and-swap races are retried
// by rereading, never by partial writes.
type Service struct {
	cfg      Config
	licenses LicenseStore
	dir      Directory
	cat      Catalog
	keys     *keygen.Generator
	clk      clock.Clock
	ledger   *Ledger
	cache    StatusCache
	events   LicenseEventLogger
	log      logrus.FieldLogger
}

func NewService(cfg Config, licenses LicenseStore, dir Directory, cat Catalog, keys *keygen.Generator, clk clock.Clock) *Service {
	cfg = cfg.withDefaults()
	if keys == nil {
		keys = keygen.New(keygen.DefaultConfig())
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		cfg:      cfg,
		licenses: licenses,
		dir:      dir,
		cat:      cat,
		keys:     keys,
		clk:      clk,
		ledger:   NewLedger(cfg.EscalationWindow),
		log:      logrus.StandardLogger(),
	}
}

// WithLogger replaces the ambient logger.
func (s *Service) WithLogger(log logrus.FieldLogger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

// WithStatusCache attaches an optional read-side cache for license checks.
func (s *Service) WithStatusCache(c StatusCache) *Service {
	s.cache = c
	return s
}

// IssueResult carries the raw secret exactly once, at issue time.
type IssueResult struct {
	LicenseKeySummary
	RawSecret string `json:"license_key"`
}

// ActivationResult is the outcome of ActivateLicense.
type ActivationResult struct {
	ActivatedAt *time.Time    `json:"active_date"`
	ExpiresAt   *time.Time    `json:"expiration_date"`
	Status      LicenseStatus `json:"status"`
}

// IssueLicense creates a new inactive license key for an owner/product pair.
// Annual licenses get catalog-derived unmetered grants for the whole tier;
// perpetual licenses use the caller-supplied grants verbatim.
func (s *Service) IssueLicense(ctx context.Context, cmd IssueCommand) (*IssueResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	acct, err := s.dir.AccountByUsername(ctx, cmd.OwnerUsername)
	if err != nil {
		return nil, err
	}
	product, err := s.cat.ProductByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	if _, ok := acct.PurchaseFor(product.ID); ok {
		return nil, Err(CodeConflict, "user already has a license key for this product")
	}

	grants, err := s.buildGrants(ctx, product.ID, cmd.Tier, cmd.Mode, cmd.Grants)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = &GrantList{}
	}

	// The purchase record carries a uniqueness constraint on the secret, so
	// a generation collision surfaces as ErrSecretCollision and we try again
	// with a fresh secret. The check and the insert are one statement; any
	// other conflict (a concurrent issue winning the owner/product slot) is
	// terminal.
	var raw string
	for attempt := 0; ; attempt++ {
		raw, err = s.keys.Generate()
		if err != nil {
			return nil, err
		}
		err = s.dir.RecordPurchase(ctx, acct.ID, product.ID, raw)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrSecretCollision) {
			return nil, err
		}
		if attempt+1 >= s.cfg.IssueAttempts {
			return nil, Err(CodeConflict, "could not generate a unique license secret")
		}
	}

	hash, err := s.keys.Hash(raw)
	if err != nil {
		s.removePurchase(ctx, acct.ID, product.ID)
		return nil, err
	}

	now := s.clk.Now()
	key := &LicenseKey{
		ID:               uuid.New(),
		VerificationHash: hash,
		PackageTier:      cmd.Tier,
		LicenseMode:      cmd.Mode,
		IsPerpetual:      cmd.Mode == ModePerpetual,
		Status:           StatusInactive,
		IssuedDuration:   cmd.Duration,
		CreatedAt:        now,
		OwnerID:          acct.ID,
		ProductID:        product.ID,
		AllowedFeatures:  *grants,
	}
	if err := s.licenses.Create(ctx, key); err != nil {
		s.removePurchase(ctx, acct.ID, product.ID)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"license_id": key.ID,
		"user_id":    acct.ID,
		"product_id": product.ID,
		"package":    cmd.Tier,
		"mode":       cmd.Mode,
	}).Info("license key issued")
	s.emit(ctx, "license.issued", key.ID, acct.ID, product.ID)

	return &IssueResult{LicenseKeySummary: key.Summary(), RawSecret: raw}, nil
}

// buildGrants resolves the grant set for a tier and mode. Annual mode
// derives unmetered grants from the catalog and ignores caller input;
// perpetual mode validates the caller's grants against the tier. A nil
// return means "leave existing grants in place" (perpetual, none supplied).
func (s *Service) buildGrants(ctx context.Context, productID uuid.UUID, tier PackageTier, mode LicenseMode, requested []GrantRequest) (*GrantList, error) {
	if mode == ModeAnnual {
		feats, err := s.cat.TierFeatures(ctx, productID, tier)
		if err != nil {
			return nil, err
		}
		l := NewGrantList()
		for _, f := range feats {
			l.Put(FeatureGrant{FeatureID: f.ID, Status: GrantActive})
		}
		return &l, nil
	}
	if len(requested) == 0 {
		return nil, nil
	}
	l := NewGrantList()
	for _, g := range requested {
		f, err := s.cat.FeatureByID(ctx, g.FeatureID)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				return nil, Errf(CodeValidation, "feature %s does not exist in the catalog", g.FeatureID)
			}
			return nil, err
		}
		if f.ProductID != productID {
			return nil, Errf(CodeValidation, "feature %s does not belong to this product", g.FeatureID)
		}
		if !tier.Includes(f.Tier) {
			return nil, Errf(CodeValidation, "feature %s is not part of the %s package", g.FeatureID, tier)
		}
		l.Put(FeatureGrant{FeatureID: g.FeatureID, Limit: g.Limit, Status: GrantActive})
	}
	return &l, nil
}

// ActivateLicense verifies the provided secret against the stored hash and
// transitions the key to active.
func (s *Service) ActivateLicense(ctx context.Context, cmd ActivateCommand) (*ActivationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	acct, err := s.dir.AccountByUsername(ctx, cmd.Username)
	if err != nil {
		return nil, err
	}
	product, err := s.cat.ProductByName(ctx, cmd.ProductName)
	if err != nil {
		return nil, err
	}

	var result *ActivationResult
	var keyID uuid.UUID
	err = s.withKey(ctx, func() (*LicenseKey, error) {
		return s.licenses.ByOwnerProduct(ctx, acct.ID, product.ID)
	}, func(key *LicenseKey) (bool, error) {
		ok, err := keygen.Verify(key.VerificationHash, cmd.Secret)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, Err(CodeInvalidCredential, "invalid license key")
		}
		now := s.clk.Now()
		RefreshStatus(key, now)
		if err := key.Activate(now); err != nil {
			return false, err
		}
		result = &ActivationResult{ActivatedAt: key.ActivatedAt, ExpiresAt: key.ExpiresAt, Status: key.Status}
		keyID = key.ID
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, acct.ID, product.ID)
	s.log.WithFields(logrus.Fields{"user_id": acct.ID, "product_id": product.ID}).Info("license key activated")
	s.emit(ctx, "license.activated", keyID, acct.ID, product.ID)
	return result, nil
}

// UpgradeLicense changes the tier and/or mode of an existing key and
// regenerates its grant set.
func (s *Service) UpgradeLicense(ctx context.Context, cmd UpgradeCommand) (*LicenseKeySummary, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var summary *LicenseKeySummary
	var ownerID, productID uuid.UUID
	err := s.withKey(ctx, func() (*LicenseKey, error) {
		return s.licenses.ByID(ctx, cmd.LicenseID)
	}, func(key *LicenseKey) (bool, error) {
		now := s.clk.Now()
		RefreshStatus(key, now)
		grants, err := s.buildGrants(ctx, key.ProductID, cmd.NewTier, cmd.NewMode, cmd.Grants)
		if err != nil {
			return false, err
		}
		applyUpgrade(key, cmd.NewTier, cmd.NewMode, cmd.AddedDuration, grants, now)
		ownerID, productID = key.OwnerID, key.ProductID
		sum := key.Summary()
		summary = &sum
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ownerID, productID)
	s.log.WithFields(logrus.Fields{
		"license_id": cmd.LicenseID,
		"package":    cmd.NewTier,
		"mode":       cmd.NewMode,
	}).Info("license key upgraded")
	s.emit(ctx, "license.upgraded", cmd.LicenseID, ownerID, productID)
	return summary, nil
}

// CheckLicense reports the current status of an owner's license for a
// product, verifying the recorded secret on the way and normalizing expiry
// lazily.
func (s *Service) CheckLicense(ctx context.Context, cmd CheckCommand) (*CheckResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	acct, err := s.dir.AccountByUsername(ctx, cmd.Username)
	if err != nil {
		return nil, err
	}
	product, err := s.cat.ProductByName(ctx, cmd.ProductName)
	if err != nil {
		return nil, err
	}
	purchase, ok := acct.PurchaseFor(product.ID)
	if !ok {
		return nil, Err(CodeNotFound, "license key does not apply to this product")
	}

	if s.cache != nil {
		if res, hit, err := s.cache.Get(ctx, acct.ID, product.ID); err == nil && hit {
			return &res, nil
		}
	}

	key, err := s.licenses.ByOwnerProduct(ctx, acct.ID, product.ID)
	if err != nil {
		return nil, err
	}
	match, err := keygen.Verify(key.VerificationHash, purchase.Secret)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, Err(CodeInvalidCredential, "invalid license key")
	}

	if RefreshStatus(key, s.clk.Now()) {
		// Best effort: a concurrent writer already observing the transition
		// makes the stale error harmless.
		if err := s.licenses.Update(ctx, key); err != nil && !errors.Is(err, ErrStaleAggregate) {
			return nil, err
		}
	}

	res := CheckResult{ProductName: product.Name, Status: key.Status, ExpiresAt: key.ExpiresAt}
	if s.cache != nil {
		_ = s.cache.Put(ctx, acct.ID, product.ID, res)
	}
	return &res, nil
}

// RecordFeatureUsage accounts one use of a feature under the caller's
// license, applying the ledger's quota and violation rules. Denials that
// record a violation are persisted before being returned.
func (s *Service) RecordFeatureUsage(ctx context.Context, cmd UsageCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	acct, err := s.dir.AccountByUsername(ctx, cmd.Username)
	if err != nil {
		return err
	}
	feature, err := s.cat.FeatureByID(ctx, cmd.FeatureID)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < s.cfg.UpdateAttempts; attempt++ {
		key, err := s.licenses.ByOwnerProduct(ctx, acct.ID, feature.ProductID)
		if err != nil {
			if CodeOf(err) == CodeNotFound {
				return Err(CodeNotFound, "the user or license key has not been activated")
			}
			return err
		}
		statusChanged := RefreshStatus(key, s.clk.Now())
		if key.Status != StatusActive {
			if statusChanged {
				if err := s.licenses.Update(ctx, key); err != nil && errors.Is(err, ErrStaleAggregate) {
					continue
				}
			}
			return Err(CodeNotFound, "the user or license key has not been activated")
		}

		usageErr := s.ledger.RecordUsage(key, cmd.FeatureID, s.clk.Now())
		switch CodeOf(usageErr) {
		case "", CodeQuotaExceeded, CodeFeatureSuspended:
			// Counter mutations and violation records persist even when the
			// call is denied; everything else leaves the aggregate untouched.
		default:
			return usageErr
		}
		if usageErr != nil && CodeOf(usageErr) == CodeFeatureSuspended && !keyHoldsGrant(key, cmd.FeatureID) {
			s.log.WithFields(logrus.Fields{
				"user_id":    acct.ID,
				"feature_id": cmd.FeatureID,
			}).Warn("feature grant suspended after repeated violations")
			s.emit(ctx, "feature.suspended", key.ID, key.OwnerID, key.ProductID)
		}
		if err := s.licenses.Update(ctx, key); err != nil {
			if errors.Is(err, ErrStaleAggregate) {
				continue
			}
			return err
		}
		s.invalidate(ctx, key.OwnerID, key.ProductID)
		return usageErr
	}
	return Err(CodeConflict, "license key is being modified concurrently")
}

// removePurchase backs a purchase record out after a failed issuance so the
// owner/product slot frees up again. Best effort: a leftover record only
// blocks reissue, it grants nothing.
func (s *Service) removePurchase(ctx context.Context, ownerID, productID uuid.UUID) {
	if err := s.dir.RemovePurchase(ctx, ownerID, productID); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":    ownerID,
			"product_id": productID,
		}).Warn("failed to remove purchase record after issuance failure")
	}
}

func keyHoldsGrant(k *LicenseKey, featureID uuid.UUID) bool {
	_, ok := k.AllowedFeatures.Get(featureID)
	return ok
}

// RestoreFeature moves a suspended grant back to the allowed set with its
// original limit and fresh counters.
func (s *Service) RestoreFeature(ctx context.Context, cmd RestoreCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	acct, err := s.dir.AccountByUsername(ctx, cmd.Username)
	if err != nil {
		return err
	}
	feature, err := s.cat.FeatureByID(ctx, cmd.FeatureID)
	if err != nil {
		return err
	}

	var ownerID, productID uuid.UUID
	err = s.withKey(ctx, func() (*LicenseKey, error) {
		return s.licenses.ByOwnerProduct(ctx, acct.ID, feature.ProductID)
	}, func(key *LicenseKey) (bool, error) {
		if err := s.ledger.Restore(key, cmd.FeatureID); err != nil {
			return false, err
		}
		ownerID, productID = key.OwnerID, key.ProductID
		return true, nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, ownerID, productID)
	s.log.WithFields(logrus.Fields{
		"user_id":    acct.ID,
		"feature_id": cmd.FeatureID,
	}).Info("feature grant restored")
	return nil
}

// ListLicenses returns summaries of every license key. Status normalization
// happens lazily here too, and observed transitions are persisted best
// effort. Secrets and hashes are never included.
func (s *Service) ListLicenses(ctx context.Context) ([]LicenseKeySummary, error) {
	keys, err := s.licenses.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	out := make([]LicenseKeySummary, 0, len(keys))
	for _, key := range keys {
		if RefreshStatus(key, now) {
			if err := s.licenses.Update(ctx, key); err != nil && !errors.Is(err, ErrStaleAggregate) {
				return nil, err
			}
			s.invalidate(ctx, key.OwnerID, key.ProductID)
		}
		out = append(out, key.Summary())
	}
	return out, nil
}

// withKey runs a read-modify-write cycle against one aggregate, rereading
// and retrying when the version check fails. mutate returns whether the
// aggregate needs writing.
func (s *Service) withKey(ctx context.Context, read func() (*LicenseKey, error), mutate func(*LicenseKey) (bool, error)) error {
	for attempt := 0; attempt < s.cfg.UpdateAttempts; attempt++ {
		key, err := read()
		if err != nil {
			return err
		}
		dirty, err := mutate(key)
		if err != nil {
			return err
		}
		if !dirty {
			return nil
		}
		if err := s.licenses.Update(ctx, key); err != nil {
			if errors.Is(err, ErrStaleAggregate) {
				continue
			}
			return err
		}
		return nil
	}
	return Err(CodeConflict, "license key is being modified concurrently")
}

func (s *Service) invalidate(ctx context.Context, ownerID, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID, productID); err != nil {
		s.log.WithError(err).Warn("failed to invalidate license status cache")
	}
}
