package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PackageTier is the purchased package level of a license.
type PackageTier string

const (
	TierBasic    PackageTier = "basic"
	TierStandard PackageTier = "standard"
	TierPremium  PackageTier = "premium"
)

func (t PackageTier) Valid() bool {
	switch t {
	case TierBasic, TierStandard, TierPremium:
		return true
	}
	return false
}

func (t PackageTier) rank() int {
	switch t {
	case TierBasic:
		return 1
	case TierStandard:
		return 2
	case TierPremium:
		return 3
	}
	return 0
}

// Includes reports whether a feature belonging to tier o is available to
// holders of tier t. Tiers are cumulative: premium includes standard and basic.
func (t PackageTier) Includes(o PackageTier) bool {
	return t.Valid() && o.Valid() && o.rank() <= t.rank()
}

// LicenseMode distinguishes perpetual licenses (never expire, metered
// features) from annual ones (wall-clock expiry, unmetered features).
type LicenseMode string

const (
	ModePerpetual LicenseMode = "perpetual"
	ModeAnnual    LicenseMode = "annual"
)

func (m LicenseMode) Valid() bool {
	return m == ModePerpetual || m == ModeAnnual
}

// LicenseStatus is the lifecycle state of a license key.
type LicenseStatus string

const (
	StatusInactive  LicenseStatus = "inactive"
	StatusActive    LicenseStatus = "active"
	StatusExpired   LicenseStatus = "expired"
	StatusSuspended LicenseStatus = "suspended"
)

// GrantStatus is the state of a single feature grant.
type GrantStatus string

const (
	GrantActive   GrantStatus = "active"
	GrantDisabled GrantStatus = "disabled"
)

// FeatureGrant is an entitlement record for one feature on a license key.
// A nil Limit means unmetered usage.
type FeatureGrant struct {
	FeatureID             uuid.UUID   `json:"feature_id"`
	Limit                 *int        `json:"limit"`
	UsageCount            int         `json:"usage_count"`
	FirstUsedAt           *time.Time  `json:"first_used_at,omitempty"`
	LastUsedAt            *time.Time  `json:"last_used_at,omitempty"`
	LastViolationAt       *time.Time  `json:"last_violation_at,omitempty"`
	ConsecutiveViolations int         `json:"consecutive_violations"`
	Status                GrantStatus `json:"status"`
}

// DisabledFeature preserves the original quota of a suspended grant so a
// restore reinstates the same ceiling.
type DisabledFeature struct {
	FeatureID uuid.UUID `json:"feature_id"`
	Limit     *int      `json:"limit"`
}

// GrantList holds a license key's feature grants, unique by feature id.
// Insertion order is preserved for listing; lookups go through an index.
type GrantList struct {
	items []FeatureGrant
	index map[uuid.UUID]int
}

func NewGrantList(grants ...FeatureGrant) GrantList {
	var l GrantList
	for _, g := range grants {
		l.Put(g)
	}
	return l
}

func (l *GrantList) ensureIndex() {
	if l.index == nil {
		l.index = make(map[uuid.UUID]int, len(l.items))
		for i, g := range l.items {
			l.index[g.FeatureID] = i
		}
	}
}

// Get returns a pointer into the list so callers can mutate the grant in place.
func (l *GrantList) Get(featureID uuid.UUID) (*FeatureGrant, bool) {
	l.ensureIndex()
	i, ok := l.index[featureID]
	if !ok {
		return nil, false
	}
	return &l.items[i], true
}

// Put inserts or replaces the grant for its feature id.
func (l *GrantList) Put(g FeatureGrant) {
	l.ensureIndex()
	if i, ok := l.index[g.FeatureID]; ok {
		l.items[i] = g
		return
	}
	l.index[g.FeatureID] = len(l.items)
	l.items = append(l.items, g)
}

// Remove deletes the grant and returns it.
func (l *GrantList) Remove(featureID uuid.UUID) (FeatureGrant, bool) {
	l.ensureIndex()
	i, ok := l.index[featureID]
	if !ok {
		return FeatureGrant{}, false
	}
	g := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.index = nil
	return g, true
}

func (l *GrantList) Len() int { return len(l.items) }

// All returns the grants in insertion order. The slice aliases internal
// storage and must not be appended to.
func (l *GrantList) All() []FeatureGrant { return l.items }

func (l GrantList) MarshalJSON() ([]byte, error) {
	if l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

func (l *GrantList) UnmarshalJSON(b []byte) error {
	var items []FeatureGrant
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = NewGrantList(items...)
	return nil
}

// DisabledList holds suspended feature records, unique by feature id.
type DisabledList struct {
	items []DisabledFeature
	index map[uuid.UUID]int
}

func NewDisabledList(items ...DisabledFeature) DisabledList {
	var l DisabledList
	for _, d := range items {
		l.Put(d)
	}
	return l
}

func (l *DisabledList) ensureIndex() {
	if l.index == nil {
		l.index = make(map[uuid.UUID]int, len(l.items))
		for i, d := range l.items {
			l.index[d.FeatureID] = i
		}
	}
}

func (l *DisabledList) Get(featureID uuid.UUID) (DisabledFeature, bool) {
	l.ensureIndex()
	i, ok := l.index[featureID]
	if !ok {
		return DisabledFeature{}, false
	}
	return l.items[i], true
}

func (l *DisabledList) Put(d DisabledFeature) {
	l.ensureIndex()
	if i, ok := l.index[d.FeatureID]; ok {
		l.items[i] = d
		return
	}
	l.index[d.FeatureID] = len(l.items)
	l.items = append(l.items, d)
}

func (l *DisabledList) Remove(featureID uuid.UUID) (DisabledFeature, bool) {
	l.ensureIndex()
	i, ok := l.index[featureID]
	if !ok {
		return DisabledFeature{}, false
	}
	d := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.index = nil
	return d, true
}

func (l *DisabledList) Len() int { return len(l.items) }

func (l *DisabledList) All() []DisabledFeature { return l.items }

func (l DisabledList) MarshalJSON() ([]byte, error) {
	if l.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.items)
}

func (l *DisabledList) UnmarshalJSON(b []byte) error {
	var items []DisabledFeature
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*l = NewDisabledList(items...)
	return nil
}

// LicenseKey is the aggregate representing one owner's entitlement to one
// product. A feature id appears in at most one of AllowedFeatures or
// DisabledFeatures.
type LicenseKey struct {
	ID               uuid.UUID
	VerificationHash string // bcrypt hash of the raw secret; never serialized
	PackageTier      PackageTier
	LicenseMode      LicenseMode
	IsPerpetual      bool
	Status           LicenseStatus
	IssuedDuration   int // years for annual mode, opaque units otherwise
	ActivatedAt      *time.Time
	ExpiresAt        *time.Time
	CreatedAt        time.Time
	OwnerID          uuid.UUID
	ProductID        uuid.UUID
	AllowedFeatures  GrantList
	DisabledFeatures DisabledList

	// Version backs the store's compare-and-swap discipline.
	Version int64
}

// DisableGrant moves a feature from the allowed set to the disabled set,
// preserving its limit. Returns false if the feature has no grant.
func (k *LicenseKey) DisableGrant(featureID uuid.UUID) bool {
	g, ok := k.AllowedFeatures.Remove(featureID)
	if !ok {
		return false
	}
	k.DisabledFeatures.Put(DisabledFeature{FeatureID: g.FeatureID, Limit: g.Limit})
	return true
}

// RestoreGrant moves a feature back to the allowed set with fresh counters
// and the original limit.
func (k *LicenseKey) RestoreGrant(featureID uuid.UUID) error {
	if _, ok := k.AllowedFeatures.Get(featureID); ok {
		return Errf(CodeConflict, "feature %s present in both allowed and disabled sets", featureID)
	}
	d, ok := k.DisabledFeatures.Remove(featureID)
	if !ok {
		return Errf(CodeNotFound, "feature %s not found in disabled features", featureID)
	}
	k.AllowedFeatures.Put(FeatureGrant{
		FeatureID: d.FeatureID,
		Limit:     d.Limit,
		Status:    GrantActive,
	})
	return nil
}

// LicenseKeySummary is the externally visible view of a license key.
// Secret and hash material is deliberately absent.
type LicenseKeySummary struct {
	ID               uuid.UUID         `json:"id"`
	PackageTier      PackageTier       `json:"type_package"`
	LicenseMode      LicenseMode       `json:"license_type"`
	Status           LicenseStatus     `json:"status"`
	IssuedDuration   int               `json:"issued_date"`
	ActivatedAt      *time.Time        `json:"active_date"`
	ExpiresAt        *time.Time        `json:"expiration_date"`
	CreatedAt        time.Time         `json:"created_at"`
	OwnerID          uuid.UUID         `json:"user_id"`
	ProductID        uuid.UUID         `json:"product_id"`
	AllowedFeatures  []FeatureGrant    `json:"allowed_features"`
	DisabledFeatures []DisabledFeature `json:"disabled_features"`
}

// Summary projects the aggregate into its external view.
func (k *LicenseKey) Summary() LicenseKeySummary {
	allowed := make([]FeatureGrant, len(k.AllowedFeatures.All()))
	copy(allowed, k.AllowedFeatures.All())
	disabled := make([]DisabledFeature, len(k.DisabledFeatures.All()))
	copy(disabled, k.DisabledFeatures.All())
	return LicenseKeySummary{
		ID:               k.ID,
		PackageTier:      k.PackageTier,
		LicenseMode:      k.LicenseMode,
		Status:           k.Status,
		IssuedDuration:   k.IssuedDuration,
		ActivatedAt:      k.ActivatedAt,
		ExpiresAt:        k.ExpiresAt,
		CreatedAt:        k.CreatedAt,
		OwnerID:          k.OwnerID,
		ProductID:        k.ProductID,
		AllowedFeatures:  allowed,
		DisabledFeatures: disabled,
	}
}
