package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Account is an end user resolved through the identity directory, together
// with the purchase records that hold raw license secrets.
type Account struct {
	ID        uuid.UUID
	Username  string
	Purchases []Purchase
	CreatedAt time.Time
}

// Purchase associates an account with a product and the raw secret shown to
// the purchaser at issue time.
type Purchase struct {
	ProductID uuid.UUID
	Secret    string
}

// PurchaseFor returns the account's purchase record for a product.
func (a *Account) PurchaseFor(productID uuid.UUID) (Purchase, bool) {
	for _, p := range a.Purchases {
		if p.ProductID == productID {
			return p, true
		}
	}
	return Purchase{}, false
}

// Product is a catalog entry.
type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
}

// Feature is a catalog feature belonging to one product and one tier.
type Feature struct {
	ID          uuid.UUID
	ProductID   uuid.UUID
	Name        string
	Description string
	Tier        PackageTier
}

// Directory resolves usernames to accounts and records purchase secrets.
// Implementations return *Error with CodeNotFound / CodeConflict.
type Directory interface {
	AccountByUsername(ctx context.Context, username string) (*Account, error)
	AccountByID(ctx context.Context, id uuid.UUID) (*Account, error)
	CreateAccount(ctx context.Context, username string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	// RecordPurchase stores the raw secret against the owner's product
	// association. It fails with ErrSecretCollision when the secret collides
	// with an existing record (the issuer retries with a fresh generation)
	// and with CodeConflict when the owner already holds the product.
	RecordPurchase(ctx context.Context, accountID, productID uuid.UUID, secret string) error
	// RemovePurchase deletes the owner's purchase record for a product. The
	// issuer uses it to back out when license creation fails after the
	// purchase was recorded.
	RemovePurchase(ctx context.Context, accountID, productID uuid.UUID) error
}

// Catalog resolves product and feature identifiers to metadata.
type Catalog interface {
	ProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	ProductByName(ctx context.Context, name string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, name, description string) (*Product, error)
	FeatureByID(ctx context.Context, id uuid.UUID) (*Feature, error)
	ListFeatures(ctx context.Context) ([]Feature, error)
	CreateFeature(ctx context.Context, productID uuid.UUID, name, description string, tier PackageTier) (*Feature, error)
	// TierFeatures returns the product features available to holders of the
	// given tier, including lower tiers.
	TierFeatures(ctx context.Context, productID uuid.UUID, tier PackageTier) ([]Feature, error)
}

// LicenseStore persists LicenseKey aggregates. Each aggregate (root fields
// plus both feature collections) is written as one unit. Update applies a
// version check and returns ErrStaleAggregate when the row moved underneath
// the caller.
type LicenseStore interface {
	Create(ctx context.Context, key *LicenseKey) error
	ByID(ctx context.Context, id uuid.UUID) (*LicenseKey, error)
	ByOwnerProduct(ctx context.Context, ownerID, productID uuid.UUID) (*LicenseKey, error)
	List(ctx context.Context) ([]*LicenseKey, error)
	Update(ctx context.Context, key *LicenseKey) error
}

// CheckResult is the outcome of CheckLicense.
type CheckResult struct {
	ProductName string        `json:"product_name"`
	Status      LicenseStatus `json:"status"`
	ExpiresAt   *time.Time    `json:"expiration_date"`
}

// StatusCache is an optional read-side cache for CheckLicense results.
// A nil implementation is valid; misses are never errors.
type StatusCache interface {
	Get(ctx context.Context, ownerID, productID uuid.UUID) (CheckResult, bool, error)
	Put(ctx context.Context, ownerID, productID uuid.UUID, res CheckResult) error
	Invalidate(ctx context.Context, ownerID, productID uuid.UUID) error
}
