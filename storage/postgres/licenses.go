// Package pgstore persists LicenseKey aggregates in Postgres. Each aggregate
// row carries both feature collections as JSONB plus a version column, so a
// read-modify-write cycle is one SELECT and one version-checked UPDATE.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/tuan304201/generate-license-key/core"
)

type licenseKeyRow struct {
	bun.BaseModel `bun:"table:licensing.license_keys,alias:lk"`

	ID               uuid.UUID       `bun:"id,pk,type:uuid"`
	KeyHash          string          `bun:"license_key_hash,notnull"`
	PackageTier      string          `bun:"type_package,notnull"`
	LicenseMode      string          `bun:"license_type,notnull"`
	IsPerpetual      bool            `bun:"is_perpetual,notnull"`
	Status           string          `bun:"status,notnull"`
	IssuedDuration   int             `bun:"issued_date,notnull"`
	ActivatedAt      *time.Time      `bun:"active_date"`
	ExpiresAt        *time.Time      `bun:"expiration_date"`
	CreatedAt        time.Time       `bun:"created_at,notnull"`
	OwnerID          uuid.UUID       `bun:"user_id,type:uuid,notnull"`
	ProductID        uuid.UUID       `bun:"product_id,type:uuid,notnull"`
	AllowedFeatures  json.RawMessage `bun:"allowed_features,type:jsonb"`
	DisabledFeatures json.RawMessage `bun:"disabled_features,type:jsonb"`
	Version          int64           `bun:"version,notnull"`
}

func toRow(k *core.LicenseKey) (*licenseKeyRow, error) {
	allowed, err := json.Marshal(k.AllowedFeatures)
	if err != nil {
		return nil, err
	}
	disabled, err := json.Marshal(k.DisabledFeatures)
	if err != nil {
		return nil, err
	}
	return &licenseKeyRow{
		ID:               k.ID,
		KeyHash:          k.VerificationHash,
		PackageTier:      string(k.PackageTier),
		LicenseMode:      string(k.LicenseMode),
		IsPerpetual:      k.IsPerpetual,
		Status:           string(k.Status),
		IssuedDuration:   k.IssuedDuration,
		ActivatedAt:      k.ActivatedAt,
		ExpiresAt:        k.ExpiresAt,
		CreatedAt:        k.CreatedAt,
		OwnerID:          k.OwnerID,
		ProductID:        k.ProductID,
		AllowedFeatures:  allowed,
		DisabledFeatures: disabled,
		Version:          k.Version,
	}, nil
}

func fromRow(r *licenseKeyRow) (*core.LicenseKey, error) {
	k := &core.LicenseKey{
		ID:               r.ID,
		VerificationHash: r.KeyHash,
		PackageTier:      core.PackageTier(r.PackageTier),
		LicenseMode:      core.LicenseMode(r.LicenseMode),
		IsPerpetual:      r.IsPerpetual,
		Status:           core.LicenseStatus(r.Status),
		IssuedDuration:   r.IssuedDuration,
		ActivatedAt:      r.ActivatedAt,
		ExpiresAt:        r.ExpiresAt,
		CreatedAt:        r.CreatedAt,
		OwnerID:          r.OwnerID,
		ProductID:        r.ProductID,
		Version:          r.Version,
	}
	if len(r.AllowedFeatures) > 0 {
		if err := json.Unmarshal(r.AllowedFeatures, &k.AllowedFeatures); err != nil {
			return nil, err
		}
	}
	if len(r.DisabledFeatures) > 0 {
		if err := json.Unmarshal(r.DisabledFeatures, &k.DisabledFeatures); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// LicenseStore implements core.LicenseStore on bun.
type LicenseStore struct {
	db *bun.DB
}

func NewLicenseStore(db *bun.DB) *LicenseStore {
	return &LicenseStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *LicenseStore) Create(ctx context.Context, key *core.LicenseKey) error {
	key.Version = 1
	row, err := toRow(key)
	if err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.Err(core.CodeConflict, "user already has a license key for this product")
		}
		return err
	}
	return nil
}

func (s *LicenseStore) ByID(ctx context.Context, id uuid.UUID) (*core.LicenseKey, error) {
	row := new(licenseKeyRow)
	err := s.db.NewSelect().Model(row).Where("lk.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "license key not found")
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

func (s *LicenseStore) ByOwnerProduct(ctx context.Context, ownerID, productID uuid.UUID) (*core.LicenseKey, error) {
	row := new(licenseKeyRow)
	err := s.db.NewSelect().Model(row).
		Where("lk.user_id = ?", ownerID).
		Where("lk.product_id = ?", productID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "license key not found")
	}
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

func (s *LicenseStore) List(ctx context.Context) ([]*core.LicenseKey, error) {
	var rows []licenseKeyRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*core.LicenseKey, 0, len(rows))
	for i := range rows {
		k, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Update writes the whole aggregate under a version check. A zero row count
// on an existing id means the row moved underneath the caller.
func (s *LicenseStore) Update(ctx context.Context, key *core.LicenseKey) error {
	prev := key.Version
	key.Version = prev + 1
	row, err := toRow(key)
	if err != nil {
		key.Version = prev
		return err
	}
	res, err := s.db.NewUpdate().Model(row).
		WherePK().
		Where("lk.version = ?", prev).
		Exec(ctx)
	if err != nil {
		key.Version = prev
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		key.Version = prev
		return err
	}
	if n == 0 {
		key.Version = prev
		exists, err := s.db.NewSelect().Model((*licenseKeyRow)(nil)).Where("lk.id = ?", key.ID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return core.Err(core.CodeNotFound, "license key not found")
		}
		return core.ErrStaleAggregate
	}
	return nil
}
