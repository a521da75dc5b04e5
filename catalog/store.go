// Package catalog is the product catalog: products, their features, and the
// package tier each feature belongs to.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuan304201/generate-license-key/core"
)

// Store provides catalog lookups/mutations against the licensing schema.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "licensing"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) productsTable() string { return s.schema + ".products" }
func (s *Store) featuresTable() string { return s.schema + ".features" }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateProduct(ctx context.Context, name, description string) (*core.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.Err(core.CodeValidation, "product_name is required")
	}
	p := core.Product{ID: uuid.New(), Name: name, Description: description}
	_, err := s.pg.Exec(ctx,
		`INSERT INTO `+s.productsTable()+` (id, product_name, description) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.Err(core.CodeConflict, "product already exists")
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ProductByID(ctx context.Context, id uuid.UUID) (*core.Product, error) {
	var p core.Product
	err := s.pg.QueryRow(ctx,
		`SELECT id, product_name, description FROM `+s.productsTable()+` WHERE id=$1 LIMIT 1`,
		id).Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ProductByName(ctx context.Context, name string) (*core.Product, error) {
	var p core.Product
	err := s.pg.QueryRow(ctx,
		`SELECT id, product_name, description FROM `+s.productsTable()+` WHERE product_name=$1 LIMIT 1`,
		strings.TrimSpace(name)).Scan(&p.ID, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := s.pg.Query(ctx,
		`SELECT id, product_name, description FROM `+s.productsTable()+` ORDER BY product_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Product
	for rows.Next() {
		var p core.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateFeature(ctx context.Context, productID uuid.UUID, name, description string, tier core.PackageTier) (*core.Feature, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.Err(core.CodeValidation, "feature_name is required")
	}
	if !tier.Valid() {
		return nil, core.Errf(core.CodeValidation, "invalid package type %q", tier)
	}
	if _, err := s.ProductByID(ctx, productID); err != nil {
		return nil, err
	}
	f := core.Feature{ID: uuid.New(), ProductID: productID, Name: name, Description: description, Tier: tier}
	_, err := s.pg.Exec(ctx,
		`INSERT INTO `+s.featuresTable()+` (id, product_id, feature_name, description, type_package) VALUES ($1, $2, $3, $4, $5)`,
		f.ID, f.ProductID, f.Name, f.Description, string(f.Tier))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.Err(core.CodeConflict, "feature already exists")
		}
		return nil, err
	}
	return &f, nil
}

func (s *Store) FeatureByID(ctx context.Context, id uuid.UUID) (*core.Feature, error) {
	var f core.Feature
	err := s.pg.QueryRow(ctx,
		`SELECT id, product_id, feature_name, description, type_package FROM `+s.featuresTable()+` WHERE id=$1 LIMIT 1`,
		id).Scan(&f.ID, &f.ProductID, &f.Name, &f.Description, &f.Tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "feature not found")
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Store) ListFeatures(ctx context.Context) ([]core.Feature, error) {
	rows, err := s.pg.Query(ctx,
		`SELECT id, product_id, feature_name, description, type_package FROM `+s.featuresTable()+` ORDER BY feature_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Feature
	for rows.Next() {
		var f core.Feature
		if err := rows.Scan(&f.ID, &f.ProductID, &f.Name, &f.Description, &f.Tier); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TierFeatures returns the product's features available at the given tier.
// Tier membership is cumulative: standard includes basic, premium includes
// both.
func (s *Store) TierFeatures(ctx context.Context, productID uuid.UUID, tier core.PackageTier) ([]core.Feature, error) {
	tiers := []string{string(core.TierBasic)}
	switch tier {
	case core.TierStandard:
		tiers = append(tiers, string(core.TierStandard))
	case core.TierPremium:
		tiers = append(tiers, string(core.TierStandard), string(core.TierPremium))
	}
	rows, err := s.pg.Query(ctx,
		`SELECT id, product_id, feature_name, description, type_package FROM `+s.featuresTable()+
			` WHERE product_id=$1 AND type_package = ANY($2) ORDER BY feature_name`,
		productID, tiers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Feature
	for rows.Next() {
		var f core.Feature
		if err := rows.Scan(&f.ID, &f.ProductID, &f.Name, &f.Description, &f.Tier); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
