// Package identity is the identity directory: it resolves usernames to
// accounts and owns the purchase records that carry raw license secrets.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tuan304201/generate-license-key/core"
)

// Store provides identity lookups/mutations against the licensing schema.
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

func (s *Store) usersTable() string     { return s.schema + ".users" }
func (s *Store) purchasesTable() string { return s.schema + ".user_products" }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) CreateAccount(ctx context.Context, username string) (*core.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, core.Err(core.CodeValidation, "username is required")
	}
	a := core.Account{ID: uuid.New(), Username: username, CreatedAt: time.Now()}
	_, err := s.pg.Exec(ctx,
		`INSERT INTO `+s.usersTable()+` (id, username, created_at) VALUES ($1, $2, $3)`,
		a.ID, a.Username, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.Err(core.CodeConflict, "user already exists")
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) AccountByUsername(ctx context.Context, username string) (*core.Account, error) {
	var a core.Account
	err := s.pg.QueryRow(ctx,
		`SELECT id, username, created_at FROM `+s.usersTable()+` WHERE username=$1 LIMIT 1`,
		strings.TrimSpace(username)).Scan(&a.ID, &a.Username, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadPurchases(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*core.Account, error) {
	var a core.Account
	err := s.pg.QueryRow(ctx,
		`SELECT id, username, created_at FROM `+s.usersTable()+` WHERE id=$1 LIMIT 1`,
		id).Scan(&a.ID, &a.Username, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.Err(core.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadPurchases(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) loadPurchases(ctx context.Context, a *core.Account) error {
	rows, err := s.pg.Query(ctx,
		`SELECT product_id, license_key FROM `+s.purchasesTable()+` WHERE user_id=$1 ORDER BY created_at`,
		a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p core.Purchase
		if err := rows.Scan(&p.ProductID, &p.Secret); err != nil {
			return err
		}
		a.Purchases = append(a.Purchases, p)
	}
	return rows.Err()
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := s.pg.Query(ctx,
		`SELECT id, username, created_at FROM `+s.usersTable()+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Username, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordPurchase inserts the raw secret against the owner's product
// association. The secret column's unique index doubles as the generation
// collision check, evaluated by the same insert. The violated constraint
// tells a retryable secret collision apart from a duplicate purchase.
func (s *Store) RecordPurchase(ctx context.Context, accountID, productID uuid.UUID, secret string) error {
	_, err := s.pg.Exec(ctx,
		`INSERT INTO `+s.purchasesTable()+` (user_id, product_id, license_key, created_at) VALUES ($1, $2, $3, NOW())`,
		accountID, productID, secret)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
				return core.Err(core.CodeConflict, "user already has a license key for this product")
			}
			return core.ErrSecretCollision
		}
		return err
	}
	return nil
}

// RemovePurchase backs a purchase record out, freeing both the product slot
// and the secret.
func (s *Store) RemovePurchase(ctx context.Context, accountID, productID uuid.UUID) error {
	_, err := s.pg.Exec(ctx,
		`DELETE FROM `+s.purchasesTable()+` WHERE user_id=$1 AND product_id=$2`,
		accountID, productID)
	return err
}
