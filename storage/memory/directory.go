package memorystore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/core"
)

// Directory is an in-memory core.Directory. Purchase secrets are unique
// across all accounts, matching the SQL store's constraint, so issuance can
// detect generation collisions.
type Directory struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*core.Account
	byName   map[string]uuid.UUID
	secrets  map[string]struct{}
	ordering []uuid.UUID
}

func NewDirectory() *Directory {
	return &Directory{
		byID:    make(map[uuid.UUID]*core.Account),
		byName:  make(map[string]uuid.UUID),
		secrets: make(map[string]struct{}),
	}
}

func cloneAccount(a *core.Account) *core.Account {
	c := *a
	c.Purchases = append([]core.Purchase(nil), a.Purchases...)
	return &c
}

func (d *Directory) CreateAccount(ctx context.Context, username string) (*core.Account, error) {
	_ = ctx
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, core.Err(core.CodeValidation, "username is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byName[username]; exists {
		return nil, core.Err(core.CodeConflict, "user already exists")
	}
	a := &core.Account{ID: uuid.New(), Username: username, CreatedAt: time.Now()}
	d.byID[a.ID] = a
	d.byName[username] = a.ID
	d.ordering = append(d.ordering, a.ID)
	return cloneAccount(a), nil
}

func (d *Directory) AccountByUsername(ctx context.Context, username string) (*core.Account, error) {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.byName[strings.TrimSpace(username)]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "user not found")
	}
	return cloneAccount(d.byID[id]), nil
}

func (d *Directory) AccountByID(ctx context.Context, id uuid.UUID) (*core.Account, error) {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[id]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "user not found")
	}
	return cloneAccount(a), nil
}

func (d *Directory) ListAccounts(ctx context.Context) ([]core.Account, error) {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.Account, 0, len(d.ordering))
	for _, id := range d.ordering {
		out = append(out, *cloneAccount(d.byID[id]))
	}
	return out, nil
}

func (d *Directory) RecordPurchase(ctx context.Context, accountID, productID uuid.UUID, secret string) error {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[accountID]
	if !ok {
		return core.Err(core.CodeNotFound, "user not found")
	}
	for _, p := range a.Purchases {
		if p.ProductID == productID {
			return core.Err(core.CodeConflict, "user already has a license key for this product")
		}
	}
	if _, taken := d.secrets[secret]; taken {
		return core.ErrSecretCollision
	}
	a.Purchases = append(a.Purchases, core.Purchase{ProductID: productID, Secret: secret})
	d.secrets[secret] = struct{}{}
	return nil
}

func (d *Directory) RemovePurchase(ctx context.Context, accountID, productID uuid.UUID) error {
	_ = ctx
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.byID[accountID]
	if !ok {
		return core.Err(core.CodeNotFound, "user not found")
	}
	for i, p := range a.Purchases {
		if p.ProductID == productID {
			delete(d.secrets, p.Secret)
			a.Purchases = append(a.Purchases[:i], a.Purchases[i+1:]...)
			return nil
		}
	}
	return nil
}
