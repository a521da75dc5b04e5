package memorystore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/core"
)

// LicenseStore is an in-memory core.LicenseStore for tests and single-node
// use. It honors the same optimistic-concurrency contract as the Postgres
// store: Update compares versions and fails with core.ErrStaleAggregate.
type LicenseStore struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*core.LicenseKey
	// ownerProduct indexes aggregates by owner+product for O(1) resolution.
	ownerProduct map[ownerProductKey]uuid.UUID
	order        []uuid.UUID
}

type ownerProductKey struct {
	owner   uuid.UUID
	product uuid.UUID
}

func NewLicenseStore() *LicenseStore {
	return &LicenseStore{
		keys:         make(map[uuid.UUID]*core.LicenseKey),
		ownerProduct: make(map[ownerProductKey]uuid.UUID),
	}
}

// clone deep-copies an aggregate so callers never share mutable state with
// the store.
func clone(k *core.LicenseKey) *core.LicenseKey {
	c := *k
	c.AllowedFeatures = core.NewGrantList(k.AllowedFeatures.All()...)
	c.DisabledFeatures = core.NewDisabledList(k.DisabledFeatures.All()...)
	return &c
}

func (s *LicenseStore) Create(ctx context.Context, key *core.LicenseKey) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	op := ownerProductKey{owner: key.OwnerID, product: key.ProductID}
	if _, exists := s.ownerProduct[op]; exists {
		return core.Err(core.CodeConflict, "user already has a license key for this product")
	}
	if _, exists := s.keys[key.ID]; exists {
		return core.Err(core.CodeConflict, "duplicate license key id")
	}
	key.Version = 1
	s.keys[key.ID] = clone(key)
	s.ownerProduct[op] = key.ID
	s.order = append(s.order, key.ID)
	return nil
}

func (s *LicenseStore) ByID(ctx context.Context, id uuid.UUID) (*core.LicenseKey, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "license key not found")
	}
	return clone(k), nil
}

func (s *LicenseStore) ByOwnerProduct(ctx context.Context, ownerID, productID uuid.UUID) (*core.LicenseKey, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.ownerProduct[ownerProductKey{owner: ownerID, product: productID}]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "license key not found")
	}
	return clone(s.keys[id]), nil
}

func (s *LicenseStore) List(ctx context.Context) ([]*core.LicenseKey, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.LicenseKey, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.keys[id]))
	}
	return out, nil
}

func (s *LicenseStore) Update(ctx context.Context, key *core.LicenseKey) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.keys[key.ID]
	if !ok {
		return core.Err(core.CodeNotFound, "license key not found")
	}
	if cur.Version != key.Version {
		return core.ErrStaleAggregate
	}
	key.Version++
	s.keys[key.ID] = clone(key)
	return nil
}
