package memorystore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/core"
)

// Catalog is an in-memory core.Catalog.
type Catalog struct {
	mu            sync.Mutex
	products      map[uuid.UUID]core.Product
	productByName map[string]uuid.UUID
	features      map[uuid.UUID]core.Feature
	featureByName map[string]uuid.UUID
	productOrder  []uuid.UUID
	featureOrder  []uuid.UUID
}

func NewCatalog() *Catalog {
	return &Catalog{
		products:      make(map[uuid.UUID]core.Product),
		productByName: make(map[string]uuid.UUID),
		features:      make(map[uuid.UUID]core.Feature),
		featureByName: make(map[string]uuid.UUID),
	}
}

func (c *Catalog) CreateProduct(ctx context.Context, name, description string) (*core.Product, error) {
	_ = ctx
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.Err(core.CodeValidation, "product_name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.productByName[name]; exists {
		return nil, core.Err(core.CodeConflict, "product already exists")
	}
	p := core.Product{ID: uuid.New(), Name: name, Description: description}
	c.products[p.ID] = p
	c.productByName[name] = p.ID
	c.productOrder = append(c.productOrder, p.ID)
	return &p, nil
}

func (c *Catalog) ProductByID(ctx context.Context, id uuid.UUID) (*core.Product, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "product not found")
	}
	return &p, nil
}

func (c *Catalog) ProductByName(ctx context.Context, name string) (*core.Product, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.productByName[strings.TrimSpace(name)]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "product not found")
	}
	p := c.products[id]
	return &p, nil
}

func (c *Catalog) ListProducts(ctx context.Context) ([]core.Product, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Product, 0, len(c.productOrder))
	for _, id := range c.productOrder {
		out = append(out, c.products[id])
	}
	return out, nil
}

func (c *Catalog) CreateFeature(ctx context.Context, productID uuid.UUID, name, description string, tier core.PackageTier) (*core.Feature, error) {
	_ = ctx
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.Err(core.CodeValidation, "feature_name is required")
	}
	if !tier.Valid() {
		return nil, core.Errf(core.CodeValidation, "invalid package type %q", tier)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[productID]; !ok {
		return nil, core.Err(core.CodeNotFound, "product not found")
	}
	if _, exists := c.featureByName[name]; exists {
		return nil, core.Err(core.CodeConflict, "feature already exists")
	}
	f := core.Feature{ID: uuid.New(), ProductID: productID, Name: name, Description: description, Tier: tier}
	c.features[f.ID] = f
	c.featureByName[name] = f.ID
	c.featureOrder = append(c.featureOrder, f.ID)
	return &f, nil
}

func (c *Catalog) FeatureByID(ctx context.Context, id uuid.UUID) (*core.Feature, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.features[id]
	if !ok {
		return nil, core.Err(core.CodeNotFound, "feature not found")
	}
	return &f, nil
}

func (c *Catalog) ListFeatures(ctx context.Context) ([]core.Feature, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Feature, 0, len(c.featureOrder))
	for _, id := range c.featureOrder {
		out = append(out, c.features[id])
	}
	return out, nil
}

func (c *Catalog) TierFeatures(ctx context.Context, productID uuid.UUID, tier core.PackageTier) ([]core.Feature, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[productID]; !ok {
		return nil, core.Err(core.CodeNotFound, "product not found")
	}
	var out []core.Feature
	for _, id := range c.featureOrder {
		f := c.features[id]
		if f.ProductID == productID && tier.Includes(f.Tier) {
			out = append(out, f)
		}
	}
	return out, nil
}
