// Package testing provides fixtures for applications embedding the licensing
// kit: a seeded in-memory environment around the evaluator, and a mock token
// issuer that serves JWKS so gateway auth can be exercised without a real
// identity provider.
package testing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tuan304201/generate-license-key/clock"
	core "github.com/tuan304201/generate-license-key/core"
	"github.com/tuan304201/generate-license-key/keygen"
	memorystore "github.com/tuan304201/generate-license-key/storage/memory"
)

// Env is a fully wired in-memory service environment. The clock starts at a
// fixed instant so date arithmetic in tests is reproducible.
type Env struct {
	Service   *core.Service
	Directory *memorystore.Directory
	Catalog   *memorystore.Catalog
	Licenses  *memorystore.LicenseStore
	Clock     *clock.Fake
}

// EpochStart is where every Env clock begins.
var EpochStart = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

// NewEnv builds an Env. The key generator runs at bcrypt.MinCost to keep
// test suites fast.
func NewEnv(cfg core.Config) *Env {
	dir := memorystore.NewDirectory()
	cat := memorystore.NewCatalog()
	lic := memorystore.NewLicenseStore()
	clk := clock.NewFake(EpochStart)
	gen := keygen.New(keygen.Config{BcryptCost: 4})
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	svc := core.NewService(cfg, lic, dir, cat, gen, clk).WithLogger(log)
	return &Env{Service: svc, Directory: dir, Catalog: cat, Licenses: lic, Clock: clk}
}

// SeedUser registers a username, panicking on conflict. Fixture setup only.
func (e *Env) SeedUser(username string) *core.Account {
	a, err := e.Directory.CreateAccount(context.Background(), username)
	if err != nil {
		panic("seed user: " + err.Error())
	}
	return a
}

// SeedProduct registers a product.
func (e *Env) SeedProduct(name string) *core.Product {
	p, err := e.Catalog.CreateProduct(context.Background(), name, name+" product")
	if err != nil {
		panic("seed product: " + err.Error())
	}
	return p
}

// SeedFeature registers a feature under a product and tier.
func (e *Env) SeedFeature(productID uuid.UUID, name string, tier core.PackageTier) *core.Feature {
	f, err := e.Catalog.CreateFeature(context.Background(), productID, name, name+" feature", tier)
	if err != nil {
		panic("seed feature: " + err.Error())
	}
	return f
}

// Issue creates a license through the service and returns the raw secret
// alongside the summary.
func (e *Env) Issue(cmd core.IssueCommand) *core.IssueResult {
	res, err := e.Service.IssueLicense(context.Background(), cmd)
	if err != nil {
		panic("seed license: " + err.Error())
	}
	return res
}
