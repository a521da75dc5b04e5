// Package ginadapter mounts the HTTP request gateway. One handler per route,
// all domain decisions delegated to the core service.
package ginadapter

import (
	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/gin/handlers"
	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

// Deps is everything the gateway needs. Limiter and Auth may be nil in tests.
type Deps struct {
	Service   *core.Service
	Directory core.Directory
	Catalog   core.Catalog
	Limiter   ginutil.RateLimiter
	Auth      TokenVerifier
}

// Mount registers all routes on the engine. Admin routes sit behind the
// bearer middleware; user creation and the two feature entitlement calls are
// open, mirroring how client software calls them with only a license secret.
func Mount(r *gin.Engine, d Deps) {
	api := r.Group("/api")

	admin := api.Group("", RequireBearer(d.Auth))

	lk := admin.Group("/license-keys")
	lk.POST("/generate", handlers.HandleLicenseGeneratePOST(d.Service, d.Limiter))
	lk.GET("", handlers.HandleLicenseListGET(d.Service))
	lk.PUT("/upgrade/:id", handlers.HandleLicenseUpgradePUT(d.Service))

	// Activation and check are called by installed client software.
	api.POST("/license-keys/active", handlers.HandleLicenseActivatePOST(d.Service, d.Limiter))
	api.POST("/license-keys/check/:username", handlers.HandleLicenseCheckPOST(d.Service, d.Limiter))

	ft := api.Group("/features")
	ft.POST("/count/:feature_id", handlers.HandleFeatureUsagePOST(d.Service, d.Limiter))
	ft.PUT("/restore/:feature_id", handlers.HandleFeatureRestorePUT(d.Service))

	api.POST("/users", handlers.HandleUserAddPOST(d.Directory))
	admin.GET("/users", handlers.HandleUserListGET(d.Directory))

	admin.POST("/products", handlers.HandleProductAddPOST(d.Catalog))
	admin.GET("/products", handlers.HandleProductListGET(d.Catalog))
	admin.POST("/features", handlers.HandleFeatureAddPOST(d.Catalog))
	admin.GET("/features", handlers.HandleFeatureListGET(d.Catalog))
}
