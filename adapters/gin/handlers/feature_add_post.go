package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type addFeatureRequest struct {
	ProductID   uuid.UUID        `json:"product_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	TypePackage core.PackageTier `json:"type_package"`
}

type featureView struct {
	ID          uuid.UUID        `json:"id"`
	ProductID   uuid.UUID        `json:"product_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	TypePackage core.PackageTier `json:"type_package"`
}

func toFeatureView(f core.Feature) featureView {
	return featureView{ID: f.ID, ProductID: f.ProductID, Name: f.Name, Description: f.Description, TypePackage: f.Tier}
}

// HandleFeatureAddPOST creates a catalog feature under a product and tier.
func HandleFeatureAddPOST(cat core.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addFeatureRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		if !req.TypePackage.Valid() {
			ginutil.BadRequest(c, "invalid_type_package")
			return
		}
		f, err := cat.CreateFeature(c.Request.Context(), req.ProductID, req.Name, req.Description, req.TypePackage)
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, toFeatureView(*f))
	}
}
