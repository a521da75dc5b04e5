package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type addProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type productView struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// HandleProductAddPOST creates a catalog product. Names are unique.
func HandleProductAddPOST(cat core.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addProductRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		p, err := cat.CreateProduct(c.Request.Context(), req.Name, req.Description)
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, productView{ID: p.ID, Name: p.Name, Description: p.Description})
	}
}
