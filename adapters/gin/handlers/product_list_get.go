package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

// HandleProductListGET lists catalog products.
func HandleProductListGET(cat core.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := cat.ListProducts(c.Request.Context())
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		out := make([]productView, 0, len(products))
		for _, p := range products {
			out = append(out, productView{ID: p.ID, Name: p.Name, Description: p.Description})
		}
		c.JSON(http.StatusOK, gin.H{"products": out})
	}
}
