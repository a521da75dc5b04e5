package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

// HandleFeatureListGET lists catalog features.
func HandleFeatureListGET(cat core.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		features, err := cat.ListFeatures(c.Request.Context())
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		out := make([]featureView, 0, len(features))
		for _, f := range features {
			out = append(out, toFeatureView(f))
		}
		c.JSON(http.StatusOK, gin.H{"features": out})
	}
}
