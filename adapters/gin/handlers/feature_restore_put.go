package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type featureRestoreRequest struct {
	Username string `json:"username"`
}

// HandleFeatureRestorePUT reinstates a suspended feature grant with its
// original limit and fresh counters.
func HandleFeatureRestorePUT(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		featureID, err := uuid.Parse(c.Param("feature_id"))
		if err != nil {
			ginutil.BadRequest(c, "invalid_feature_id")
			return
		}
		var req featureRestoreRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		err = svc.RestoreFeature(c.Request.Context(), core.RestoreCommand{
			Username:  req.Username,
			FeatureID: featureID,
		})
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
