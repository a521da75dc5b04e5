package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type featureUsageRequest struct {
	Username string `json:"username"`
}

// HandleFeatureUsagePOST accounts one use of a feature under the caller's
// license. Denials still persist their violation bookkeeping before the
// error response goes out.
func HandleFeatureUsagePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLUsage) {
			ginutil.TooMany(c)
			return
		}
		featureID, err := uuid.Parse(c.Param("feature_id"))
		if err != nil {
			ginutil.BadRequest(c, "invalid_feature_id")
			return
		}
		var req featureUsageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		err = svc.RecordFeatureUsage(c.Request.Context(), core.UsageCommand{
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
