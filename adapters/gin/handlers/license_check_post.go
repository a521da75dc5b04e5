package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type checkLicenseRequest struct {
	ProductName string `json:"product_name"`
}

// HandleLicenseCheckPOST reports the current status of the caller's license
// for a product. Expiry is normalized lazily on the way out.
func HandleLicenseCheckPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLCheck) {
			ginutil.TooMany(c)
			return
		}
		var req checkLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.CheckLicense(c.Request.Context(), core.CheckCommand{
			Username:    c.Param("username"),
			ProductName: req.ProductName,
		})
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
