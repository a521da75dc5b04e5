package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type activateLicenseRequest struct {
	Username    string `json:"username"`
	ProductName string `json:"product_name"`
	LicenseKey  string `json:"license_key"`
}

// HandleLicenseActivatePOST activates a key given its raw secret. Rate
// limited because the secret is guessable in principle.
func HandleLicenseActivatePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLActivate) {
			ginutil.TooMany(c)
			return
		}
		var req activateLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.ActivateLicense(c.Request.Context(), core.ActivateCommand{
			Username:    req.Username,
			ProductName: req.ProductName,
			Secret:      req.LicenseKey,
		})
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
