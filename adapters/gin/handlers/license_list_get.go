package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

// HandleLicenseListGET lists every license key summary. Secrets and hashes
// never appear in the projection.
func HandleLicenseListGET(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.ListLicenses(c.Request.Context())
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"license_keys": res})
	}
}
