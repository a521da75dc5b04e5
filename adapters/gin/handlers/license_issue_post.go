package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type generateLicenseRequest struct {
	Username        string              `json:"username"`
	ProductID       uuid.UUID           `json:"product_id"`
	TypePackage     core.PackageTier    `json:"type_package"`
	LicenseType     core.LicenseMode    `json:"license_type"`
	IssuedDate      int                 `json:"issued_date"`
	AllowedFeatures []core.GrantRequest `json:"allowed_features"`
}

// HandleLicenseGeneratePOST issues a new inactive license key. The raw secret
// appears in this response and nowhere else.
func HandleLicenseGeneratePOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLIssue) {
			ginutil.TooMany(c)
			return
		}
		var req generateLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.IssueLicense(c.Request.Context(), core.IssueCommand{
			OwnerUsername: req.Username,
			ProductID:     req.ProductID,
			Tier:          req.TypePackage,
			Mode:          req.LicenseType,
			Duration:      req.IssuedDate,
			Grants:        req.AllowedFeatures,
		})
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}
