package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tuan304201/generate-license-key/adapters/ginutil"
	core "github.com/tuan304201/generate-license-key/core"
)

type upgradeLicenseRequest struct {
	TypePackage     core.PackageTier    `json:"type_package"`
	LicenseType     core.LicenseMode    `json:"license_type"`
	IssuedDate      int                 `json:"issued_date"`
	AllowedFeatures []core.GrantRequest `json:"allowed_features"`
}

// HandleLicenseUpgradePUT changes the tier and/or mode of an existing key.
func HandleLicenseUpgradePUT(svc *core.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			ginutil.BadRequest(c, "invalid_license_id")
			return
		}
		var req upgradeLicenseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.UpgradeLicense(c.Request.Context(), core.UpgradeCommand{
			LicenseID:     id,
			NewTier:       req.TypePackage,
			NewMode:       req.LicenseType,
			AddedDuration: req.IssuedDate,
			Grants:        req.AllowedFeatures,
		})
		if err != nil {
			ginutil.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
