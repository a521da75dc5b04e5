package core

import (
	"strings"

	"github.com/google/uuid"
)

// GrantRequest is a caller-supplied feature grant for perpetual licenses.
type GrantRequest struct {
	FeatureID uuid.UUID `json:"feature_id"`
	Limit     *int      `json:"limits"`
}

// IssueCommand creates a new license key for an owner/product pair.
type IssueCommand struct {
	OwnerUsername string
	ProductID     uuid.UUID
	Tier          PackageTier
	Mode          LicenseMode
	Duration      int
	Grants        []GrantRequest
}

func (c IssueCommand) Validate() error {
	if strings.TrimSpace(c.OwnerUsername) == "" {
		return Err(CodeValidation, "username is required")
	}
	if c.ProductID == uuid.Nil {
		return Err(CodeValidation, "product_id is required")
	}
	if !c.Tier.Valid() {
		return Errf(CodeValidation, "invalid package type %q", c.Tier)
	}
	if !c.Mode.Valid() {
		return Errf(CodeValidation, "invalid license type %q", c.Mode)
	}
	if c.Duration < 0 {
		return Err(CodeValidation, "issued duration must not be negative")
	}
	for _, g := range c.Grants {
		if g.FeatureID == uuid.Nil {
			return Err(CodeValidation, "grant feature_id is required")
		}
		if g.Limit != nil && *g.Limit < 0 {
			return Err(CodeValidation, "grant limit must not be negative")
		}
	}
	return nil
}

// ActivateCommand turns an inactive key active given the raw secret.
type ActivateCommand struct {
	Username    string
	ProductName string
	Secret      string
}

func (c ActivateCommand) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return Err(CodeValidation, "username is required")
	}
	if strings.TrimSpace(c.ProductName) == "" {
		return Err(CodeValidation, "product_name is required")
	}
	if strings.TrimSpace(c.Secret) == "" {
		return Err(CodeValidation, "license_key is required")
	}
	return nil
}

// UpgradeCommand changes tier and/or mode of an existing key.
type UpgradeCommand struct {
	LicenseID     uuid.UUID
	NewTier       PackageTier
	NewMode       LicenseMode
	AddedDuration int
	Grants        []GrantRequest
}

func (c UpgradeCommand) Validate() error {
	if c.LicenseID == uuid.Nil {
		return Err(CodeValidation, "license id is required")
	}
	if !c.NewTier.Valid() {
		return Errf(CodeValidation, "invalid package type %q", c.NewTier)
	}
	if !c.NewMode.Valid() {
		return Errf(CodeValidation, "invalid license type %q", c.NewMode)
	}
	if c.AddedDuration < 0 {
		return Err(CodeValidation, "added duration must not be negative")
	}
	for _, g := range c.Grants {
		if g.FeatureID == uuid.Nil {
			return Err(CodeValidation, "grant feature_id is required")
		}
		if g.Limit != nil && *g.Limit < 0 {
			return Err(CodeValidation, "grant limit must not be negative")
		}
	}
	return nil
}

// CheckCommand asks for the current status of an owner's product license.
type CheckCommand struct {
	Username    string
	ProductName string
}

func (c CheckCommand) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return Err(CodeValidation, "username is required")
	}
	if strings.TrimSpace(c.ProductName) == "" {
		return Err(CodeValidation, "product_name is required")
	}
	return nil
}

// UsageCommand records one use of a feature under an owner's license.
type UsageCommand struct {
	Username  string
	FeatureID uuid.UUID
}

func (c UsageCommand) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return Err(CodeValidation, "username is required")
	}
	if c.FeatureID == uuid.Nil {
		return Err(CodeValidation, "feature id is required")
	}
	return nil
}

// RestoreCommand reinstates a suspended feature grant.
type RestoreCommand struct {
	Username  string
	FeatureID uuid.UUID
}

func (c RestoreCommand) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return Err(CodeValidation, "username is required")
	}
	if c.FeatureID == uuid.Nil {
		return Err(CodeValidation, "feature id is required")
	}
	return nil
}
