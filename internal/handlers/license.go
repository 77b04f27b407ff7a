package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/database"
	"github.com/licensegate/backend/internal/license"
	"github.com/licensegate/backend/internal/models"
)

// LicenseHandler serves the admin license management API
type LicenseHandler struct {
	registry *license.Registry
}

func NewLicenseHandler(registry *license.Registry) *LicenseHandler {
	return &LicenseHandler{registry: registry}
}

// maskKey hides the middle of a license key for list views
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// licenseSummary is the admin list/detail shape. Keys are masked in lists
// and revealed in single-license responses.
func licenseSummary(lic *models.License, revealKey bool) fiber.Map {
	key := maskKey(lic.LicenseKey)
	if revealKey {
		key = lic.LicenseKey
	}
	return fiber.Map{
		"id":                 lic.ID,
		"product_id":         lic.ProductID,
		"user_id":            lic.UserID,
		"license_key":        key,
		"license_type":       lic.LicenseType,
		"status":             lic.Status,
		"max_domains":        lic.MaxDomains,
		"license_expires_at": lic.LicenseExpiresAt,
		"support_expires_at": lic.SupportExpiresAt,
		"notes":              lic.Notes,
		"domains":            lic.Domains,
		"created_at":         lic.CreatedAt,
		"updated_at":         lic.UpdatedAt,
	}
}

// GetLicenses returns a paginated license list
func (h *LicenseHandler) GetLicenses(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	search := c.Query("search", "")
	status := c.Query("status", "")
	licenseType := c.Query("license_type", "")

	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := database.DB.Model(&models.License{})

	if search != "" {
		searchPattern := "%" + search + "%"
		query = query.Where("license_key ILIKE ? OR purchase_code ILIKE ? OR notes ILIKE ?",
			searchPattern, searchPattern, searchPattern)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if licenseType != "" {
		query = query.Where("license_type = ?", licenseType)
	}

	var total int64
	query.Count(&total)

	var licenses []models.License
	query.Preload("Product").Preload("Domains").Order("created_at DESC").Offset(offset).Limit(limit).Find(&licenses)

	data := make([]fiber.Map, 0, len(licenses))
	for i := range licenses {
		data = append(data, licenseSummary(&licenses[i], false))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"meta": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// GetLicense returns a single license with its domains
func (h *LicenseHandler) GetLicense(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := database.DB.Preload("Product").Preload("User").Preload("Domains").First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    licenseSummary(&lic, true),
	})
}

// CreateLicenseRequest represents license creation body
type CreateLicenseRequest struct {
	ProductID        *uint              `json:"product_id"`
	UserID           *uint              `json:"user_id"`
	PurchaseCode     string             `json:"purchase_code"`
	LicenseType      models.LicenseType `json:"license_type"`
	MaxDomains       int                `json:"max_domains"`
	LicenseExpiresAt *time.Time         `json:"license_expires_at"`
	SupportExpiresAt *time.Time         `json:"support_expires_at"`
	Notes            string             `json:"notes"`
}

// CreateLicense issues a new license. The generated key is revealed once in
// the response.
func (h *LicenseHandler) CreateLicense(c *fiber.Ctx) error {
	var req CreateLicenseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	lic, err := h.registry.CreateLicense(license.CreateLicenseInput{
		ProductID:        req.ProductID,
		UserID:           req.UserID,
		PurchaseCode:     req.PurchaseCode,
		LicenseType:      req.LicenseType,
		MaxDomains:       req.MaxDomains,
		LicenseExpiresAt: req.LicenseExpiresAt,
		SupportExpiresAt: req.SupportExpiresAt,
		Notes:            req.Notes,
	})
	if err != nil {
		log.Printf("Failed to create license: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create license",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    licenseSummary(lic, true),
	})
}

// UpdateLicenseRequest represents mutable license fields
type UpdateLicenseRequest struct {
	ProductID        *uint                 `json:"product_id"`
	UserID           *uint                 `json:"user_id"`
	Status           *models.LicenseStatus `json:"status"`
	MaxDomains       *int                  `json:"max_domains"`
	LicenseExpiresAt *time.Time            `json:"license_expires_at"`
	SupportExpiresAt *time.Time            `json:"support_expires_at"`
	Notes            *string               `json:"notes"`
}

// UpdateLicense updates license attributes
func (h *LicenseHandler) UpdateLicense(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := database.DB.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	var req UpdateLicenseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.ProductID != nil {
		lic.ProductID = req.ProductID
	}
	if req.UserID != nil {
		lic.UserID = req.UserID
	}
	if req.Status != nil {
		lic.Status = *req.Status
	}
	if req.MaxDomains != nil && *req.MaxDomains >= 1 {
		lic.MaxDomains = *req.MaxDomains
	}
	if req.LicenseExpiresAt != nil {
		lic.LicenseExpiresAt = req.LicenseExpiresAt
	}
	if req.SupportExpiresAt != nil {
		lic.SupportExpiresAt = req.SupportExpiresAt
	}
	if req.Notes != nil {
		lic.Notes = *req.Notes
	}

	if err := database.DB.Save(&lic).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update license",
		})
	}

	database.InvalidateVerificationCache()

	return c.JSON(fiber.Map{
		"success": true,
		"data":    licenseSummary(&lic, false),
	})
}

// DeleteLicense removes a license and its domain bindings
func (h *LicenseHandler) DeleteLicense(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := database.DB.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	if err := database.DB.Where("license_id = ?", lic.ID).Delete(&models.LicenseDomain{}).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete license domains",
		})
	}
	if err := database.DB.Delete(&lic).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete license",
		})
	}

	database.InvalidateVerificationCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "License deleted",
	})
}

// RenewLicense extends the license expiry
func (h *LicenseHandler) RenewLicense(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := database.DB.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	var req struct {
		Days int `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if err := h.registry.Renew(&lic, req.Days); err != nil {
		log.Printf("Failed to renew license %d: %v", lic.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to renew license",
		})
	}

	database.InvalidateVerificationCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "License renewed",
		"data":    licenseSummary(&lic, false),
	})
}

// SuspendLicense suspends a license; verification fails until reactivated
func (h *LicenseHandler) SuspendLicense(c *fiber.Ctx) error {
	return h.transition(c, func(lic *models.License) error {
		return h.registry.Suspend(lic)
	}, "License suspended")
}

// ReactivateLicense returns a suspended or expired license to active
func (h *LicenseHandler) ReactivateLicense(c *fiber.Ctx) error {
	return h.transition(c, func(lic *models.License) error {
		return h.registry.Reactivate(lic)
	}, "License reactivated")
}

func (h *LicenseHandler) transition(c *fiber.Ctx, apply func(*models.License) error, message string) error {
	id := c.Params("id")

	var lic models.License
	if err := database.DB.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	if err := apply(&lic); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update license status",
		})
	}

	database.InvalidateVerificationCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    licenseSummary(&lic, false),
	})
}

// GetLicenseDomains lists the domain bindings of one license
func (h *LicenseHandler) GetLicenseDomains(c *fiber.Ctx) error {
	id := c.Params("id")

	var lic models.License
	if err := database.DB.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	var domains []models.LicenseDomain
	database.DB.Where("license_id = ?", lic.ID).Order("added_at ASC").Find(&domains)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    domains,
		"meta": fiber.Map{
			"max_domains": h.registry.MaxDomains(&lic),
			"used":        len(domains),
		},
	})
}

// RemoveLicenseDomain deletes a binding, freeing its slot
func (h *LicenseHandler) RemoveLicenseDomain(c *fiber.Ctx) error {
	id := c.Params("id")
	domainID := c.Params("domainId")

	result := database.DB.Where("id = ? AND license_id = ?", domainID, id).Delete(&models.LicenseDomain{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to remove domain",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Domain not found",
		})
	}

	database.InvalidateVerificationCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Domain removed",
	})
}

// DeactivateLicenseDomain disables a binding but keeps the row for the
// audit trail. Only active bindings count against the quota, so the slot
// becomes available again.
func (h *LicenseHandler) DeactivateLicenseDomain(c *fiber.Ctx) error {
	id := c.Params("id")
	domainID := c.Params("domainId")

	result := database.DB.Model(&models.LicenseDomain{}).
		Where("id = ? AND license_id = ?", domainID, id).
		Update("status", models.DomainStatusInactive)
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to deactivate domain",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Domain not found",
		})
	}

	database.InvalidateVerificationCache()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Domain deactivated",
	})
}
