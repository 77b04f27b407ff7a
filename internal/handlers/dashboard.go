package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/audit"
	"github.com/licensegate/backend/internal/database"
	"github.com/licensegate/backend/internal/models"
)

// DashboardHandler serves the admin overview
type DashboardHandler struct {
	auditor *audit.Auditor
}

func NewDashboardHandler(auditor *audit.Auditor) *DashboardHandler {
	return &DashboardHandler{auditor: auditor}
}

// GetOverview returns license counts and verification activity in one call
func (h *DashboardHandler) GetOverview(c *fiber.Ctx) error {
	var totalLicenses, activeLicenses, expiredLicenses, suspendedLicenses int64
	database.DB.Model(&models.License{}).Count(&totalLicenses)
	database.DB.Model(&models.License{}).Where("status = ?", models.LicenseStatusActive).Count(&activeLicenses)
	database.DB.Model(&models.License{}).Where("status = ?", models.LicenseStatusExpired).Count(&expiredLicenses)
	database.DB.Model(&models.License{}).Where("status = ?", models.LicenseStatusSuspended).Count(&suspendedLicenses)

	var totalDomains int64
	database.DB.Model(&models.LicenseDomain{}).Where("status = ?", models.DomainStatusActive).Count(&totalDomains)

	recent := h.auditor.RecentAttempts(10)
	recentData := make([]fiber.Map, 0, len(recent))
	for i := range recent {
		recentData = append(recentData, logEntry(&recent[i]))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"licenses": fiber.Map{
				"total":     totalLicenses,
				"active":    activeLicenses,
				"expired":   expiredLicenses,
				"suspended": suspendedLicenses,
			},
			"active_domains":  totalDomains,
			"verification":    h.auditor.Stats(30),
			"calls_by_date":   h.auditor.CallsByDate(14),
			"hourly_today":    h.auditor.HourlyToday(),
			"recent_attempts": recentData,
		},
	})
}
