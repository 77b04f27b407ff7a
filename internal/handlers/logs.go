package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/audit"
	"github.com/licensegate/backend/internal/database"
	"github.com/licensegate/backend/internal/models"
)

// LogsHandler serves the verification log and analytics API
type LogsHandler struct {
	auditor *audit.Auditor
}

func NewLogsHandler(auditor *audit.Auditor) *LogsHandler {
	return &LogsHandler{auditor: auditor}
}

// logEntry is the list shape: purchase codes are always masked
func logEntry(entry *models.LicenseVerificationLog) fiber.Map {
	return fiber.Map{
		"id":            entry.ID,
		"request_id":    entry.RequestID,
		"purchase_code": entry.MaskedPurchaseCode(),
		"domain":        entry.Domain,
		"ip_address":    entry.IPAddress,
		"is_valid":      entry.IsValid,
		"status":        entry.Status,
		"message":       entry.ResponseMessage,
		"source":        entry.VerificationSource,
		"verified_at":   entry.VerifiedAt,
		"created_at":    entry.CreatedAt,
	}
}

// GetLogs returns paginated verification logs with filters
func (h *LogsHandler) GetLogs(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	status := c.Query("status", "")
	domain := c.Query("domain", "")
	ip := c.Query("ip", "")

	if page < 1 {
		page = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := database.DB.Model(&models.LicenseVerificationLog{})

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if domain != "" {
		query = query.Where("domain ILIKE ?", "%"+domain+"%")
	}
	if ip != "" {
		query = query.Where("ip_address = ?", ip)
	}

	var total int64
	query.Count(&total)

	var logs []models.LicenseVerificationLog
	query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&logs)

	data := make([]fiber.Map, 0, len(logs))
	for i := range logs {
		data = append(data, logEntry(&logs[i]))
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

// GetLicenseActivity returns the per-license activity timeline
func (h *LogsHandler) GetLicenseActivity(c *fiber.Ctx) error {
	id := c.Params("id")
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var lic models.License
	if err := database.DB.First(&lic, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "License not found",
		})
	}

	var logs []models.LicenseLog
	database.DB.Where("license_id = ?", lic.ID).Order("created_at DESC").Limit(limit).Find(&logs)

	data := make([]fiber.Map, 0, len(logs))
	for i := range logs {
		data = append(data, fiber.Map{
			"id":         logs[i].ID,
			"action":     logs[i].Action(),
			"domain":     logs[i].Domain,
			"ip_address": logs[i].IPAddress,
			"status":     logs[i].Status,
			"message":    logs[i].Message(),
			"created_at": logs[i].CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// GetStats returns the verification summary for the last N days
func (h *LogsHandler) GetStats(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 30
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.auditor.Stats(days),
	})
}

// GetCallsByDate returns the daily verification volume
func (h *LogsHandler) GetCallsByDate(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 30
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.auditor.CallsByDate(days),
	})
}

// GetStatusDistribution returns attempt counts per outcome status
func (h *LogsHandler) GetStatusDistribution(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 30
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.auditor.StatusDistribution(days),
	})
}

// GetTopDomains returns the most frequently verified domains
func (h *LogsHandler) GetTopDomains(c *fiber.Ctx) error {
	days := c.QueryInt("days", 30)
	limit := c.QueryInt("limit", 10)
	if days < 1 {
		days = 30
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.auditor.TopDomains(days, limit),
	})
}

// GetHourlyDistribution returns today's verification volume per hour
func (h *LogsHandler) GetHourlyDistribution(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.auditor.HourlyToday(),
	})
}

// GetSuspiciousActivity returns IPs with unusually many recent attempts
func (h *LogsHandler) GetSuspiciousActivity(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	minAttempts := c.QueryInt("min_attempts", 20)
	if hours < 1 {
		hours = 24
	}
	if minAttempts < 1 {
		minAttempts = 20
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.auditor.SuspiciousActivity(hours, minAttempts),
	})
}

// PurgeLogs deletes verification logs older than the retention window
func (h *LogsHandler) PurgeLogs(c *fiber.Ctx) error {
	var req struct {
		Days int `json:"days"`
	}
	if err := c.BodyParser(&req); err != nil || req.Days < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "days must be a positive number",
		})
	}

	deleted := h.auditor.CleanOldLogs(req.Days)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Old logs purged",
		"data": fiber.Map{
			"deleted": deleted,
		},
	})
}
