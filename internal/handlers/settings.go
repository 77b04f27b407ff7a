package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/envato"
	"github.com/licensegate/backend/internal/policy"
	"github.com/licensegate/backend/internal/store"
)

// Keys whose values are never echoed back in full
var secretSettingKeys = map[string]bool{
	policy.KeyAPIToken:            true,
	policy.KeyEnvatoPersonalToken: true,
	policy.KeyEnvatoClientSecret:  true,
}

// SettingsHandler serves the admin settings API
type SettingsHandler struct {
	settings store.SettingStore
	resolver *policy.Resolver
	envato   *envato.Client
}

func NewSettingsHandler(settings store.SettingStore, resolver *policy.Resolver, envatoClient *envato.Client) *SettingsHandler {
	return &SettingsHandler{settings: settings, resolver: resolver, envato: envatoClient}
}

func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "****" + value[len(value)-4:]
}

// invalidate clears every cache layer affected by a settings write
func (h *SettingsHandler) invalidate(key string) {
	h.resolver.Clear(key)
	if strings.HasPrefix(key, "envato_") {
		h.envato.InvalidateCache()
	}
}

// GetSettings returns all settings; secret values are masked
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.All()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load settings",
		})
	}

	data := make([]fiber.Map, 0, len(settings))
	for _, s := range settings {
		value := s.Value
		if secretSettingKeys[s.Key] && value != "" {
			value = maskSecret(value)
		}
		data = append(data, fiber.Map{
			"key":        s.Key,
			"value":      value,
			"value_type": s.ValueType,
			"updated_at": s.UpdatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// GetSetting returns a single setting by key
func (h *SettingsHandler) GetSetting(c *fiber.Ctx) error {
	key := c.Params("key")

	value, err := h.settings.Value(key)
	if err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Setting not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load setting",
		})
	}

	if secretSettingKeys[key] && value != "" {
		value = maskSecret(value)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"key":   key,
			"value": value,
		},
	})
}

// UpdateSettingRequest represents a single setting write
type UpdateSettingRequest struct {
	Value     string `json:"value"`
	ValueType string `json:"value_type"`
}

// UpdateSetting upserts one setting and invalidates the affected caches
func (h *SettingsHandler) UpdateSetting(c *fiber.Ctx) error {
	key := c.Params("key")

	var req UpdateSettingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	valueType := req.ValueType
	if valueType == "" {
		valueType = "string"
	}

	if err := h.settings.Upsert(key, req.Value, valueType); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to save setting",
		})
	}

	h.invalidate(key)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Setting saved",
	})
}

// BulkUpdateSettings upserts multiple settings in one call
func (h *SettingsHandler) BulkUpdateSettings(c *fiber.Ctx) error {
	var req struct {
		Settings map[string]string `json:"settings"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.Settings) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	for key, value := range req.Settings {
		if err := h.settings.Upsert(key, value, "string"); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to save setting " + key,
			})
		}
	}

	h.resolver.ClearAll()
	for key := range req.Settings {
		if strings.HasPrefix(key, "envato_") {
			h.envato.InvalidateCache()
			break
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Settings saved",
	})
}

// DeleteSetting removes a setting; reads fall back to defaults afterwards
func (h *SettingsHandler) DeleteSetting(c *fiber.Ctx) error {
	key := c.Params("key")

	if err := h.settings.Delete(key); err != nil {
		if err == store.ErrNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Setting not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete setting",
		})
	}

	h.invalidate(key)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Setting deleted",
	})
}

// TestEnvato checks whether the marketplace credentials are usable
func (h *SettingsHandler) TestEnvato(c *fiber.Ctx) error {
	if !h.envato.IsConfigured() {
		return c.JSON(fiber.Map{
			"success": false,
			"message": "Envato credentials are not configured",
		})
	}

	var req struct {
		PurchaseCode string `json:"purchase_code"`
	}
	if err := c.BodyParser(&req); err != nil || req.PurchaseCode == "" {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Envato credentials are configured",
		})
	}

	sale, err := h.envato.VerifyPurchase(req.PurchaseCode)
	if err != nil {
		status := "Marketplace request failed"
		if err == envato.ErrPurchaseNotFound {
			status = "Purchase code not found on the marketplace"
		}
		return c.JSON(fiber.Map{
			"success": false,
			"message": status,
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Purchase code confirmed",
		"data":    sale,
	})
}
