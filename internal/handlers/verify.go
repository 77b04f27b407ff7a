package handlers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/license"
)

var validate = validator.New()

// VerifyHandler serves the public license verification API
type VerifyHandler struct {
	verifier *license.Verifier
}

func NewVerifyHandler(verifier *license.Verifier) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

// VerifyRequest is the body shared by verify, register and status
type VerifyRequest struct {
	LicenseKey string `json:"license_key" validate:"required,min=8,max=64"`
	Domain     string `json:"domain" validate:"required,min=1,max=255"`
}

func (h *VerifyHandler) parseRequest(c *fiber.Ctx) (*license.Request, error) {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "license_key and domain are required",
		})
	}

	return &license.Request{
		LicenseKey: strings.TrimSpace(req.LicenseKey),
		Domain:     req.Domain,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
		Source:     "api",
		ViaProxy:   len(c.IPs()) > 1,
	}, nil
}

// Verify handles POST /api/license/verify
func (h *VerifyHandler) Verify(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	out := h.verifier.Verify(*req)
	return c.Status(statusFor(out)).JSON(fiber.Map{
		"success": out.Valid,
		"data":    out,
	})
}

// Register handles POST /api/license/register. Same state machine as
// verify; the response focuses on the slot that was consumed.
func (h *VerifyHandler) Register(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	out := h.verifier.Register(*req)
	return c.Status(statusFor(out)).JSON(fiber.Map{
		"success": out.Valid,
		"data": fiber.Map{
			"valid":           out.Valid,
			"reason":          out.Reason,
			"message":         out.Message,
			"domain":          out.Domain,
			"slot_used":       out.SlotUsed,
			"slots_remaining": out.SlotsRemaining,
			"max_domains":     out.MaxDomains,
		},
	})
}

// Status handles POST /api/license/status: read-only, no registration side
// effects and no last-used updates.
func (h *VerifyHandler) Status(c *fiber.Ctx) error {
	req, err := h.parseRequest(c)
	if err != nil {
		return err
	}

	out := h.verifier.Status(*req)
	return c.Status(statusFor(out)).JSON(fiber.Map{
		"success": out.Valid,
		"data":    out,
	})
}

// statusFor maps an outcome to an HTTP status. Expected negatives are 200
// with valid=false so integrators can branch on the body alone; only abuse
// lockouts and storage faults surface as HTTP errors.
func statusFor(out license.Outcome) int {
	switch out.Reason {
	case license.ReasonRateLimited:
		return fiber.StatusTooManyRequests
	case license.ReasonStorageError:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusOK
	}
}
