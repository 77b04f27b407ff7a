package middleware

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/database"
	"github.com/licensegate/backend/internal/models"
)

// RateLimitEntry tracks request count per IP
type RateLimitEntry struct {
	Count     int
	ResetTime time.Time
}

// getRateLimitSetting gets the global rate limit override from settings
func getRateLimitSetting() int {
	if database.DB == nil {
		return 0
	}
	var setting models.Setting
	if err := database.DB.Where("key = ?", "api_rate_limit").First(&setting).Error; err != nil {
		return 0
	}
	if val, err := strconv.Atoi(setting.Value); err == nil && val > 0 {
		return val
	}
	return 0
}

// Logger middleware for request logging
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Calculate duration
		duration := time.Since(start)

		// Log the request
		log.Printf(
			"%s | %3d | %13v | %15s | %-7s %s",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Response().StatusCode(),
			duration,
			c.IP(),
			c.Method(),
			c.Path(),
		)

		return err
	}
}

// CORS middleware for cross-origin requests
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-API-Token")
		c.Set("Access-Control-Allow-Credentials", "true")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == "OPTIONS" {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

// RateLimiter middleware for rate limiting (simple implementation).
// Each call builds an independent limiter with its own per-IP counters, so
// endpoints mounted with different budgets do not drain each other.
func RateLimiter(maxRequests int, window time.Duration) fiber.Handler {
	var (
		entries = make(map[string]*RateLimitEntry)
		mu      sync.Mutex
	)

	return func(c *fiber.Ctx) error {
		ip := c.IP()

		// Settings override only ever raises the configured budget
		limit := maxRequests
		if override := getRateLimitSetting(); override > limit {
			limit = override
		}

		mu.Lock()

		entry, exists := entries[ip]
		now := time.Now()

		if !exists || now.After(entry.ResetTime) {
			// New entry or window expired
			entries[ip] = &RateLimitEntry{
				Count:     1,
				ResetTime: now.Add(window),
			}
			mu.Unlock()
			return c.Next()
		}

		if entry.Count >= limit {
			mu.Unlock()
			remaining := int(entry.ResetTime.Sub(now).Seconds())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Rate limit exceeded. Try again in " + strconv.Itoa(remaining) + " seconds",
			})
		}

		entry.Count++
		mu.Unlock()
		return c.Next()
	}
}
