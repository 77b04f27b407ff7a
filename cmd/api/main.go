package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/licensegate/backend/internal/audit"
	"github.com/licensegate/backend/internal/config"
	"github.com/licensegate/backend/internal/database"
	"github.com/licensegate/backend/internal/envato"
	"github.com/licensegate/backend/internal/handlers"
	"github.com/licensegate/backend/internal/license"
	"github.com/licensegate/backend/internal/middleware"
	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/policy"
	"github.com/licensegate/backend/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := models.AutoMigrate(database.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed admin user if not exists
	seedAdminUser()

	// Wire stores and services
	licenseStore := store.NewGormLicenseStore(database.DB)
	settingStore := store.NewGormSettingStore(database.DB)
	auditStore := store.NewGormAuditStore(database.DB)
	cache := database.NewRedisCache()

	resolver := policy.NewResolver(settingStore, cache)
	auditor := audit.NewAuditor(auditStore)
	envatoClient := envato.NewClient(settingStore, cache, cfg.EnvatoAPIBase,
		time.Duration(cfg.EnvatoTimeoutSeconds)*time.Second)
	registry := license.NewRegistry(licenseStore, resolver)
	verifier := license.NewVerifier(licenseStore, registry, resolver, envatoClient, auditor, cache)

	// Start log retention and license expiry sweeps
	maintenanceStop := make(chan struct{})
	go maintenanceLoop(resolver, auditor, maintenanceStop)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "LicenseGate API v1.0",
		ServerHeader: "LicenseGate",
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "licensegate-api",
		})
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	verifyHandler := handlers.NewVerifyHandler(verifier)
	licenseHandler := handlers.NewLicenseHandler(registry)
	settingsHandler := handlers.NewSettingsHandler(settingStore, resolver, envatoClient)
	logsHandler := handlers.NewLogsHandler(auditor)
	dashboardHandler := handlers.NewDashboardHandler(auditor)
	productHandler := handlers.NewProductHandler()
	userHandler := handlers.NewUserHandler()

	api := app.Group("/api")

	// Public license verification API
	licenseAPI := api.Group("/license", middleware.APITokenRequired(resolver))
	licenseAPI.Post("/verify", middleware.RateLimiter(30, time.Minute), verifyHandler.Verify)
	licenseAPI.Post("/register", middleware.RateLimiter(10, time.Minute), verifyHandler.Register)
	licenseAPI.Post("/status", middleware.RateLimiter(20, time.Minute), verifyHandler.Status)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", middleware.RateLimiter(10, time.Minute), authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg), authHandler.Me)
	auth.Post("/change-password", middleware.AuthRequired(cfg), authHandler.ChangePassword)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthRequired(cfg), middleware.AdminOnly())

	admin.Get("/dashboard", dashboardHandler.GetOverview)

	licenses := admin.Group("/licenses")
	licenses.Get("/", licenseHandler.GetLicenses)
	licenses.Post("/", licenseHandler.CreateLicense)
	licenses.Get("/:id", licenseHandler.GetLicense)
	licenses.Put("/:id", licenseHandler.UpdateLicense)
	licenses.Delete("/:id", licenseHandler.DeleteLicense)
	licenses.Post("/:id/renew", licenseHandler.RenewLicense)
	licenses.Post("/:id/suspend", licenseHandler.SuspendLicense)
	licenses.Post("/:id/reactivate", licenseHandler.ReactivateLicense)
	licenses.Get("/:id/domains", licenseHandler.GetLicenseDomains)
	licenses.Delete("/:id/domains/:domainId", licenseHandler.RemoveLicenseDomain)
	licenses.Post("/:id/domains/:domainId/deactivate", licenseHandler.DeactivateLicenseDomain)
	licenses.Get("/:id/activity", logsHandler.GetLicenseActivity)

	logs := admin.Group("/logs")
	logs.Get("/", logsHandler.GetLogs)
	logs.Get("/stats", logsHandler.GetStats)
	logs.Get("/calls-by-date", logsHandler.GetCallsByDate)
	logs.Get("/status-distribution", logsHandler.GetStatusDistribution)
	logs.Get("/top-domains", logsHandler.GetTopDomains)
	logs.Get("/hourly", logsHandler.GetHourlyDistribution)
	logs.Get("/suspicious", logsHandler.GetSuspiciousActivity)
	logs.Post("/purge", logsHandler.PurgeLogs)

	settings := admin.Group("/settings")
	settings.Get("/", settingsHandler.GetSettings)
	settings.Put("/bulk", settingsHandler.BulkUpdateSettings)
	settings.Post("/envato/test", settingsHandler.TestEnvato)
	settings.Get("/:key", settingsHandler.GetSetting)
	settings.Put("/:key", settingsHandler.UpdateSetting)
	settings.Delete("/:key", settingsHandler.DeleteSetting)

	products := admin.Group("/products")
	products.Get("/", productHandler.GetProducts)
	products.Post("/", productHandler.CreateProduct)
	products.Get("/:id", productHandler.GetProduct)
	products.Put("/:id", productHandler.UpdateProduct)
	products.Delete("/:id", productHandler.DeleteProduct)

	users := admin.Group("/users")
	users.Get("/", userHandler.GetUsers)
	users.Post("/", userHandler.CreateUser)
	users.Put("/:id", userHandler.UpdateUser)
	users.Delete("/:id", userHandler.DeleteUser)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		close(maintenanceStop)
		app.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Printf("Starting LicenseGate API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// maintenanceLoop expires overdue licenses and trims old verification logs
// once a day.
func maintenanceLoop(resolver *policy.Resolver, auditor *audit.Auditor, stop chan struct{}) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	runMaintenance(resolver, auditor)
	for {
		select {
		case <-ticker.C:
			runMaintenance(resolver, auditor)
		case <-stop:
			return
		}
	}
}

func runMaintenance(resolver *policy.Resolver, auditor *audit.Auditor) {
	if resolver.GetBool(policy.KeyAutoSuspend, true) {
		// Lapsed licenses stay active for the grace window before the sweep
		// marks them expired.
		graceDays := resolver.GetInt(policy.KeyExpirationGrace, 7)
		cutoff := time.Now().UTC().AddDate(0, 0, -graceDays)
		result := database.DB.Model(&models.License{}).
			Where("status = ? AND license_expires_at IS NOT NULL AND license_expires_at < ?",
				models.LicenseStatusActive, cutoff).
			Update("status", models.LicenseStatusExpired)
		if result.Error != nil {
			log.Printf("Expiry sweep failed: %v", result.Error)
		} else if result.RowsAffected > 0 {
			log.Printf("Expiry sweep marked %d licenses as expired", result.RowsAffected)
			database.InvalidateVerificationCache()
		}
	}

	retention := resolver.GetInt("log_retention_days", 90)
	if retention > 0 {
		if deleted := auditor.CleanOldLogs(retention); deleted > 0 {
			log.Printf("Log retention removed %d verification logs", deleted)
		}
	}
}

func seedAdminUser() {
	var count int64
	database.DB.Model(&models.User{}).Where("user_type = ?", models.UserTypeAdmin).Count(&count)

	if count == 0 {
		log.Println("Creating default admin user...")

		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)

		admin := models.User{
			Username:            "admin",
			Password:            string(hashedPassword),
			Email:               "admin@licensegate.local",
			FullName:            "System Administrator",
			UserType:            models.UserTypeAdmin,
			ForcePasswordChange: true,
			IsActive:            true,
		}

		if err := database.DB.Create(&admin).Error; err != nil {
			log.Printf("Failed to create admin user: %v", err)
		} else {
			log.Println("Admin user created successfully (username: admin, password: admin123)")
		}
	}
}
