package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/licensegate/backend/internal/database"
	"github.com/licensegate/backend/internal/models"
)

// ProductHandler serves the admin product API
type ProductHandler struct{}

func NewProductHandler() *ProductHandler {
	return &ProductHandler{}
}

// GetProducts returns all products
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	var products []models.Product
	if err := database.DB.Order("name ASC").Find(&products).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to load products",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
	})
}

// GetProduct returns one product
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// ProductRequest represents product create/update body
type ProductRequest struct {
	Name         string             `json:"name" validate:"required"`
	Slug         string             `json:"slug" validate:"required"`
	Version      string             `json:"version"`
	LicenseType  models.LicenseType `json:"license_type"`
	SupportDays  int                `json:"support_days"`
	EnvatoItemID int64              `json:"envato_item_id"`
	IsActive     *bool              `json:"is_active"`
}

// CreateProduct creates a product
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "name and slug are required",
		})
	}

	product := models.Product{
		Name:         req.Name,
		Slug:         req.Slug,
		Version:      req.Version,
		LicenseType:  req.LicenseType,
		SupportDays:  req.SupportDays,
		EnvatoItemID: req.EnvatoItemID,
		IsActive:     true,
	}
	if product.LicenseType == "" {
		product.LicenseType = models.LicenseTypeSingle
	}
	if product.SupportDays <= 0 {
		product.SupportDays = 365
	}

	if err := database.DB.Create(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to create product",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// UpdateProduct updates a product
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	}

	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if req.Name != "" {
		product.Name = req.Name
	}
	if req.Slug != "" {
		product.Slug = req.Slug
	}
	if req.Version != "" {
		product.Version = req.Version
	}
	if req.LicenseType != "" {
		product.LicenseType = req.LicenseType
	}
	if req.SupportDays > 0 {
		product.SupportDays = req.SupportDays
	}
	if req.EnvatoItemID != 0 {
		product.EnvatoItemID = req.EnvatoItemID
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to update product",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// DeleteProduct removes a product with no licenses attached
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")

	var product models.Product
	if err := database.DB.First(&product, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Product not found",
		})
	}

	var licenseCount int64
	database.DB.Model(&models.License{}).Where("product_id = ?", product.ID).Count(&licenseCount)
	if licenseCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Product has licenses and cannot be deleted",
		})
	}

	if err := database.DB.Delete(&product).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to delete product",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Product deleted",
	})
}
