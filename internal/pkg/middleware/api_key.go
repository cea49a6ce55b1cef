package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
)

// CustomerContextKey is the Locals key holding the authenticated customer.
const CustomerContextKey = "CUSTOMER"

// APIKeyAuthMiddleware authenticates requests carrying a customer API key
// header and stores the resolved customer in the request locals.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetCustomerRepository()
		customer, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if !customer.IsActive() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Customer suspended"})
		}

		c.Locals(CustomerContextKey, customer)
		return c.Next()
	}
}

// CustomerFromContext returns the customer stored by APIKeyAuthMiddleware.
func CustomerFromContext(c *fiber.Ctx) *models.Customer {
	customer, _ := c.Locals(CustomerContextKey).(*models.Customer)
	return customer
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
