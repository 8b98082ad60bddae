package middleware

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/brickaria/internal/models"
)

// RequireStaff allows only staff users through. Must run after AuthMiddleware.
func RequireStaff(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := GetCurrentUserID(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		var user models.User
		if err := db.Select("id", "is_staff").First(&user, "id = ?", userID).Error; err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		if !user.IsStaff {
			return fiber.NewError(fiber.StatusForbidden, "staff access required")
		}

		return c.Next()
	}
}
