package middleware

import (
	"strings"

	"github.com/dancehub/marketplace/models"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

func Protected(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(secret),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

func claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return nil
	}
	mc, _ := token.Claims.(jwt.MapClaims)
	return mc
}

// UserID returns the authenticated user's id, or uuid.Nil when the request
// carries no valid token.
func UserID(c *fiber.Ctx) uuid.UUID {
	raw, _ := claims(c)["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func Email(c *fiber.Ctx) string {
	email, _ := claims(c)["email"].(string)
	return email
}

func Role(c *fiber.Ctx) string {
	role, _ := claims(c)["role"].(string)
	return role
}

func requireRole(message string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := Role(c)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": message})
	}
}

func AdminRequired() fiber.Handler {
	return requireRole("Forbidden: Admin access required", models.RoleAdmin)
}

// CoachRequired lets coaches through; admins act on behalf of coaches.
func CoachRequired() fiber.Handler {
	return requireRole("Forbidden: Coach access required", models.RoleCoach, models.RoleAdmin)
}
