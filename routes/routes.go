package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

// Setup mounts every route group under /api/v1.
func Setup(app *fiber.App, h *handlers.Handler) {
	api := app.Group("/api/v1")
	protected := middleware.Protected(h.JWTSecret)

	PublicRoutes(api, h)
	AuthRoutes(api, h, protected)
	CourseRoutes(api, h, protected)
	BookingRoutes(api, h, protected)
	CardRoutes(api, h, protected)
	TokenRoutes(api, h, protected)
	OfferRoutes(api, h, protected)
	ReservationRoutes(api, h, protected)
	PaymentRoutes(api, h, protected)
	NotificationRoutes(api, h, protected)
	UploadRoutes(api, h, protected)
	AdminRoutes(api, h, protected)
}
