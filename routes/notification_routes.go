package routes

import (
	"github.com/dancehub/marketplace/handlers"
	"github.com/dancehub/marketplace/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func NotificationRoutes(api fiber.Router, h *handlers.Handler, protected fiber.Handler) {
	notifications := api.Group("/notifications", protected)
	notifications.Get("", h.ListNotifications)
	notifications.Post("/:id/read", h.MarkNotificationRead)

	api.Get("/referrals/stats/me", protected, middleware.CoachRequired(), h.GetMyReferralStats)

	api.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	api.Get("/ws/notifications", websocket.New(h.ServeNotifications))
}
