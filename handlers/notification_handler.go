package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	notifications, err := h.Notifications.List(c.UserContext(), userID, c.QueryBool("unread", false))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(notifications)
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.Notifications.MarkRead(c.UserContext(), userID, id); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) GetMyReferralStats(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	stats, err := h.Referrals.Stats(c.UserContext(), coachID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(stats)
}
