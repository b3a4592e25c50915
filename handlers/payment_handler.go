package handlers

import (
	"errors"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/middleware"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type SetStripeKeyRequest struct {
	SecretKey string `json:"secretKey" validate:"required"`
}

// CreateCheckoutSession opens a Stripe checkout for the authenticated user.
// A purchase context is priced server-side by the service that sells it.
func (h *Handler) CreateCheckoutSession(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req payments.CheckoutRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if req.PurchaseContext != nil {
		if err := validate.Struct(req.PurchaseContext); err != nil {
			return h.respondError(c, apperrors.Validation(validationMessage(err)))
		}
	}

	email := req.CustomerEmail
	if email == "" {
		email = middleware.Email(c)
	}
	session, err := h.Checkouts.Start(c.UserContext(), services.CheckoutInput{
		UserID:        userID,
		Email:         email,
		Amount:        req.Amount,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Context:       req.PurchaseContext,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(session)
}

// StripeWebhook settles checkouts. Non-2xx responses make Stripe retry, so
// only genuine processing failures return 5xx.
func (h *Handler) StripeWebhook(c *fiber.Ctx) error {
	event, err := h.Verifier.Parse(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrIgnoredEvent) {
			return c.JSON(fiber.Map{"received": true, "ignored": true})
		}
		h.Log.WithError(err).Warn("stripe webhook rejected")
		return h.respondError(c, err)
	}

	if err := h.Checkouts.HandleEvent(c.UserContext(), event); err != nil {
		h.Log.WithFields(logrus.Fields{"sessionId": event.SessionID, "error": err}).Error("stripe webhook processing failed")
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}

func (h *Handler) SetStripeSecretKey(c *fiber.Ctx) error {
	var req SetStripeKeyRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	if err := h.StripeKeys.SetSecretKey(c.UserContext(), req.SecretKey); err != nil {
		return h.respondError(c, err)
	}
	h.Log.WithField("admin", middleware.UserID(c)).Info("stripe secret key updated")
	return c.JSON(fiber.Map{"message": "Stripe secret key saved"})
}
