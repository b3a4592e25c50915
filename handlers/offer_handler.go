package handlers

import (
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
)

type OfferOptionRequest struct {
	Label    string  `json:"label" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	Sessions int     `json:"sessions" validate:"gte=0"`
}

type CreateOfferRequest struct {
	Title          string               `json:"title" validate:"required,max=255"`
	Description    string               `json:"description,omitempty"`
	Price          float64              `json:"price" validate:"gte=0"`
	DurationDays   int                  `json:"durationDays" validate:"gte=0"`
	PaymentMethods []string             `json:"paymentMethods,omitempty" validate:"dive,oneof=credit card twint"`
	Options        []OfferOptionRequest `json:"options,omitempty" validate:"dive"`
}

func (h *Handler) CreateOffer(c *fiber.Ctx) error {
	coachID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CreateOfferRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	options := make([]models.OfferOption, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, models.OfferOption{Label: o.Label, Price: o.Price, Sessions: o.Sessions})
	}
	offer, err := h.Offers.Create(c.UserContext(), services.CreateOfferInput{
		CoachID:        coachID,
		Title:          req.Title,
		Description:    req.Description,
		Price:          req.Price,
		DurationDays:   req.DurationDays,
		PaymentMethods: req.PaymentMethods,
		Options:        options,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(offer)
}

func (h *Handler) GetOffer(c *fiber.Ctx) error {
	offerID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	offer, err := h.Offers.Get(c.UserContext(), offerID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(offer)
}

func (h *Handler) ListCoachOffers(c *fiber.Ctx) error {
	coachID, err := paramID(c, "coachId")
	if err != nil {
		return h.respondError(c, err)
	}
	offers, err := h.Offers.ListByCoach(c.UserContext(), coachID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(offers)
}

func (h *Handler) PurchaseOffer(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	offerID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req PurchaseRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	optionID, err := optionalID(req.OptionID)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.Offers.Purchase(c.UserContext(), services.OfferPurchaseInput{
		UserID:        userID,
		OfferID:       offerID,
		OptionID:      optionID,
		PaymentMethod: req.PaymentMethod,
		StripeMethod:  req.StripeMethod,
		ReferralCode:  req.ReferralCode,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	if result.Checkout != nil {
		return c.Status(fiber.StatusAccepted).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *Handler) ListMyOfferPurchases(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	purchases, err := h.Offers.ListMyPurchases(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(purchases)
}
