package handlers

import (
	"github.com/dancehub/marketplace/middleware"
	"github.com/dancehub/marketplace/services"
	"github.com/gofiber/fiber/v2"
)

type UseGiftCardRequest struct {
	CardCode        string  `json:"cardCode" validate:"required"`
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	CustomerID      string  `json:"customerId" validate:"required"`
	CustomerName    string  `json:"customerName" validate:"required"`
	BusinessID      *string `json:"businessId,omitempty"`
	OrderID         *string `json:"orderId,omitempty"`
	BookingID       string  `json:"bookingId,omitempty" validate:"omitempty,uuid"`
	TransactionType string  `json:"transactionType,omitempty"`
}

type CreateGiftCardRequest struct {
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	BusinessID      *string `json:"businessId,omitempty"`
	BusinessName    string  `json:"businessName" validate:"required"`
	AllowPartialUse *bool   `json:"allowPartialUse,omitempty"`
	ExpirationDate  string  `json:"expirationDate,omitempty"`
	RecipientEmail  string  `json:"recipientEmail,omitempty" validate:"omitempty,email"`
	Message         string  `json:"message,omitempty" validate:"max=500"`
}

type UpdateGiftCardRequest struct {
	IsActive       *bool   `json:"isActive,omitempty"`
	ExpirationDate string  `json:"expirationDate,omitempty"`
	RecipientEmail *string `json:"recipientEmail,omitempty" validate:"omitempty,email"`
	Message        *string `json:"message,omitempty"`
}

type PurchaseGiftCardRequest struct {
	Amount         float64 `json:"amount" validate:"required,gt=0,lte=1000"`
	BusinessName   string  `json:"businessName,omitempty"`
	RecipientEmail string  `json:"recipientEmail,omitempty" validate:"omitempty,email"`
	Message        string  `json:"message,omitempty" validate:"max=500"`
	PaymentMethod  string  `json:"paymentMethod,omitempty" validate:"omitempty,oneof=twint card both"`
}

func (h *Handler) UseGiftCard(c *fiber.Ctx) error {
	var req UseGiftCardRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	bookingID, err := optionalID(req.BookingID)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.GiftCards.ValidateAndUse(c.UserContext(), services.UseGiftCardInput{
		CardCode:        req.CardCode,
		Amount:          req.Amount,
		CustomerID:      req.CustomerID,
		CustomerName:    req.CustomerName,
		BusinessID:      req.BusinessID,
		OrderID:         req.OrderID,
		BookingID:       bookingID,
		TransactionType: req.TransactionType,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "result": result})
}

func (h *Handler) LookupGiftCard(c *fiber.Ctx) error {
	var businessID *string
	if b := c.Query("businessId"); b != "" {
		businessID = &b
	}
	card, err := h.GiftCards.Lookup(c.UserContext(), c.Params("code"), businessID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(card)
}

func (h *Handler) CreateGiftCard(c *fiber.Ctx) error {
	issuerID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req CreateGiftCardRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	expires, err := parseDate(req.ExpirationDate)
	if err != nil {
		return h.respondError(c, err)
	}

	card, err := h.GiftCards.Create(c.UserContext(), services.CreateGiftCardInput{
		IssuerID:        issuerID,
		BusinessID:      req.BusinessID,
		BusinessName:    req.BusinessName,
		Amount:          req.Amount,
		AllowPartialUse: req.AllowPartialUse,
		ExpirationDate:  expires,
		RecipientEmail:  req.RecipientEmail,
		Message:         req.Message,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(card)
}

func (h *Handler) UpdateGiftCard(c *fiber.Ctx) error {
	issuerID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req UpdateGiftCardRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}
	expires, err := parseDate(req.ExpirationDate)
	if err != nil {
		return h.respondError(c, err)
	}

	card, err := h.GiftCards.Update(c.UserContext(), issuerID, cardID, services.UpdateGiftCardInput{
		IsActive:       req.IsActive,
		ExpirationDate: expires,
		RecipientEmail: req.RecipientEmail,
		Message:        req.Message,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(card)
}

func (h *Handler) DeleteGiftCard(c *fiber.Ctx) error {
	issuerID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.GiftCards.Delete(c.UserContext(), issuerID, cardID); err != nil {
		return h.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) ListMyGiftCards(c *fiber.Ctx) error {
	issuerID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cards, err := h.GiftCards.ListByIssuer(c.UserContext(), issuerID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(cards)
}

func (h *Handler) GiftCardTransactions(c *fiber.Ctx) error {
	issuerID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	cardID, err := paramID(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	txns, err := h.GiftCards.Transactions(c.UserContext(), issuerID, cardID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(txns)
}

func (h *Handler) PurchaseGiftCard(c *fiber.Ctx) error {
	buyerID, err := currentUser(c)
	if err != nil {
		return h.respondError(c, err)
	}
	var req PurchaseGiftCardRequest
	if err := bind(c, &req); err != nil {
		return h.respondError(c, err)
	}

	session, err := h.GiftCards.Purchase(c.UserContext(), buyerID, middleware.Email(c), services.GiftCardOrder{
		Amount:         req.Amount,
		BusinessName:   req.BusinessName,
		RecipientEmail: req.RecipientEmail,
		Message:        req.Message,
	}, req.PaymentMethod)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(session)
}
