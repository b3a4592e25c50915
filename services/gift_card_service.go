package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/notifications"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/dancehub/marketplace/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type UseGiftCardInput struct {
	CardCode        string
	Amount          float64
	CustomerID      string
	CustomerName    string
	BusinessID      *string
	OrderID         *string
	BookingID       *uuid.UUID
	TransactionType string
}

type GiftCardUse struct {
	Card            *models.GiftCard           `json:"card"`
	AmountApplied   float64                    `json:"amountApplied"`
	AmountDebited   float64                    `json:"amountDebited"`
	RemainingAmount float64                    `json:"remainingAmount"`
	Transaction     models.GiftCardTransaction `json:"transaction"`
}

type CreateGiftCardInput struct {
	IssuerID        uuid.UUID
	BusinessID      *string
	BusinessName    string
	Amount          float64
	AllowPartialUse *bool
	ExpirationDate  *time.Time
	RecipientEmail  string
	Message         string
}

type UpdateGiftCardInput struct {
	IsActive       *bool
	ExpirationDate *time.Time
	RecipientEmail *string
	Message        *string
}

// GiftCardOrder is the checkout payload for a gift card bought online.
type GiftCardOrder struct {
	Amount         float64 `json:"amount"`
	BusinessName   string  `json:"businessName,omitempty"`
	RecipientEmail string  `json:"recipientEmail,omitempty"`
	Message        string  `json:"message,omitempty"`
}

type GiftCardService struct {
	repo     repository.GiftCardRepository
	checkout *CheckoutStarter
	mailer   Mailer
	events   events.Emitter
	log      *logrus.Logger
	now      Clock
}

func NewGiftCardService(repo repository.GiftCardRepository, checkout *CheckoutStarter, mailer Mailer, emitter events.Emitter, log *logrus.Logger) *GiftCardService {
	return &GiftCardService{repo: repo, checkout: checkout, mailer: mailer, events: emitter, log: log, now: time.Now}
}

// Lookup runs the read-only part of the redemption checks and returns the
// card when it could currently be used.
func (s *GiftCardService) Lookup(ctx context.Context, code string, businessID *string) (*models.GiftCard, error) {
	card, err := s.repo.FindByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrCardNotFound.WithMessage("Gift card not found")
		}
		return nil, err
	}
	if !card.IsActive {
		return nil, apperrors.ErrCardInactive.WithMessage("Gift card is not active")
	}
	if card.IsExpired(s.now()) {
		return nil, apperrors.ErrCardExpired.WithMessage("Gift card has expired")
	}
	if card.IsUsed || card.RemainingAmount <= 0 {
		return nil, apperrors.ErrCardUsed
	}
	if card.BusinessID != nil && *card.BusinessID != "" && businessID != nil && *businessID != *card.BusinessID {
		name := card.BusinessName
		if name == "" {
			name = *card.BusinessID
		}
		return nil, apperrors.ErrBusinessMismatch.WithMessage("Gift card can only be used with %s", name)
	}
	return card, nil
}

// ValidateAndUse redeems amount from the card. Full-value cards give up
// their whole remaining balance on first use.
func (s *GiftCardService) ValidateAndUse(ctx context.Context, in UseGiftCardInput) (*GiftCardUse, error) {
	if in.Amount <= 0 {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}
	card, err := s.Lookup(ctx, in.CardCode, in.BusinessID)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromFloat(in.Amount).Round(2)
	remaining := decimal.NewFromFloat(card.RemainingAmount)
	if remaining.LessThan(amount) {
		return nil, apperrors.ErrInsufficientBalance.WithMessage("Insufficient balance: %s remaining", remaining.StringFixed(2))
	}

	debit := amount
	if !card.AllowPartialUse {
		debit = remaining
	}
	txnType := models.GiftCardTxnRedemption
	if card.AllowPartialUse && remaining.GreaterThan(debit) {
		txnType = models.GiftCardTxnPartialRedemption
	}

	txn := &models.GiftCardTransaction{
		Type:            txnType,
		Amount:          debit.InexactFloat64(),
		CustomerID:      in.CustomerID,
		CustomerName:    in.CustomerName,
		BusinessID:      in.BusinessID,
		OrderID:         in.OrderID,
		BookingID:       in.BookingID,
		TransactionType: in.TransactionType,
	}
	updated, err := s.repo.Debit(ctx, card.ID, debit.InexactFloat64(), txn)
	if err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			// Lost a race: report what the card looks like now.
			if _, lookupErr := s.Lookup(ctx, in.CardCode, in.BusinessID); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, apperrors.ErrInsufficientBalance
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"cardId": card.ID, "customerId": in.CustomerID, "amount": txn.Amount, "remaining": updated.RemainingAmount,
	}).Info("gift card redeemed")
	s.events.Emit(ctx, events.GiftCardRedeemed, txn)

	return &GiftCardUse{
		Card:            updated,
		AmountApplied:   amount.InexactFloat64(),
		AmountDebited:   txn.Amount,
		RemainingAmount: updated.RemainingAmount,
		Transaction:     *txn,
	}, nil
}

// Refund credits back a redemption that a failed purchase step left behind.
func (s *GiftCardService) Refund(ctx context.Context, code string, amount float64, bookingID *uuid.UUID) error {
	if amount <= 0 {
		return nil
	}
	card, err := s.repo.FindByCode(ctx, normalizeCode(code))
	if err != nil {
		return notFound(err, "Gift card not found")
	}
	_, err = s.repo.Credit(ctx, card.ID, amount, &models.GiftCardTransaction{
		Type:      models.GiftCardTxnRefund,
		Amount:    amount,
		BookingID: bookingID,
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"cardId": card.ID, "amount": amount}).Info("gift card refunded")
	return nil
}

func (s *GiftCardService) Create(ctx context.Context, in CreateGiftCardInput) (*models.GiftCard, error) {
	if in.Amount <= 0 {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}
	code, err := utils.GenerateGiftCardCode(ctx, s.repo.CodeExists)
	if err != nil {
		return nil, err
	}
	partial := true
	if in.AllowPartialUse != nil {
		partial = *in.AllowPartialUse
	}
	amount := decimal.NewFromFloat(in.Amount).Round(2).InexactFloat64()
	card := &models.GiftCard{
		Code:            code,
		IssuerID:        in.IssuerID,
		BusinessID:      in.BusinessID,
		BusinessName:    in.BusinessName,
		Amount:          amount,
		RemainingAmount: amount,
		IsActive:        true,
		AllowPartialUse: partial,
		ExpirationDate:  in.ExpirationDate,
		RecipientEmail:  strings.TrimSpace(in.RecipientEmail),
		Message:         in.Message,
	}
	if err := s.repo.Create(ctx, card); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"cardId": card.ID, "issuerId": in.IssuerID, "amount": amount}).Info("gift card issued")

	if card.RecipientEmail != "" {
		from := in.BusinessName
		if from == "" {
			from = "Dance Hub"
		}
		s.mailer.GiftCardDelivery(ctx, notifications.GiftCardEmail{
			Email: card.RecipientEmail, From: from, Code: card.Code, Amount: card.Amount, Message: card.Message,
		})
	}
	return card, nil
}

func (s *GiftCardService) owned(ctx context.Context, issuerID, cardID uuid.UUID) (*models.GiftCard, error) {
	card, err := s.repo.FindByID(ctx, cardID)
	if err != nil {
		return nil, notFound(err, "Gift card not found")
	}
	if card.IssuerID != issuerID {
		return nil, apperrors.Forbidden("Only the issuer can modify this gift card")
	}
	return card, nil
}

func (s *GiftCardService) Update(ctx context.Context, issuerID, cardID uuid.UUID, in UpdateGiftCardInput) (*models.GiftCard, error) {
	card, err := s.owned(ctx, issuerID, cardID)
	if err != nil {
		return nil, err
	}
	if in.IsActive != nil {
		card.IsActive = *in.IsActive
	}
	if in.ExpirationDate != nil {
		card.ExpirationDate = in.ExpirationDate
	}
	if in.RecipientEmail != nil {
		card.RecipientEmail = strings.TrimSpace(*in.RecipientEmail)
	}
	if in.Message != nil {
		card.Message = *in.Message
	}
	if err := s.repo.Update(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *GiftCardService) Delete(ctx context.Context, issuerID, cardID uuid.UUID) error {
	if _, err := s.owned(ctx, issuerID, cardID); err != nil {
		return err
	}
	return notFound(s.repo.Delete(ctx, cardID), "Gift card not found")
}

func (s *GiftCardService) ListByIssuer(ctx context.Context, issuerID uuid.UUID) ([]models.GiftCard, error) {
	return s.repo.ListByIssuer(ctx, issuerID)
}

func (s *GiftCardService) Transactions(ctx context.Context, issuerID, cardID uuid.UUID) ([]models.GiftCardTransaction, error) {
	if _, err := s.owned(ctx, issuerID, cardID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, cardID)
}

// Purchase starts a checkout for a gift card. The card is issued by
// CompletePurchase once Stripe reports the payment.
func (s *GiftCardService) Purchase(ctx context.Context, buyerID uuid.UUID, email string, order GiftCardOrder, stripeMethod string) (*payments.CheckoutSession, error) {
	if order.Amount <= 0 {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}
	data, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}
	return s.checkout.Start(ctx, StartCheckout{
		UserID: buyerID, Email: email, Amount: order.Amount, Description: "Gift card",
		PaymentMethod: stripeMethod,
		Context:       payments.PurchaseContext{Type: models.PurchaseTypeGiftCard, CheckoutData: string(data)},
	})
}

func (s *GiftCardService) CompletePurchase(ctx context.Context, buyerID uuid.UUID, rawOrder string) (*models.GiftCard, error) {
	var order GiftCardOrder
	if err := json.Unmarshal([]byte(rawOrder), &order); err != nil {
		return nil, apperrors.Validation("Invalid gift card order")
	}
	return s.Create(ctx, CreateGiftCardInput{
		IssuerID: buyerID, BusinessName: order.BusinessName, Amount: order.Amount,
		RecipientEmail: order.RecipientEmail, Message: order.Message,
	})
}
