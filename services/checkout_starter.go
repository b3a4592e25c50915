package services

import (
	"context"
	"errors"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	PaymentMethodCredit       = "credit"
	PaymentMethodStripe       = "stripe"
	PaymentMethodTokens       = "tokens"
	PaymentMethodSubscription = "subscription"
	PaymentMethodOffer        = "offer"
	PaymentMethodGiftCard     = "gift-card"
)

type StartCheckout struct {
	UserID        uuid.UUID
	Email         string
	Amount        float64
	Description   string
	PaymentMethod string
	BookingID     *uuid.UUID
	Context       payments.PurchaseContext
}

// CheckoutStarter opens a Stripe session and records the pending payment
// the webhook later settles.
type CheckoutStarter struct {
	builder  CheckoutCreator
	payments repository.PaymentRepository
	log      *logrus.Logger
}

func NewCheckoutStarter(builder CheckoutCreator, payments repository.PaymentRepository, log *logrus.Logger) *CheckoutStarter {
	return &CheckoutStarter{builder: builder, payments: payments, log: log}
}

func (c *CheckoutStarter) Start(ctx context.Context, in StartCheckout) (*payments.CheckoutSession, error) {
	pc := in.Context
	session, err := c.builder.Create(ctx, payments.CheckoutRequest{
		Amount:          in.Amount,
		Description:     in.Description,
		UserID:          in.UserID.String(),
		CustomerEmail:   in.Email,
		PaymentMethod:   in.PaymentMethod,
		PurchaseContext: &pc,
	})
	if err != nil {
		c.log.WithFields(logrus.Fields{"userId": in.UserID, "type": pc.Type, "error": err}).Error("checkout session creation failed")
		return nil, err
	}

	sessionID := session.SessionID
	payment := &models.Payment{
		UserID:            in.UserID,
		BookingID:         in.BookingID,
		PurchaseType:      pc.Type,
		Amount:            in.Amount,
		Currency:          "CHF",
		Provider:          "stripe",
		ProviderSessionID: &sessionID,
		Status:            models.PaymentStatusPending,
	}
	if err := c.payments.Create(ctx, payment); err != nil {
		return nil, apperrors.Integration("Failed to record payment", err)
	}
	c.log.WithFields(logrus.Fields{"userId": in.UserID, "type": pc.Type, "sessionId": sessionID, "fallback": session.TwintFallback}).Info("checkout session created")
	return session, nil
}

func debitCredit(ctx context.Context, users repository.UserRepository, userID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return nil
	}
	if err := users.DebitCredit(ctx, userID, amount); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return apperrors.ErrInsufficientCredit
		}
		return err
	}
	return nil
}
