package services

import (
	"context"
	"errors"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/notifications"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
)

// Collaborators the services reach through small interfaces so tests can
// swap them for in-memory doubles.

type CheckoutCreator interface {
	Create(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
}

type Mailer interface {
	ReservationConfirmation(ctx context.Context, v notifications.ReservationEmail)
	ReservationReminder(ctx context.Context, v notifications.ReservationEmail)
	BookingConfirmation(ctx context.Context, v notifications.BookingEmail)
	OfferConfirmation(ctx context.Context, v notifications.OfferEmail)
	GiftCardDelivery(ctx context.Context, v notifications.GiftCardEmail)
}

type QRRenderer interface {
	RenderDataURL(content string) (string, error)
}

type QRHost interface {
	HostedQR(ctx context.Context, content, publicID string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind, title, message string, data map[string]string)
}

type ReferralTracker interface {
	TrackPurchase(ctx context.Context, p ReferralPurchase)
}

type Clock func() time.Time

func notFound(err error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(message)
	}
	return err
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, apperrors.Validation("Invalid id: " + s)
	}
	return &id, nil
}
