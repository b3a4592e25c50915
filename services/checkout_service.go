package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CheckoutDeps struct {
	Payments     repository.PaymentRepository
	CheckoutData repository.CheckoutDataRepository
	Starter      *CheckoutStarter
	Bookings     *BookingService
	Tokens       *TokenService
	Offers       *OfferService
	Courses      *CourseService
	GiftCards    *GiftCardService
	Events       events.Emitter
	Log          *logrus.Logger
}

// CheckoutService opens checkouts for the generic payment endpoint and
// settles the sessions reported by the Stripe webhook. A session is
// claimed (pending to processing) before fulfilment and only marked
// completed once the purchase was delivered, so a failed delivery is
// retried on Stripe's next attempt.
type CheckoutService struct {
	CheckoutDeps
	now Clock
}

func NewCheckoutService(deps CheckoutDeps) *CheckoutService {
	return &CheckoutService{CheckoutDeps: deps, now: time.Now}
}

type CheckoutInput struct {
	UserID        uuid.UUID
	Email         string
	Amount        float64
	Description   string
	PaymentMethod string
	Context       *payments.PurchaseContext
}

// Start opens a checkout. Purchases that deliver something are priced by
// the service that sells them; only a context-free payment uses the
// caller's amount.
func (s *CheckoutService) Start(ctx context.Context, in CheckoutInput) (*payments.CheckoutSession, error) {
	pc := in.Context
	if pc == nil || pc.Type == "" {
		return s.Starter.Start(ctx, StartCheckout{
			UserID: in.UserID, Email: in.Email, Amount: in.Amount,
			Description: in.Description, PaymentMethod: in.PaymentMethod,
		})
	}

	required := func(key, raw string) (uuid.UUID, error) {
		id, err := parseOptionalUUID(raw)
		if err != nil {
			return uuid.Nil, err
		}
		if id == nil {
			return uuid.Nil, apperrors.Validation(key + " is required for a " + pc.Type + " checkout")
		}
		return *id, nil
	}

	switch pc.Type {
	case models.PurchaseTypeBooking:
		return nil, apperrors.Validation("Bookings are paid through the booking endpoint")

	case models.PurchaseTypeTokenPackage:
		pkgID, err := required("tokenPackageId", pc.TokenPackageID)
		if err != nil {
			return nil, err
		}
		res, err := s.Tokens.Purchase(ctx, TokenPurchaseInput{
			StudentID: in.UserID, PackageID: pkgID, PaymentMethod: PaymentMethodStripe,
			StripeMethod: in.PaymentMethod, ReferralCode: pc.ReferralCode,
		})
		if err != nil {
			return nil, err
		}
		return res.Checkout, nil

	case models.PurchaseTypeOffer:
		offerID, err := required("offerId", pc.OfferID)
		if err != nil {
			return nil, err
		}
		optionID, err := parseOptionalUUID(pc.OptionID)
		if err != nil {
			return nil, err
		}
		res, err := s.Offers.Purchase(ctx, OfferPurchaseInput{
			UserID: in.UserID, OfferID: offerID, OptionID: optionID, PaymentMethod: PaymentMethodStripe,
			StripeMethod: in.PaymentMethod, ReferralCode: pc.ReferralCode,
		})
		if err != nil {
			return nil, err
		}
		return res.Checkout, nil

	case models.PurchaseTypeBoost:
		courseID, err := required("courseId", pc.CourseID)
		if err != nil {
			return nil, err
		}
		return s.Courses.PurchaseBoost(ctx, in.UserID, courseID, pc.BoostDays, in.PaymentMethod)

	case models.PurchaseTypeGiftCard:
		var order GiftCardOrder
		if err := json.Unmarshal([]byte(pc.CheckoutData), &order); err != nil {
			return nil, apperrors.Validation("Invalid gift card order")
		}
		return s.GiftCards.Purchase(ctx, in.UserID, in.Email, order, in.PaymentMethod)
	}
	return nil, apperrors.Validation("Unknown purchase type: " + pc.Type)
}

func (s *CheckoutService) HandleEvent(ctx context.Context, ev *payments.CheckoutEvent) error {
	logger := s.Log.WithFields(logrus.Fields{"sessionId": ev.SessionID, "type": ev.Metadata["type"], "event": ev.Type})

	payment, err := s.Payments.FindBySession(ctx, ev.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("unknown checkout session ignored")
			return nil
		}
		return err
	}

	if ev.Expired() || !ev.Paid() {
		logger.Info("checkout session closed without payment")
		return s.fail(ctx, ev)
	}

	if !sameAmount(payment.Amount, ev.AmountTotal) {
		logger.WithFields(logrus.Fields{"expected": payment.Amount, "paid": ev.AmountTotal}).
			Error("checkout amount does not match the recorded payment")
		return s.fail(ctx, ev)
	}

	if err := s.Payments.Transition(ctx, ev.SessionID, models.PaymentStatusPending, models.PaymentStatusProcessing); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			logger.Info("checkout session already settled")
			return nil
		}
		return err
	}

	if err := s.fulfil(ctx, ev); err != nil {
		if errors.Is(err, apperrors.ErrCourseFull) || errors.Is(err, apperrors.ErrBookingClosed) {
			logger.WithError(err).Warn("checkout refunded as credit")
			return s.Payments.Transition(ctx, ev.SessionID, models.PaymentStatusProcessing, models.PaymentStatusRefunded)
		}
		logger.WithError(err).Error("checkout fulfilment failed")
		if revertErr := s.Payments.Transition(ctx, ev.SessionID, models.PaymentStatusProcessing, models.PaymentStatusPending); revertErr != nil {
			logger.WithError(revertErr).Error("failed to release checkout session for retry")
		}
		return err
	}
	if err := s.Payments.Transition(ctx, ev.SessionID, models.PaymentStatusProcessing, models.PaymentStatusCompleted); err != nil {
		return err
	}

	logger.WithField("amount", ev.AmountTotal).Info("checkout completed")
	s.Events.Emit(ctx, events.CheckoutCompleted, map[string]any{
		"sessionId": ev.SessionID, "type": ev.Metadata["type"], "amount": ev.AmountTotal,
	})
	return nil
}

// fail closes a pending session and hands back what a pending booking's
// cards absorbed.
func (s *CheckoutService) fail(ctx context.Context, ev *payments.CheckoutEvent) error {
	if err := s.Payments.Transition(ctx, ev.SessionID, models.PaymentStatusPending, models.PaymentStatusFailed); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil
		}
		return err
	}
	if ev.Metadata["type"] != models.PurchaseTypeBooking {
		return nil
	}
	id, err := parseOptionalUUID(ev.Metadata["bookingId"])
	if err != nil || id == nil {
		return apperrors.Validation("Missing booking id in checkout metadata")
	}
	return s.Bookings.ExpireCheckout(ctx, *id)
}

func sameAmount(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}

func (s *CheckoutService) fulfil(ctx context.Context, ev *payments.CheckoutEvent) error {
	meta := ev.Metadata
	userID, err := uuid.Parse(meta["userId"])
	if err != nil {
		return apperrors.Validation("Missing user id in checkout metadata")
	}
	required := func(key string) (uuid.UUID, error) {
		id, err := parseOptionalUUID(meta[key])
		if err != nil {
			return uuid.Nil, err
		}
		if id == nil {
			return uuid.Nil, apperrors.Validation("Missing " + key + " in checkout metadata")
		}
		return *id, nil
	}

	switch meta["type"] {
	case "":
		// Plain payment, nothing to deliver.
		return nil

	case models.PurchaseTypeBooking:
		bookingID, err := required("bookingId")
		if err != nil {
			return err
		}
		_, err = s.Bookings.ConfirmPaid(ctx, bookingID, ev.AmountTotal)
		return err

	case models.PurchaseTypeTokenPackage:
		pkgID, err := required("tokenPackageId")
		if err != nil {
			return err
		}
		_, err = s.Tokens.CompletePurchase(ctx, userID, pkgID, ev.AmountTotal, meta["referralCode"], ev.SessionID)
		return err

	case models.PurchaseTypeOffer:
		offerID, err := required("offerId")
		if err != nil {
			return err
		}
		optionID, err := parseOptionalUUID(meta["optionId"])
		if err != nil {
			return err
		}
		sessionID := ev.SessionID
		_, err = s.Offers.CompletePurchase(ctx, CompleteOfferInput{
			UserID: userID, OfferID: offerID, OptionID: optionID, Amount: ev.AmountTotal,
			PaymentMethod: PaymentMethodStripe, StripeSessionID: &sessionID, ReferralCode: meta["referralCode"],
		})
		return err

	case models.PurchaseTypeBoost:
		courseID, err := required("courseId")
		if err != nil {
			return err
		}
		days, err := strconv.Atoi(meta["boostDays"])
		if err != nil || days < 1 {
			return apperrors.Validation("Invalid boost duration in checkout metadata")
		}
		return s.Courses.ApplyBoost(ctx, courseID, days)

	case models.PurchaseTypeGiftCard:
		dataID, err := required("checkoutDataId")
		if err != nil {
			return err
		}
		data, err := s.CheckoutData.FindValid(ctx, dataID, s.now())
		if err != nil {
			return notFound(err, "Checkout data expired")
		}
		_, err = s.GiftCards.CompletePurchase(ctx, userID, data.Data)
		return err
	}
	return apperrors.Validation("Unknown purchase type: " + meta["type"])
}

// PurgeCheckoutData drops stored checkout payloads whose session has
// expired.
func (s *CheckoutService) PurgeCheckoutData(ctx context.Context) (int64, error) {
	return s.CheckoutData.DeleteExpired(ctx, s.now())
}
