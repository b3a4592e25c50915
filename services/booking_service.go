package services

import (
	"context"
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

type BookInput struct {
	StudentID        uuid.UUID
	CourseID         uuid.UUID
	ScheduledDate    time.Time
	PaymentMethod    string
	StripeMethod     string
	GiftCardCode     string
	DiscountCardCode string
	ReferralCode     string
}

type BookResult struct {
	Booking  *models.Booking           `json:"booking"`
	Mode     *BookingMode              `json:"mode"`
	Checkout *payments.CheckoutSession `json:"checkout,omitempty"`
}

type BookingDeps struct {
	Bookings  repository.BookingRepository
	Courses   repository.CourseRepository
	Users     repository.UserRepository
	Resolver  *ModeResolver
	Tokens    *TokenService
	GiftCards *GiftCardService
	Discounts *DiscountCardService
	Checkout  *CheckoutStarter
	Notifier  Notifier
	Mailer    Mailer
	Referrals ReferralTracker
	Events    events.Emitter
	Log       *logrus.Logger
}

type BookingService struct {
	BookingDeps
	now Clock
}

func NewBookingService(deps BookingDeps) *BookingService {
	return &BookingService{BookingDeps: deps, now: time.Now}
}

// undoStack collects compensations for debits made earlier in a booking
// attempt; they run in reverse when a later step fails.
type undoStack struct {
	log   *logrus.Entry
	steps []undoStep
}

type undoStep struct {
	name string
	fn   func(context.Context) error
}

func (u *undoStack) push(name string, fn func(context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

func (u *undoStack) run(ctx context.Context) {
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i].fn(ctx); err != nil {
			u.log.WithFields(logrus.Fields{"step": u.steps[i].name, "error": err}).Error("compensation failed")
		}
	}
	u.steps = nil
}

func seatError(err error) error {
	if errors.Is(err, repository.ErrConditionFailed) {
		return apperrors.ErrCourseFull
	}
	return err
}

func (s *BookingService) Book(ctx context.Context, in BookInput) (*BookResult, error) {
	now := s.now()
	if in.ScheduledDate.IsZero() || !in.ScheduledDate.After(now) {
		return nil, apperrors.ErrScheduleInPast
	}
	student, err := s.Users.FindByID(ctx, in.StudentID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	course, err := s.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, notFound(err, "Course not found")
	}
	if course.IsFull() {
		return nil, apperrors.ErrCourseFull
	}
	if _, err := s.Bookings.FindActive(ctx, student.ID, course.ID, in.ScheduledDate); err == nil {
		return nil, apperrors.ErrDuplicateBooking
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	mode, err := s.Resolver.Resolve(ctx, student, course)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ID:            uuid.New(),
		StudentID:     student.ID,
		CourseID:      course.ID,
		CoachID:       course.CoachID,
		ScheduledDate: in.ScheduledDate,
		BookingMode:   mode.Mode,
	}

	log := s.Log.WithFields(logrus.Fields{"bookingId": booking.ID, "studentId": student.ID, "courseId": course.ID, "mode": mode.Mode})
	if code, ok := utils.NormalizeReferralCode(in.ReferralCode); ok {
		booking.ReferralCode = &code
	} else if code != "" {
		log.WithField("referralCode", code).Warn("ignoring malformed referral code")
	}

	var result *BookResult
	switch mode.Mode {
	case ModeSubscription:
		result, err = s.bookCovered(ctx, student, course, booking, mode)
	case ModeTokens:
		result, err = s.bookWithTokens(ctx, student, course, booking, mode)
	default:
		result, err = s.bookPayPerSession(ctx, student, course, booking, mode, in, log)
	}
	if err != nil {
		log.WithError(err).Warn("booking attempt failed")
		return nil, err
	}
	log.WithField("status", result.Booking.Status).Info("booking attempt finished")
	return result, nil
}

func confirm(b *models.Booking, amount float64, method string) {
	b.Status = models.BookingStatusConfirmed
	b.PaymentStatus = models.PaymentStatusCompleted
	b.PaymentAmount = amount
	b.PaymentMethod = method
}

// bookCovered books at no cost under a coach offer or a course discount
// card. The card is evidence only and is not redeemed.
func (s *BookingService) bookCovered(ctx context.Context, student *models.User, course *models.Course, b *models.Booking, mode *BookingMode) (*BookResult, error) {
	method := PaymentMethodDiscountCard
	if mode.Evidence.HasCoachOffer {
		method = PaymentMethodOffer
	}
	confirm(b, 0, method)
	if err := s.Bookings.CreateConfirmed(ctx, b); err != nil {
		return nil, seatError(err)
	}
	s.afterConfirmed(ctx, student, course, b, false)
	return &BookResult{Booking: b, Mode: mode}, nil
}

func (s *BookingService) bookWithTokens(ctx context.Context, student *models.User, course *models.Course, b *models.Booking, mode *BookingMode) (*BookResult, error) {
	pkg, err := s.Tokens.UseForCourse(ctx, student.ID, course, &b.ID)
	if err != nil {
		return nil, err
	}
	confirm(b, 0, PaymentMethodTokens)
	if err := s.Bookings.CreateConfirmed(ctx, b); err != nil {
		if restoreErr := s.Tokens.Restore(ctx, pkg.ID, course.Sessions); restoreErr != nil {
			s.Log.WithFields(logrus.Fields{"bookingId": b.ID, "error": restoreErr}).Error("failed to restore tokens")
		}
		return nil, seatError(err)
	}
	s.afterConfirmed(ctx, student, course, b, false)
	return &BookResult{Booking: b, Mode: mode}, nil
}

func (s *BookingService) bookPayPerSession(ctx context.Context, student *models.User, course *models.Course, b *models.Booking,
	mode *BookingMode, in BookInput, log *logrus.Entry) (*BookResult, error) {
	undo := &undoStack{log: log}
	price := decimal.NewFromFloat(course.TotalPrice).Round(2)
	method := ""

	if strings.TrimSpace(in.DiscountCardCode) != "" {
		res, err := s.Discounts.Redeem(ctx, RedeemDiscountInput{
			Code:          in.DiscountCardCode,
			CustomerID:    student.ID.String(),
			CustomerName:  student.FullName,
			CustomerEmail: student.Email,
			CoachID:       course.CoachID,
			CourseID:      &course.ID,
			OrderAmount:   price.InexactFloat64(),
		})
		if err != nil {
			return nil, err
		}
		code := res.Card.Code
		b.DiscountCardCode = &code
		b.DiscountAmount = res.DiscountAmount
		price = decimal.NewFromFloat(res.FinalAmount)
		method = PaymentMethodDiscountCard
		undo.push("release discount card", func(ctx context.Context) error { return s.Discounts.Release(ctx, code) })
	}

	if strings.TrimSpace(in.GiftCardCode) != "" && price.IsPositive() {
		// A coach's courses are that coach's business.
		business := course.CoachID.String()
		card, err := s.GiftCards.Lookup(ctx, in.GiftCardCode, &business)
		if err != nil {
			undo.run(ctx)
			return nil, err
		}
		apply := decimal.Min(price, decimal.NewFromFloat(card.RemainingAmount))
		use, err := s.GiftCards.ValidateAndUse(ctx, UseGiftCardInput{
			CardCode:        card.Code,
			Amount:          apply.InexactFloat64(),
			CustomerID:      student.ID.String(),
			CustomerName:    student.FullName,
			BusinessID:      &business,
			BookingID:       &b.ID,
			TransactionType: models.PurchaseTypeBooking,
		})
		if err != nil {
			undo.run(ctx)
			return nil, err
		}
		code, debited := card.Code, use.AmountDebited
		b.GiftCardCode = &code
		b.GiftCardAmount = debited
		price = price.Sub(apply)
		method = PaymentMethodGiftCard
		undo.push("refund gift card", func(ctx context.Context) error { return s.GiftCards.Refund(ctx, code, debited, &b.ID) })
	}

	if !price.IsPositive() {
		confirm(b, 0, method)
		if err := s.Bookings.CreateConfirmed(ctx, b); err != nil {
			undo.run(ctx)
			return nil, seatError(err)
		}
		s.afterConfirmed(ctx, student, course, b, true)
		return &BookResult{Booking: b, Mode: mode}, nil
	}

	amount := price.Round(2).InexactFloat64()
	if in.PaymentMethod == PaymentMethodCredit {
		if err := debitCredit(ctx, s.Users, student.ID, amount); err != nil {
			undo.run(ctx)
			return nil, err
		}
		undo.push("refund credit", func(ctx context.Context) error { return s.Users.AddCredit(ctx, student.ID, amount) })
		confirm(b, amount, PaymentMethodCredit)
		if err := s.Bookings.CreateConfirmed(ctx, b); err != nil {
			undo.run(ctx)
			return nil, seatError(err)
		}
		s.afterConfirmed(ctx, student, course, b, true)
		return &BookResult{Booking: b, Mode: mode}, nil
	}

	b.Status = models.BookingStatusPendingPayment
	b.PaymentStatus = models.PaymentStatusPending
	b.PaymentAmount = amount
	b.PaymentMethod = PaymentMethodStripe
	if err := s.Bookings.CreatePending(ctx, b); err != nil {
		undo.run(ctx)
		return nil, err
	}

	pc := payments.PurchaseContext{
		Type:      models.PurchaseTypeBooking,
		CourseID:  course.ID.String(),
		BookingID: b.ID.String(),
	}
	if b.ReferralCode != nil {
		pc.ReferralCode = *b.ReferralCode
	}
	session, err := s.Checkout.Start(ctx, StartCheckout{
		UserID:        student.ID,
		Email:         student.Email,
		Amount:        amount,
		Description:   course.Title,
		PaymentMethod: in.StripeMethod,
		BookingID:     &b.ID,
		Context:       pc,
	})
	if err != nil {
		if markErr := s.Bookings.MarkFailed(ctx, b.ID); markErr != nil {
			log.WithError(markErr).Error("failed to mark booking failed")
		}
		undo.run(ctx)
		return nil, err
	}
	if err := s.Bookings.SetStripeSession(ctx, b.ID, session.SessionID); err != nil {
		log.WithError(err).Warn("failed to attach stripe session to booking")
	}
	b.StripeSessionID = &session.SessionID
	return &BookResult{Booking: b, Mode: mode, Checkout: session}, nil
}

func (s *BookingService) afterConfirmed(ctx context.Context, student *models.User, course *models.Course, b *models.Booking, trackReferral bool) {
	when := b.ScheduledDate.Format("02 Jan 2006 15:04")
	s.Notifier.Notify(ctx, student.ID, models.NotificationBooking, "Booking confirmed",
		"You are booked for "+course.Title+" on "+when,
		map[string]string{"bookingId": b.ID.String(), "courseId": course.ID.String()})
	s.Mailer.BookingConfirmation(ctx, notifications.BookingEmail{
		Name: student.FullName, Email: student.Email, CourseName: course.Title,
		ScheduledDate: b.ScheduledDate, Amount: b.PaymentAmount, PaymentMethod: b.PaymentMethod,
	})
	s.Events.Emit(ctx, events.BookingConfirmed, b)
	if trackReferral && b.ReferralCode != nil {
		s.Referrals.TrackPurchase(ctx, ReferralPurchase{
			Code: *b.ReferralCode, BuyerID: student.ID, CoachID: course.CoachID,
			PurchaseType: models.PurchaseTypeBooking, PurchaseID: b.ID.String(), Amount: b.PaymentAmount,
		})
	}
}

// ConfirmPaid settles a pending booking once Stripe reports the payment.
// Replays for an already confirmed booking are no-ops.
func (s *BookingService) ConfirmPaid(ctx context.Context, bookingID uuid.UUID, amountPaid float64) (*models.Booking, error) {
	log := s.Log.WithField("bookingId", bookingID)
	booking, err := s.Bookings.ConfirmPending(ctx, bookingID, amountPaid)
	if err != nil {
		if !errors.Is(err, repository.ErrConditionFailed) {
			return nil, notFound(err, "Booking not found")
		}
		existing, findErr := s.Bookings.FindByID(ctx, bookingID)
		if findErr != nil {
			return nil, notFound(findErr, "Booking not found")
		}
		if existing.Status == models.BookingStatusConfirmed {
			return existing, nil
		}
		if existing.Status == models.BookingStatusPendingPayment {
			// Paid, but the course filled up in the meantime.
			log.Error("paid booking could not take a seat, refunding as credit")
			if err := s.Bookings.MarkFailed(ctx, bookingID); err != nil {
				log.WithError(err).Error("failed to mark booking failed")
			}
			s.compensateCards(ctx, existing)
			if err := s.Users.AddCredit(ctx, existing.StudentID, amountPaid); err != nil {
				log.WithError(err).Error("failed to credit refund")
			}
			return nil, apperrors.ErrCourseFull
		}
		// Cancelled while the customer was paying.
		log.WithField("status", existing.Status).Warn("payment arrived for a closed booking, refunding as credit")
		if err := s.Users.AddCredit(ctx, existing.StudentID, amountPaid); err != nil {
			log.WithError(err).Error("failed to credit refund")
		}
		return nil, apperrors.ErrBookingClosed
	}

	student, err := s.Users.FindByID(ctx, booking.StudentID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	course, err := s.Courses.FindByID(ctx, booking.CourseID)
	if err != nil {
		return nil, notFound(err, "Course not found")
	}
	s.afterConfirmed(ctx, student, course, booking, true)
	log.Info("paid booking confirmed")
	return booking, nil
}

// ExpireCheckout fails a booking whose checkout was abandoned and hands
// back what its cards absorbed.
func (s *BookingService) ExpireCheckout(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return notFound(err, "Booking not found")
	}
	if err := s.Bookings.MarkFailed(ctx, bookingID); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil
		}
		return err
	}
	s.compensateCards(ctx, booking)
	s.Log.WithField("bookingId", bookingID).Info("booking checkout expired")
	return nil
}

func (s *BookingService) compensateCards(ctx context.Context, b *models.Booking) {
	log := s.Log.WithField("bookingId", b.ID)
	if b.GiftCardCode != nil && b.GiftCardAmount > 0 {
		if err := s.GiftCards.Refund(ctx, *b.GiftCardCode, b.GiftCardAmount, &b.ID); err != nil {
			log.WithError(err).Error("failed to refund gift card")
		}
	}
	if b.DiscountCardCode != nil {
		if err := s.Discounts.Release(ctx, *b.DiscountCardCode); err != nil {
			log.WithError(err).Error("failed to release discount card")
		}
	}
}

// Cancel cancels the student's own booking and frees its seat. Tokens and
// payments already taken are not given back.
func (s *BookingService) Cancel(ctx context.Context, studentID, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := s.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "Booking not found")
	}
	if booking.StudentID != studentID {
		return nil, apperrors.Forbidden("You can only cancel your own bookings")
	}
	previous := booking.Status
	if err := s.Bookings.Cancel(ctx, bookingID); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apperrors.ErrBookingClosed.WithMessage("Booking is already cancelled")
		}
		return nil, err
	}
	if previous == models.BookingStatusPendingPayment {
		s.compensateCards(ctx, booking)
	}
	booking.Status = models.BookingStatusCancelled

	s.Notifier.Notify(ctx, studentID, models.NotificationBooking, "Booking cancelled",
		"Your booking for "+booking.Course.Title+" was cancelled", map[string]string{"bookingId": bookingID.String()})
	s.Events.Emit(ctx, events.BookingCancelled, booking)
	return booking, nil
}

func (s *BookingService) ListMine(ctx context.Context, studentID uuid.UUID) ([]models.Booking, error) {
	return s.Bookings.ListByStudent(ctx, studentID)
}
