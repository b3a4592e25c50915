package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var classTime = testNow.Add(48 * time.Hour)

func TestResolve_OfferWinsOverTokens(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Salsa Basics", 25, 1, 12)
	m.studentTokens(student.ID, coachID, 10)
	until := testNow.AddDate(0, 1, 0)
	m.offerRepo.purchases = append(m.offerRepo.purchases, models.OfferPurchase{
		ID: uuid.New(), PurchaserID: student.ID, OfferID: uuid.New(), CoachID: &coachID,
		Status: models.OfferPurchaseCompleted, ExpirationDate: &until,
	})

	mode, err := m.resolver.Resolve(context.Background(), student, course)
	require.NoError(t, err)
	assert.Equal(t, ModeSubscription, mode.Mode)
	assert.True(t, mode.Evidence.HasCoachOffer)
	assert.Equal(t, 10, mode.Evidence.TokenBalance)
	assert.NotNil(t, mode.Evidence.TokenPackageID)
}

func TestResolve_OfferForOtherCoachIgnored(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID, otherCoach := uuid.New(), uuid.New()
	course := m.courseRepo.add(coachID, "Salsa Basics", 25, 1, 12)
	m.offerRepo.purchases = append(m.offerRepo.purchases, models.OfferPurchase{
		ID: uuid.New(), PurchaserID: student.ID, CoachID: &otherCoach, Status: models.OfferPurchaseCompleted,
	})

	mode, err := m.resolver.Resolve(context.Background(), student, course)
	require.NoError(t, err)
	assert.Equal(t, ModePayPerSession, mode.Mode)
	assert.False(t, mode.Evidence.HasCoachOffer)
}

func TestResolve_CourseDiscountCardAndTokens(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Salsa Basics", 25, 2, 12)
	ctx := context.Background()

	m.studentTokens(student.ID, coachID, 1)
	mode, err := m.resolver.Resolve(ctx, student, course)
	require.NoError(t, err)
	assert.Equal(t, ModePayPerSession, mode.Mode, "one token cannot cover two sessions")
	assert.Equal(t, 2, mode.Evidence.RequiredTokens)

	m.studentTokens(student.ID, coachID, 4)
	mode, err = m.resolver.Resolve(ctx, student, course)
	require.NoError(t, err)
	assert.Equal(t, ModeTokens, mode.Mode)

	card := m.discountCard(coachID, "FREECLASS", models.AdvantageFree, 0, 1)
	card.CourseID = &course.ID
	mode, err = m.resolver.Resolve(ctx, student, course)
	require.NoError(t, err)
	assert.Equal(t, ModeSubscription, mode.Mode)
	assert.Equal(t, &card.ID, mode.Evidence.DiscountCardID)
}

func TestBook_GiftCardCoversFullPrice(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	course := m.courseRepo.add(uuid.New(), "Kizomba Night", 80, 1, 10)
	card := m.giftCard("GC-GIFT-0000-0080", 80, true)

	res, err := m.bookings.Book(context.Background(), BookInput{
		StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, GiftCardCode: card.Code,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Checkout)
	assert.Equal(t, ModePayPerSession, res.Mode.Mode)

	b := res.Booking
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentStatusCompleted, b.PaymentStatus)
	assert.Zero(t, b.PaymentAmount)
	assert.Equal(t, PaymentMethodGiftCard, b.PaymentMethod)
	assert.Equal(t, 80.0, b.GiftCardAmount)

	stored := m.giftRepo.cards[card.ID]
	assert.Zero(t, stored.RemainingAmount)
	assert.True(t, stored.IsUsed)
	assert.Equal(t, 1, m.courseRepo.seats(course.ID))
	assert.Len(t, m.mailer.bookings, 1)
}

func TestBook_GiftCardPartialThenStripe(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	course := m.courseRepo.add(uuid.New(), "Kizomba Night", 100, 1, 10)
	card := m.giftCard("GC-GIFT-0000-0080", 80, true)
	ctx := context.Background()

	res, err := m.bookings.Book(ctx, BookInput{
		StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, GiftCardCode: card.Code, StripeMethod: "twint",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Checkout)
	assert.Equal(t, models.BookingStatusPendingPayment, res.Booking.Status)
	assert.Equal(t, 20.0, res.Booking.PaymentAmount)
	assert.Zero(t, m.giftRepo.cards[card.ID].RemainingAmount)
	assert.Zero(t, m.courseRepo.seats(course.ID), "seat is taken only once paid")

	req := m.stripe.requests[0]
	assert.Equal(t, 20.0, req.Amount)
	assert.Equal(t, res.Booking.ID.String(), req.PurchaseContext.BookingID)

	confirmed, err := m.bookings.ConfirmPaid(ctx, res.Booking.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, 1, m.courseRepo.seats(course.ID))

	again, err := m.bookings.ConfirmPaid(ctx, res.Booking.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, again.Status)
	assert.Equal(t, 1, m.courseRepo.seats(course.ID))
}

func TestBook_ExpiredCheckoutRefundsCards(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Kizomba Night", 100, 1, 10)
	gift := m.giftCard("GC-GIFT-0000-0030", 30, true)
	discount := m.discountCard(coachID, "TENOFF", models.AdvantagePercentageDiscount, 10, 5)
	ctx := context.Background()

	res, err := m.bookings.Book(ctx, BookInput{
		StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime,
		GiftCardCode: gift.Code, DiscountCardCode: discount.Code,
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, res.Booking.PaymentAmount)
	assert.Equal(t, 10.0, res.Booking.DiscountAmount)
	assert.Equal(t, 1, m.discountRepo.cards[discount.ID].UsageCount)

	require.NoError(t, m.bookings.ExpireCheckout(ctx, res.Booking.ID))
	assert.Equal(t, models.BookingStatusFailed, m.bookingRepo.bookings[res.Booking.ID].Status)
	assert.Equal(t, 30.0, m.giftRepo.cards[gift.ID].RemainingAmount)
	assert.Zero(t, m.discountRepo.cards[discount.ID].UsageCount)

	// A second expiry notice changes nothing.
	require.NoError(t, m.bookings.ExpireCheckout(ctx, res.Booking.ID))
	assert.Equal(t, 30.0, m.giftRepo.cards[gift.ID].RemainingAmount)
}

func TestBook_StripeFailureCompensates(t *testing.T) {
	m := newMarketplace()
	m.stripe.err = apperrors.Integration("Failed to create checkout session", errors.New("boom"))
	student := m.users.add("Ana", "ana@example.com", 0)
	course := m.courseRepo.add(uuid.New(), "Kizomba Night", 100, 1, 10)
	gift := m.giftCard("GC-GIFT-0000-0030", 30, true)

	_, err := m.bookings.Book(context.Background(), BookInput{
		StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, GiftCardCode: gift.Code,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindIntegration, apperrors.KindOf(err))
	assert.Equal(t, 30.0, m.giftRepo.cards[gift.ID].RemainingAmount)
	for _, b := range m.bookingRepo.bookings {
		assert.Equal(t, models.BookingStatusFailed, b.Status)
	}
}

func TestBook_WithTokens(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Tango Block", 30, 3, 10)
	sp := m.studentTokens(student.ID, coachID, 5)

	res, err := m.bookings.Book(context.Background(), BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime})
	require.NoError(t, err)
	assert.Equal(t, ModeTokens, res.Mode.Mode)
	assert.Equal(t, PaymentMethodTokens, res.Booking.PaymentMethod)
	assert.Equal(t, 2, m.tokenRepo.student[sp.ID].RemainingTokens)
	assert.Equal(t, 1, m.courseRepo.seats(course.ID))
}

func TestBook_TokensRestoredWhenCourseFull(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Tango Block", 30, 1, 1)
	sp := m.studentTokens(student.ID, coachID, 5)

	// Seat taken between the capacity check and the insert.
	m.bookingRepo.courses = newMemCourses()
	m.bookingRepo.courses.courses[course.ID] = &models.Course{ID: course.ID, MaxStudents: 1, CurrentStudents: 1}

	_, err := m.bookings.Book(context.Background(), BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime})
	require.ErrorIs(t, err, apperrors.ErrCourseFull)
	assert.Equal(t, 5, m.tokenRepo.student[sp.ID].RemainingTokens)
}

func TestBook_OfferBooksForFree(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Salsa Basics", 25, 1, 12)
	m.offerRepo.purchases = append(m.offerRepo.purchases, models.OfferPurchase{
		ID: uuid.New(), PurchaserID: student.ID, CoachID: &coachID, Status: models.OfferPurchaseCompleted,
	})

	res, err := m.bookings.Book(context.Background(), BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime})
	require.NoError(t, err)
	assert.Equal(t, ModeSubscription, res.Mode.Mode)
	assert.Equal(t, PaymentMethodOffer, res.Booking.PaymentMethod)
	assert.Zero(t, res.Booking.PaymentAmount)
	assert.Empty(t, m.stripe.requests)
}

func TestBook_CreditPayment(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 50)
	course := m.courseRepo.add(uuid.New(), "Salsa Basics", 25, 1, 12)
	ctx := context.Background()

	res, err := m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, PaymentMethod: PaymentMethodCredit})
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodCredit, res.Booking.PaymentMethod)
	assert.Equal(t, 25.0, m.users.users[student.ID].CreditBalance)

	_, err = m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, PaymentMethod: PaymentMethodCredit})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateBooking)

	_, err = m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime.Add(24 * time.Hour), PaymentMethod: PaymentMethodCredit})
	require.NoError(t, err)
	_, err = m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime.Add(48 * time.Hour), PaymentMethod: PaymentMethodCredit})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientCredit)
	assert.Zero(t, m.users.users[student.ID].CreditBalance)
}

func TestBook_Rejections(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	course := m.courseRepo.add(uuid.New(), "Salsa Basics", 25, 1, 1)
	course.CurrentStudents = 1
	ctx := context.Background()

	_, err := m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: testNow.Add(-time.Hour)})
	assert.ErrorIs(t, err, apperrors.ErrScheduleInPast)

	_, err = m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime})
	assert.ErrorIs(t, err, apperrors.ErrCourseFull)

	_, err = m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: uuid.New(), ScheduledDate: classTime})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestBook_UnknownDiscountCardLeavesGiftUntouched(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	course := m.courseRepo.add(uuid.New(), "Salsa Basics", 25, 1, 10)
	gift := m.giftCard("GC-GIFT-0000-0030", 30, true)

	_, err := m.bookings.Book(context.Background(), BookInput{
		StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, GiftCardCode: gift.Code, DiscountCardCode: "NOPE",
	})
	assert.ErrorIs(t, err, apperrors.ErrCardNotFound)
	assert.Equal(t, 30.0, m.giftRepo.cards[gift.ID].RemainingAmount)
	assert.Empty(t, m.bookingRepo.bookings)
}

func TestCancelBooking(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 50)
	course := m.courseRepo.add(uuid.New(), "Salsa Basics", 25, 1, 10)
	ctx := context.Background()

	res, err := m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, PaymentMethod: PaymentMethodCredit})
	require.NoError(t, err)

	_, err = m.bookings.Cancel(ctx, uuid.New(), res.Booking.ID)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	cancelled, err := m.bookings.Cancel(ctx, student.ID, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.Status)
	assert.Zero(t, m.courseRepo.seats(course.ID))

	_, err = m.bookings.Cancel(ctx, student.ID, res.Booking.ID)
	assert.Equal(t, apperrors.KindBusinessRule, apperrors.KindOf(err))
}

func TestBook_GiftCardScopedToAnotherBusiness(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Kizomba Night", 80, 1, 10)
	ctx := context.Background()

	elsewhere := m.giftCard("GC-ELSE-0000-0080", 80, true)
	otherBusiness := "studio-elsewhere"
	elsewhere.BusinessID = &otherBusiness
	elsewhere.BusinessName = "Studio Elsewhere"

	_, err := m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, GiftCardCode: elsewhere.Code})
	require.ErrorIs(t, err, apperrors.ErrBusinessMismatch)
	assert.Contains(t, err.Error(), "can only be used with Studio Elsewhere")
	assert.Equal(t, 80.0, m.giftRepo.cards[elsewhere.ID].RemainingAmount)
	assert.Equal(t, 0, m.courseRepo.seats(course.ID))

	own := m.giftCard("GC-OWN0-0000-0080", 80, true)
	ownBusiness := coachID.String()
	own.BusinessID = &ownBusiness
	res, err := m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, GiftCardCode: own.Code})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, res.Booking.Status)
	assert.Equal(t, 80.0, res.Booking.GiftCardAmount)
}

func TestBook_MalformedReferralCodeIsDropped(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	course := m.courseRepo.add(uuid.New(), "Kizomba Night", 40, 1, 10)

	res, err := m.bookings.Book(context.Background(), BookInput{
		StudentID: student.ID, CourseID: course.ID, ScheduledDate: classTime, ReferralCode: "THIS-CODE-IS-FAR-TOO-LONG",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Booking.ReferralCode)
	require.NotEmpty(t, m.stripe.requests)
	assert.Empty(t, m.stripe.requests[len(m.stripe.requests)-1].PurchaseContext.ReferralCode)
}

func TestBook_SubscriptionCardIsNotRedeemed(t *testing.T) {
	m := newMarketplace()
	student := m.users.add("Ana", "ana@example.com", 0)
	coachID := uuid.New()
	course := m.courseRepo.add(coachID, "Salsa Basics", 25, 1, 12)
	card := m.discountCard(coachID, "FREECLASS", models.AdvantageFree, 0, 1)
	card.CourseID = &course.ID
	ctx := context.Background()

	for _, day := range []time.Time{classTime, classTime.AddDate(0, 0, 7)} {
		res, err := m.bookings.Book(ctx, BookInput{StudentID: student.ID, CourseID: course.ID, ScheduledDate: day})
		require.NoError(t, err)
		assert.Equal(t, ModeSubscription, res.Mode.Mode)
		assert.Equal(t, models.BookingStatusConfirmed, res.Booking.Status)
		assert.Zero(t, res.Booking.PaymentAmount)
		assert.Nil(t, res.Booking.DiscountCardCode)
	}
	assert.Zero(t, m.discountRepo.cards[card.ID].UsageCount)
	assert.Equal(t, 2, m.courseRepo.seats(course.ID))
	assert.Empty(t, m.stripe.requests)
}
