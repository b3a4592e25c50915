package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/notifications"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// In-memory repositories. Conditional writes follow the same guards as the
// gorm implementations so rejection paths can be asserted.

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	subs  map[uuid.UUID]*models.Subscription
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uuid.UUID]*models.User{}, subs: map[uuid.UUID]*models.Subscription{}}
}

func (r *memUsers) add(name, email string, credit float64) *models.User {
	u := &models.User{ID: uuid.New(), FullName: name, Email: email, Role: models.RoleStudent, CreditBalance: credit, IsActive: true}
	r.users[u.ID] = u
	return u
}

func (r *memUsers) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) FindByReferralCode(_ context.Context, code string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ReferralCode != nil && *u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUsers) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByReferralCode(ctx, code)
	return err == nil, nil
}

func (r *memUsers) DebitCredit(_ context.Context, userID uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok || u.CreditBalance < amount {
		return repository.ErrConditionFailed
	}
	u.CreditBalance -= amount
	return nil
}

func (r *memUsers) AddCredit(_ context.Context, userID uuid.UUID, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrConditionFailed
	}
	u.CreditBalance += amount
	return nil
}

func (r *memUsers) ActiveSubscription(_ context.Context, userID uuid.UUID, now time.Time) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[userID]
	if !ok || !s.IsActive(now) {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

type memGiftCards struct {
	mu    sync.Mutex
	cards map[uuid.UUID]*models.GiftCard
	txns  []models.GiftCardTransaction
}

func newMemGiftCards() *memGiftCards {
	return &memGiftCards{cards: map[uuid.UUID]*models.GiftCard{}}
}

func (r *memGiftCards) Create(_ context.Context, card *models.GiftCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *memGiftCards) Update(_ context.Context, card *models.GiftCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *memGiftCards) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, id)
	return nil
}

func (r *memGiftCards) FindByID(_ context.Context, id uuid.UUID) (*models.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memGiftCards) FindByCode(_ context.Context, code string) (*models.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memGiftCards) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByCode(ctx, code)
	return err == nil, nil
}

func (r *memGiftCards) ListByIssuer(_ context.Context, issuerID uuid.UUID) ([]models.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GiftCard
	for _, c := range r.cards {
		if c.IssuerID == issuerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memGiftCards) ListTransactions(_ context.Context, cardID uuid.UUID) ([]models.GiftCardTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GiftCardTransaction
	for _, t := range r.txns {
		if t.GiftCardID == cardID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memGiftCards) Debit(_ context.Context, cardID uuid.UUID, amount float64, txn *models.GiftCardTransaction) (*models.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok || !c.IsActive || c.IsUsed || c.RemainingAmount < amount {
		return nil, repository.ErrConditionFailed
	}
	c.RemainingAmount -= amount
	c.UsageAmount += amount
	c.IsUsed = c.RemainingAmount <= 0
	txn.GiftCardID = cardID
	txn.BalanceAfter = c.RemainingAmount
	r.txns = append(r.txns, *txn)
	cp := *c
	return &cp, nil
}

func (r *memGiftCards) Credit(_ context.Context, cardID uuid.UUID, amount float64, txn *models.GiftCardTransaction) (*models.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok || c.UsageAmount < amount {
		return nil, repository.ErrConditionFailed
	}
	c.RemainingAmount += amount
	c.UsageAmount -= amount
	c.IsUsed = false
	txn.GiftCardID = cardID
	txn.BalanceAfter = c.RemainingAmount
	r.txns = append(r.txns, *txn)
	cp := *c
	return &cp, nil
}

type memDiscountCards struct {
	mu     sync.Mutex
	cards  map[uuid.UUID]*models.DiscountCard
	usages []models.DiscountCardUsage
}

func newMemDiscountCards() *memDiscountCards {
	return &memDiscountCards{cards: map[uuid.UUID]*models.DiscountCard{}}
}

func (r *memDiscountCards) Create(_ context.Context, card *models.DiscountCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.Code == card.Code {
			return repository.ErrDuplicate
		}
	}
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *memDiscountCards) Update(_ context.Context, card *models.DiscountCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *card
	r.cards[card.ID] = &cp
	return nil
}

func (r *memDiscountCards) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, id)
	return nil
}

func (r *memDiscountCards) FindByID(_ context.Context, id uuid.UUID) (*models.DiscountCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memDiscountCards) FindByCode(_ context.Context, code string) (*models.DiscountCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memDiscountCards) CodeExists(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByCode(ctx, code)
	return err == nil, nil
}

func (r *memDiscountCards) ListByCoach(_ context.Context, coachID uuid.UUID) ([]models.DiscountCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DiscountCard
	for _, c := range r.cards {
		if c.CoachID == coachID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memDiscountCards) ListForUser(_ context.Context, email string, coachID uuid.UUID) ([]models.DiscountCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DiscountCard
	for _, c := range r.cards {
		if c.CoachID != coachID {
			continue
		}
		if c.UserEmail == nil || strings.EqualFold(*c.UserEmail, email) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memDiscountCards) IncrementUsage(_ context.Context, cardID uuid.UUID, usage *models.DiscountCardUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok || !c.IsActive || (c.UsageLimit != models.UnlimitedUsage && c.UsageCount >= c.UsageLimit) {
		return repository.ErrConditionFailed
	}
	c.UsageCount++
	usage.CardID = cardID
	r.usages = append(r.usages, *usage)
	return nil
}

func (r *memDiscountCards) ReleaseUsage(_ context.Context, cardID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[cardID]
	if !ok || c.UsageCount == 0 {
		return repository.ErrConditionFailed
	}
	c.UsageCount--
	return nil
}

type memTokens struct {
	mu       sync.Mutex
	packages map[uuid.UUID]*models.TokenPackage
	student  map[uuid.UUID]*models.StudentTokenPackage
	txns     []models.TokenTransaction
}

func newMemTokens() *memTokens {
	return &memTokens{packages: map[uuid.UUID]*models.TokenPackage{}, student: map[uuid.UUID]*models.StudentTokenPackage{}}
}

func (r *memTokens) CreatePackage(_ context.Context, pkg *models.TokenPackage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}
	cp := *pkg
	r.packages[pkg.ID] = &cp
	return nil
}

func (r *memTokens) FindPackage(_ context.Context, id uuid.UUID) (*models.TokenPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memTokens) ListPackagesByCoach(_ context.Context, coachID uuid.UUID) ([]models.TokenPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TokenPackage
	for _, p := range r.packages {
		if p.CoachID == coachID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memTokens) ListStudentPackages(_ context.Context, studentID, coachID uuid.UUID) ([]models.StudentTokenPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StudentTokenPackage
	for _, p := range r.student {
		if p.StudentID == studentID && p.CoachID == coachID && p.RemainingTokens > 0 {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memTokens) FindStudentPackage(_ context.Context, studentID, packageID uuid.UUID) (*models.StudentTokenPackage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.student {
		if p.StudentID == studentID && p.PackageID == packageID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTokens) CreateStudentPackage(_ context.Context, sp *models.StudentTokenPackage, txn *models.TokenTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sp
	r.student[sp.ID] = &cp
	r.txns = append(r.txns, *txn)
	return nil
}

func (r *memTokens) AddTokens(_ context.Context, id uuid.UUID, tokens int, expiresAt *time.Time, txn *models.TokenTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.student[id]
	if !ok {
		return repository.ErrConditionFailed
	}
	p.TotalTokens += tokens
	p.RemainingTokens += tokens
	if expiresAt != nil {
		p.ExpiresAt = expiresAt
	}
	r.txns = append(r.txns, *txn)
	return nil
}

func (r *memTokens) Debit(_ context.Context, id uuid.UUID, tokens int, txn *models.TokenTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.student[id]
	if !ok || p.RemainingTokens < tokens {
		return repository.ErrConditionFailed
	}
	p.RemainingTokens -= tokens
	r.txns = append(r.txns, *txn)
	return nil
}

func (r *memTokens) Restore(_ context.Context, id uuid.UUID, tokens int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.student[id]
	if !ok {
		return repository.ErrConditionFailed
	}
	p.RemainingTokens += tokens
	return nil
}

func (r *memTokens) ListTransactions(_ context.Context, studentID uuid.UUID) ([]models.TokenTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TokenTransaction
	for _, t := range r.txns {
		if t.StudentID == studentID {
			out = append(out, t)
		}
	}
	return out, nil
}

type memCourses struct {
	mu        sync.Mutex
	courses   map[uuid.UUID]*models.Course
	schedules map[uuid.UUID]*models.CourseSchedule
}

func newMemCourses() *memCourses {
	return &memCourses{courses: map[uuid.UUID]*models.Course{}, schedules: map[uuid.UUID]*models.CourseSchedule{}}
}

func (r *memCourses) add(coachID uuid.UUID, title string, price float64, sessions, max int) *models.Course {
	c := &models.Course{ID: uuid.New(), CoachID: coachID, Title: title, Price: price, Sessions: sessions,
		TotalPrice: price * float64(sessions), MaxStudents: max, Location: "Studio A"}
	r.courses[c.ID] = c
	return c
}

func (r *memCourses) addSchedule(course *models.Course, start time.Time) *models.CourseSchedule {
	s := &models.CourseSchedule{ID: uuid.New(), CourseID: course.ID, StartTime: start, EndTime: start.Add(time.Hour), Course: *course}
	r.schedules[s.ID] = s
	return s
}

func (r *memCourses) seats(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.courses[id].CurrentStudents
}

func (r *memCourses) Create(_ context.Context, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	course.TotalPrice = course.Price * float64(course.Sessions)
	cp := *course
	r.courses[course.ID] = &cp
	return nil
}

func (r *memCourses) Update(_ context.Context, course *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.courses[course.ID]
	if !ok {
		return repository.ErrNotFound
	}
	seats := existing.CurrentStudents
	cp := *course
	cp.CurrentStudents = seats
	cp.TotalPrice = cp.Price * float64(cp.Sessions)
	r.courses[course.ID] = &cp
	return nil
}

func (r *memCourses) FindByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCourses) List(_ context.Context, filter repository.CourseFilter) ([]models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Course
	for _, c := range r.courses {
		if filter.CoachID != nil && c.CoachID != *filter.CoachID {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *memCourses) CreateSchedule(_ context.Context, s *models.CourseSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	cp.Course = *r.courses[s.CourseID]
	r.schedules[s.ID] = &cp
	return nil
}

func (r *memCourses) FindSchedule(_ context.Context, id uuid.UUID) (*models.CourseSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memCourses) SetBoost(_ context.Context, courseID uuid.UUID, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[courseID]
	if !ok {
		return repository.ErrConditionFailed
	}
	c.IsBoosted = true
	c.BoostedUntil = &until
	return nil
}

func (r *memCourses) ClearExpiredBoosts(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.courses {
		if c.IsBoosted && c.BoostedUntil != nil && c.BoostedUntil.Before(now) {
			c.IsBoosted = false
			c.BoostedUntil = nil
			n++
		}
	}
	return n, nil
}

// Lock order is bookings then courses.
func (r *memCourses) takeSeat(courseID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[courseID]
	if !ok || c.CurrentStudents >= c.MaxStudents {
		return repository.ErrConditionFailed
	}
	c.CurrentStudents++
	return nil
}

func (r *memCourses) freeSeat(courseID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.courses[courseID]; ok && c.CurrentStudents > 0 {
		c.CurrentStudents--
	}
}

type memBookings struct {
	mu       sync.Mutex
	courses  *memCourses
	bookings map[uuid.UUID]*models.Booking
}

func newMemBookings(courses *memCourses) *memBookings {
	return &memBookings{courses: courses, bookings: map[uuid.UUID]*models.Booking{}}
}

func (r *memBookings) CreateConfirmed(_ context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.courses.takeSeat(b.CourseID); err != nil {
		return err
	}
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *memBookings) CreatePending(_ context.Context, b *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func (r *memBookings) ConfirmPending(_ context.Context, id uuid.UUID, amountPaid float64) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != models.BookingStatusPendingPayment {
		return nil, repository.ErrConditionFailed
	}
	if err := r.courses.takeSeat(b.CourseID); err != nil {
		return nil, err
	}
	b.Status = models.BookingStatusConfirmed
	b.PaymentStatus = models.PaymentStatusCompleted
	b.PaymentAmount = amountPaid
	cp := *b
	return &cp, nil
}

func (r *memBookings) SetStripeSession(_ context.Context, id uuid.UUID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return repository.ErrConditionFailed
	}
	b.StripeSessionID = &sessionID
	return nil
}

func (r *memBookings) MarkFailed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != models.BookingStatusPendingPayment {
		return repository.ErrConditionFailed
	}
	b.Status = models.BookingStatusFailed
	b.PaymentStatus = models.PaymentStatusFailed
	return nil
}

func (r *memBookings) Cancel(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status == models.BookingStatusCancelled || b.Status == models.BookingStatusFailed {
		return repository.ErrConditionFailed
	}
	if b.Status == models.BookingStatusConfirmed {
		r.courses.freeSeat(b.CourseID)
	}
	b.Status = models.BookingStatusCancelled
	return nil
}

func (r *memBookings) FindByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *memBookings) FindActive(_ context.Context, studentID, courseID uuid.UUID, at time.Time) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.StudentID == studentID && b.CourseID == courseID && b.ScheduledDate.Equal(at) &&
			b.Status != models.BookingStatusCancelled && b.Status != models.BookingStatusFailed {
			cp := *b
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memBookings) ListByStudent(_ context.Context, studentID uuid.UUID) ([]models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Booking
	for _, b := range r.bookings {
		if b.StudentID == studentID {
			out = append(out, *b)
		}
	}
	return out, nil
}

type memOffers struct {
	mu        sync.Mutex
	offers    map[uuid.UUID]*models.Offer
	purchases []models.OfferPurchase
}

func newMemOffers() *memOffers {
	return &memOffers{offers: map[uuid.UUID]*models.Offer{}}
}

func (r *memOffers) Create(_ context.Context, offer *models.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	cp := *offer
	r.offers[offer.ID] = &cp
	return nil
}

func (r *memOffers) FindByID(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOffers) ListByCoach(_ context.Context, coachID uuid.UUID) ([]models.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Offer
	for _, o := range r.offers {
		if o.CoachID == coachID && o.IsActive {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOffers) CreatePurchase(_ context.Context, p *models.OfferPurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.StripeSessionID != nil {
		for _, existing := range r.purchases {
			if existing.StripeSessionID != nil && *existing.StripeSessionID == *p.StripeSessionID {
				return repository.ErrDuplicate
			}
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.purchases = append(r.purchases, *p)
	return nil
}

func (r *memOffers) ListPurchasesByUser(_ context.Context, userID uuid.UUID) ([]models.OfferPurchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OfferPurchase
	for _, p := range r.purchases {
		if p.PurchaserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memPayments struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newMemPayments() *memPayments {
	return &memPayments{payments: map[string]*models.Payment{}}
}

func (r *memPayments) Create(_ context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[*p.ProviderSessionID] = &cp
	return nil
}

func (r *memPayments) FindBySession(_ context.Context, sessionID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPayments) Transition(_ context.Context, sessionID, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[sessionID]
	if !ok || p.Status != from {
		return repository.ErrConditionFailed
	}
	p.Status = to
	return nil
}

type memCheckoutData struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.CheckoutData
}

func newMemCheckoutData() *memCheckoutData {
	return &memCheckoutData{rows: map[uuid.UUID]*models.CheckoutData{}}
}

func (r *memCheckoutData) Create(_ context.Context, d *models.CheckoutData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.rows[d.ID] = &cp
	return nil
}

func (r *memCheckoutData) FindValid(_ context.Context, id uuid.UUID, now time.Time) (*models.CheckoutData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok || d.ExpiresAt.Before(now) {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memCheckoutData) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, d := range r.rows {
		if d.ExpiresAt.Before(now) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

type memReservations struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*models.HelmetReservation
	codes map[uuid.UUID]*models.UserQRCode
}

func newMemReservations() *memReservations {
	return &memReservations{rows: map[uuid.UUID]*models.HelmetReservation{}, codes: map[uuid.UUID]*models.UserQRCode{}}
}

func (r *memReservations) Create(_ context.Context, res *models.HelmetReservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.UserID == res.UserID && existing.ScheduleID == res.ScheduleID && existing.Status != models.ReservationCancelled {
			return repository.ErrDuplicate
		}
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.Status == "" {
		res.Status = models.ReservationBooked
	}
	cp := *res
	r.rows[res.ID] = &cp
	return nil
}

func (r *memReservations) FindByID(_ context.Context, id uuid.UUID) (*models.HelmetReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *memReservations) FindActive(_ context.Context, userID, scheduleID uuid.UUID) (*models.HelmetReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.rows {
		if res.UserID == userID && res.ScheduleID == scheduleID && res.Status != models.ReservationCancelled {
			cp := *res
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memReservations) ListByUser(_ context.Context, userID uuid.UUID) ([]models.HelmetReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HelmetReservation
	for _, res := range r.rows {
		if res.UserID == userID {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memReservations) ListBySchedule(_ context.Context, scheduleID uuid.UUID) ([]models.HelmetReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HelmetReservation
	for _, res := range r.rows {
		if res.ScheduleID == scheduleID && res.Status != models.ReservationCancelled {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memReservations) UpdateStatus(_ context.Context, id uuid.UUID, from, to string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[id]
	if !ok || res.Status != from {
		return repository.ErrConditionFailed
	}
	res.Status = to
	switch to {
	case models.ReservationCancelled:
		res.CancelledAt = &at
	case models.ReservationCheckedIn:
		res.CheckedInAt = &at
	}
	return nil
}

func (r *memReservations) ListDueForReminder(_ context.Context, from, to time.Time) ([]models.HelmetReservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.HelmetReservation
	for _, res := range r.rows {
		if res.Status == models.ReservationBooked && res.ReminderSentAt == nil &&
			!res.StartTime.Before(from) && !res.StartTime.After(to) {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *memReservations) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.rows[id]; ok {
		res.ReminderSentAt = &at
	}
	return nil
}

func (r *memReservations) MarkNoShows(_ context.Context, endedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, res := range r.rows {
		if res.Status == models.ReservationBooked && res.EndTime.Before(endedBefore) {
			res.Status = models.ReservationNoShow
			n++
		}
	}
	return n, nil
}

func (r *memReservations) FindQRCode(_ context.Context, userID uuid.UUID) (*models.UserQRCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qr, ok := r.codes[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *qr
	return &cp, nil
}

func (r *memReservations) FindQRCodeByData(_ context.Context, data string) (*models.UserQRCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, qr := range r.codes {
		if qr.QRCodeData == data {
			cp := *qr
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memReservations) CreateQRCode(_ context.Context, qr *models.UserQRCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[qr.UserID]; ok {
		return repository.ErrDuplicate
	}
	cp := *qr
	r.codes[qr.UserID] = &cp
	return nil
}

// Collaborator doubles.

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ uuid.UUID, kind, _, _ string, _ map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

type recordingMailer struct {
	mu           sync.Mutex
	reservations []notifications.ReservationEmail
	reminders    []notifications.ReservationEmail
	bookings     []notifications.BookingEmail
	offers       []notifications.OfferEmail
	giftCards    []notifications.GiftCardEmail
}

func (m *recordingMailer) ReservationConfirmation(_ context.Context, v notifications.ReservationEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations = append(m.reservations, v)
}

func (m *recordingMailer) ReservationReminder(_ context.Context, v notifications.ReservationEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders = append(m.reminders, v)
}

func (m *recordingMailer) BookingConfirmation(_ context.Context, v notifications.BookingEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, v)
}

func (m *recordingMailer) OfferConfirmation(_ context.Context, v notifications.OfferEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers = append(m.offers, v)
}

func (m *recordingMailer) GiftCardDelivery(_ context.Context, v notifications.GiftCardEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.giftCards = append(m.giftCards, v)
}

type recordingReferrals struct {
	mu        sync.Mutex
	purchases []ReferralPurchase
}

func (r *recordingReferrals) TrackPurchase(_ context.Context, p ReferralPurchase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purchases = append(r.purchases, p)
}

type stubQR struct{}

func (stubQR) RenderDataURL(content string) (string, error) {
	return "data:image/png;base64," + content, nil
}

func (stubQR) HostedQR(_ context.Context, content, _ string) (string, error) {
	return "data:image/png;base64," + content, nil
}

type fakeCheckout struct {
	mu       sync.Mutex
	requests []payments.CheckoutRequest
	err      error
}

func (f *fakeCheckout) Create(_ context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	id := "cs_test_" + uuid.NewString()[:8]
	return &payments.CheckoutSession{SessionID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

// marketplace wires every service against in-memory storage.
type marketplace struct {
	users        *memUsers
	giftRepo     *memGiftCards
	discountRepo *memDiscountCards
	tokenRepo    *memTokens
	courseRepo   *memCourses
	bookingRepo  *memBookings
	offerRepo    *memOffers
	paymentRepo  *memPayments
	dataRepo     *memCheckoutData
	reserveRepo  *memReservations

	stripe    *fakeCheckout
	notifier  *recordingNotifier
	mailer    *recordingMailer
	referrals *recordingReferrals

	gifts        *GiftCardService
	discounts    *DiscountCardService
	tokens       *TokenService
	offers       *OfferService
	courses      *CourseService
	resolver     *ModeResolver
	bookings     *BookingService
	checkouts    *CheckoutService
	reservations *ReservationService
}

func newMarketplace() *marketplace {
	log := quietLogger()
	m := &marketplace{
		users:        newMemUsers(),
		giftRepo:     newMemGiftCards(),
		discountRepo: newMemDiscountCards(),
		tokenRepo:    newMemTokens(),
		courseRepo:   newMemCourses(),
		offerRepo:    newMemOffers(),
		paymentRepo:  newMemPayments(),
		dataRepo:     newMemCheckoutData(),
		reserveRepo:  newMemReservations(),
		stripe:       &fakeCheckout{},
		notifier:     &recordingNotifier{},
		mailer:       &recordingMailer{},
		referrals:    &recordingReferrals{},
	}
	m.bookingRepo = newMemBookings(m.courseRepo)
	emitter := events.Discard{}
	starter := NewCheckoutStarter(m.stripe, m.paymentRepo, log)

	m.gifts = NewGiftCardService(m.giftRepo, starter, m.mailer, emitter, log)
	m.gifts.now = fixedClock
	m.discounts = NewDiscountCardService(m.discountRepo, stubQR{}, emitter, log)
	m.discounts.now = fixedClock
	m.tokens = NewTokenService(m.tokenRepo, m.users, starter, m.notifier, m.referrals, emitter, log)
	m.tokens.now = fixedClock
	m.offers = NewOfferService(m.offerRepo, m.users, starter, m.notifier, m.mailer, m.referrals, emitter, log)
	m.offers.now = fixedClock
	m.courses = NewCourseService(m.courseRepo, starter, log)
	m.courses.now = fixedClock
	m.resolver = NewModeResolver(m.users, m.offerRepo, m.discountRepo, m.tokens)
	m.resolver.now = fixedClock
	m.bookings = NewBookingService(BookingDeps{
		Bookings: m.bookingRepo, Courses: m.courseRepo, Users: m.users, Resolver: m.resolver,
		Tokens: m.tokens, GiftCards: m.gifts, Discounts: m.discounts, Checkout: starter,
		Notifier: m.notifier, Mailer: m.mailer, Referrals: m.referrals, Events: emitter, Log: log,
	})
	m.bookings.now = fixedClock
	m.checkouts = NewCheckoutService(CheckoutDeps{
		Payments: m.paymentRepo, CheckoutData: m.dataRepo, Starter: starter, Bookings: m.bookings, Tokens: m.tokens,
		Offers: m.offers, Courses: m.courses, GiftCards: m.gifts, Events: emitter, Log: log,
	})
	m.checkouts.now = fixedClock
	m.reservations = NewReservationService(m.reserveRepo, m.courseRepo, m.users, stubQR{}, m.notifier, m.mailer, emitter, log)
	m.reservations.now = fixedClock
	return m
}

func (m *marketplace) giftCard(code string, amount float64, partial bool) *models.GiftCard {
	c := &models.GiftCard{ID: uuid.New(), Code: code, IssuerID: uuid.New(), Amount: amount, RemainingAmount: amount,
		IsActive: true, AllowPartialUse: partial}
	m.giftRepo.cards[c.ID] = c
	return c
}

func (m *marketplace) discountCard(coachID uuid.UUID, code, advantage string, value float64, limit int) *models.DiscountCard {
	c := &models.DiscountCard{ID: uuid.New(), Code: code, CoachID: coachID, AdvantageType: advantage,
		Value: value, UsageLimit: limit, IsActive: true}
	m.discountRepo.cards[c.ID] = c
	return c
}

func (m *marketplace) studentTokens(studentID, coachID uuid.UUID, tokens int) *models.StudentTokenPackage {
	pkg := &models.TokenPackage{ID: uuid.New(), CoachID: coachID, Name: "10 classes", Tokens: tokens, Price: 150, IsActive: true}
	m.tokenRepo.packages[pkg.ID] = pkg
	sp := &models.StudentTokenPackage{ID: uuid.New(), StudentID: studentID, PackageID: pkg.ID, CoachID: coachID,
		TotalTokens: tokens, RemainingTokens: tokens, PurchasedAt: testNow}
	m.tokenRepo.student[sp.ID] = sp
	return sp
}
