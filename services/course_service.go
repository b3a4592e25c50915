package services

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BoostPricePerDay is what a coach pays per day of boosted placement.
const BoostPricePerDay = 5.0

type CourseInput struct {
	Title       string
	Description string
	DanceStyle  string
	Location    string
	ImageURL    *string
	Price       float64
	Sessions    int
	MaxStudents int
}

type ScheduleInput struct {
	StartTime time.Time
	EndTime   time.Time
	Location  string
}

type CourseService struct {
	courses  repository.CourseRepository
	checkout *CheckoutStarter
	log      *logrus.Logger
	now      Clock
}

func NewCourseService(courses repository.CourseRepository, checkout *CheckoutStarter, log *logrus.Logger) *CourseService {
	return &CourseService{courses: courses, checkout: checkout, log: log, now: time.Now}
}

func validateCourse(in CourseInput) error {
	if in.Price < 0 {
		return apperrors.Validation("Price cannot be negative")
	}
	if in.MaxStudents < 1 {
		return apperrors.Validation("Max students must be at least 1")
	}
	return nil
}

func (s *CourseService) Create(ctx context.Context, coachID uuid.UUID, in CourseInput) (*models.Course, error) {
	if err := validateCourse(in); err != nil {
		return nil, err
	}
	course := &models.Course{
		CoachID: coachID, Title: in.Title, Description: in.Description, DanceStyle: in.DanceStyle,
		Location: in.Location, ImageURL: in.ImageURL, Price: in.Price, Sessions: in.Sessions, MaxStudents: in.MaxStudents,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) owned(ctx context.Context, coachID, courseID uuid.UUID) (*models.Course, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.CoachID != coachID {
		return nil, apperrors.Forbidden("You can only manage your own courses")
	}
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, coachID, courseID uuid.UUID, in CourseInput) (*models.Course, error) {
	if err := validateCourse(in); err != nil {
		return nil, err
	}
	course, err := s.owned(ctx, coachID, courseID)
	if err != nil {
		return nil, err
	}
	if in.MaxStudents < course.CurrentStudents {
		return nil, apperrors.Validation("Max students cannot be lower than the number of enrolled students")
	}
	course.Title, course.Description, course.DanceStyle = in.Title, in.Description, in.DanceStyle
	course.Location, course.ImageURL = in.Location, in.ImageURL
	course.Price, course.Sessions, course.MaxStudents = in.Price, in.Sessions, in.MaxStudents
	if err := s.courses.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "Course not found")
	}
	return course, nil
}

func (s *CourseService) List(ctx context.Context, filter repository.CourseFilter) ([]models.Course, error) {
	return s.courses.List(ctx, filter)
}

func (s *CourseService) AddSchedule(ctx context.Context, coachID, courseID uuid.UUID, in ScheduleInput) (*models.CourseSchedule, error) {
	course, err := s.owned(ctx, coachID, courseID)
	if err != nil {
		return nil, err
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, apperrors.Validation("End time must be after start time")
	}
	if !in.StartTime.After(s.now()) {
		return nil, apperrors.ErrScheduleInPast
	}
	schedule := &models.CourseSchedule{CourseID: course.ID, StartTime: in.StartTime, EndTime: in.EndTime, Location: in.Location}
	if schedule.Location == "" {
		schedule.Location = course.Location
	}
	if err := s.courses.CreateSchedule(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// PurchaseBoost starts a checkout for boosted placement of a course.
func (s *CourseService) PurchaseBoost(ctx context.Context, coachID, courseID uuid.UUID, days int, stripeMethod string) (*payments.CheckoutSession, error) {
	if days < 1 || days > 90 {
		return nil, apperrors.Validation("Boost duration must be between 1 and 90 days")
	}
	course, err := s.owned(ctx, coachID, courseID)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromFloat(BoostPricePerDay).Mul(decimal.NewFromInt(int64(days))).InexactFloat64()
	return s.checkout.Start(ctx, StartCheckout{
		UserID: coachID, Amount: amount, Description: "Boost: " + course.Title, PaymentMethod: stripeMethod,
		Context: payments.PurchaseContext{Type: models.PurchaseTypeBoost, CourseID: course.ID.String(), BoostDays: days},
	})
}

// ApplyBoost extends the course's boost window, stacking on an active one.
func (s *CourseService) ApplyBoost(ctx context.Context, courseID uuid.UUID, days int) error {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return err
	}
	start := s.now()
	if course.BoostedUntil != nil && course.BoostedUntil.After(start) {
		start = *course.BoostedUntil
	}
	until := start.AddDate(0, 0, days)
	if err := s.courses.SetBoost(ctx, courseID, until); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"courseId": courseID, "until": until}).Info("course boosted")
	return nil
}

func (s *CourseService) ClearExpiredBoosts(ctx context.Context) (int64, error) {
	return s.courses.ClearExpiredBoosts(ctx, s.now())
}
