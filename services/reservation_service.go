package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/events"
	"github.com/dancehub/marketplace/models"
	"github.com/dancehub/marketplace/notifications"
	"github.com/dancehub/marketplace/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const ReminderLeadTime = time.Hour

type ReservationResult struct {
	ReservationID uuid.UUID                 `json:"reservationId"`
	QRCode        string                    `json:"qrCode"`
	QRCodeImage   string                    `json:"qrCodeImage,omitempty"`
	Message       string                    `json:"message"`
	Reservation   *models.HelmetReservation `json:"reservation"`
}

type ReservationService struct {
	reservations repository.ReservationRepository
	courses      repository.CourseRepository
	users        repository.UserRepository
	qr           QRRenderer
	notifier     Notifier
	mailer       Mailer
	events       events.Emitter
	log          *logrus.Logger
	now          Clock
}

func NewReservationService(reservations repository.ReservationRepository, courses repository.CourseRepository,
	users repository.UserRepository, qr QRRenderer, notifier Notifier, mailer Mailer, emitter events.Emitter, log *logrus.Logger) *ReservationService {
	return &ReservationService{
		reservations: reservations, courses: courses, users: users, qr: qr,
		notifier: notifier, mailer: mailer, events: emitter, log: log, now: time.Now,
	}
}

// Create reserves a helmet for the user on one schedule occurrence. A user
// holds at most one non-cancelled reservation per schedule.
func (s *ReservationService) Create(ctx context.Context, userID, scheduleID uuid.UUID) (*ReservationResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	schedule, err := s.courses.FindSchedule(ctx, scheduleID)
	if err != nil {
		return nil, notFound(err, "Schedule not found")
	}
	if !schedule.StartTime.After(s.now()) {
		return nil, apperrors.ErrScheduleInPast.WithMessage("This class has already started")
	}

	if _, err := s.reservations.FindActive(ctx, userID, scheduleID); err == nil {
		return nil, apperrors.ErrDuplicateReserve
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	qr, err := s.ensureQRCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	course := schedule.Course
	location := schedule.Location
	if location == "" {
		location = course.Location
	}
	reservation := &models.HelmetReservation{
		UserID:     userID,
		ScheduleID: scheduleID,
		CourseID:   course.ID,
		CoachID:    course.CoachID,
		Status:     models.ReservationBooked,
		QRCode:     qr.QRCodeData,
		UserName:   user.FullName,
		UserEmail:  user.Email,
		CourseName: course.Title,
		CoachName:  course.Coach.FullName,
		Location:   location,
		StartTime:  schedule.StartTime,
		EndTime:    schedule.EndTime,
	}
	if err := s.reservations.Create(ctx, reservation); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.ErrDuplicateReserve
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"reservationId": reservation.ID, "userId": userID, "scheduleId": scheduleID}).Info("helmet reserved")
	s.notifier.Notify(ctx, userID, models.NotificationBooking, "Helmet reserved",
		fmt.Sprintf("Your helmet for %s on %s is reserved", course.Title, schedule.StartTime.Format("02 Jan 15:04")),
		map[string]string{"reservationId": reservation.ID.String(), "scheduleId": scheduleID.String()})
	s.mailer.ReservationConfirmation(ctx, reservationEmail(reservation, qr.QRCodeImage))
	s.events.Emit(ctx, events.ReservationCreated, reservation)

	return &ReservationResult{
		ReservationID: reservation.ID,
		QRCode:        qr.QRCodeData,
		QRCodeImage:   qr.QRCodeImage,
		Message:       "Helmet reserved successfully",
		Reservation:   reservation,
	}, nil
}

// ensureQRCode returns the user's standing QR code, creating it on first use.
func (s *ReservationService) ensureQRCode(ctx context.Context, userID uuid.UUID) (*models.UserQRCode, error) {
	qr, err := s.reservations.FindQRCode(ctx, userID)
	if err == nil {
		return qr, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	data := fmt.Sprintf("USER_%s_%d", userID, s.now().UnixMilli())
	image, err := s.qr.RenderDataURL(data)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	qr = &models.UserQRCode{UserID: userID, QRCodeData: data, QRCodeImage: image}
	if err := s.reservations.CreateQRCode(ctx, qr); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent request created it first.
			return s.reservations.FindQRCode(ctx, userID)
		}
		return nil, err
	}
	return qr, nil
}

func reservationEmail(r *models.HelmetReservation, qrImage string) notifications.ReservationEmail {
	return notifications.ReservationEmail{
		Name: r.UserName, Email: r.UserEmail, CourseName: r.CourseName, CoachName: r.CoachName,
		Location: r.Location, StartTime: r.StartTime, EndTime: r.EndTime, QRCode: qrImage,
	}
}

func (s *ReservationService) Cancel(ctx context.Context, userID, reservationID uuid.UUID) error {
	r, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return notFound(err, "Reservation not found")
	}
	if r.UserID != userID {
		return apperrors.Forbidden("You can only cancel your own reservations")
	}
	if err := s.reservations.UpdateStatus(ctx, reservationID, models.ReservationBooked, models.ReservationCancelled, s.now()); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return apperrors.New(apperrors.KindBusinessRule, "reservation_closed", "Only booked reservations can be cancelled")
		}
		return err
	}
	s.log.WithField("reservationId", reservationID).Info("reservation cancelled")
	return nil
}

// CheckIn marks the holder of a scanned QR code as present. Only the coach
// of the course may check people in.
func (s *ReservationService) CheckIn(ctx context.Context, coachID, scheduleID uuid.UUID, qrData string) (*models.HelmetReservation, error) {
	qr, err := s.reservations.FindQRCodeByData(ctx, qrData)
	if err != nil {
		return nil, notFound(err, "QR code not recognised")
	}
	r, err := s.reservations.FindActive(ctx, qr.UserID, scheduleID)
	if err != nil {
		return nil, notFound(err, "Reservation not found")
	}
	if r.CoachID != coachID {
		return nil, apperrors.Forbidden("Only the course coach can check in students")
	}
	now := s.now()
	if err := s.reservations.UpdateStatus(ctx, r.ID, models.ReservationBooked, models.ReservationCheckedIn, now); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, apperrors.New(apperrors.KindConflict, "already_checked_in", "Reservation is already checked in")
		}
		return nil, err
	}
	r.Status = models.ReservationCheckedIn
	r.CheckedInAt = &now
	s.events.Emit(ctx, events.ReservationCheckIn, r)
	return r, nil
}

func (s *ReservationService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.HelmetReservation, error) {
	return s.reservations.ListByUser(ctx, userID)
}

func (s *ReservationService) ListForSchedule(ctx context.Context, coachID, scheduleID uuid.UUID) ([]models.HelmetReservation, error) {
	schedule, err := s.courses.FindSchedule(ctx, scheduleID)
	if err != nil {
		return nil, notFound(err, "Schedule not found")
	}
	if schedule.Course.CoachID != coachID {
		return nil, apperrors.Forbidden("Only the course coach can view reservations")
	}
	return s.reservations.ListBySchedule(ctx, scheduleID)
}

// SendReminders emails everyone whose class starts within the lead time.
func (s *ReservationService) SendReminders(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.reservations.ListDueForReminder(ctx, now, now.Add(ReminderLeadTime))
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range due {
		r := &due[i]
		image := ""
		if qr, err := s.reservations.FindQRCode(ctx, r.UserID); err == nil {
			image = qr.QRCodeImage
		}
		s.mailer.ReservationReminder(ctx, reservationEmail(r, image))
		if err := s.reservations.MarkReminderSent(ctx, r.ID, now); err != nil {
			s.log.WithFields(logrus.Fields{"reservationId": r.ID, "error": err}).Error("failed to mark reminder sent")
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *ReservationService) MarkNoShows(ctx context.Context) (int64, error) {
	return s.reservations.MarkNoShows(ctx, s.now())
}
