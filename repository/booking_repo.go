package repository

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingRepository interface {
	// CreateConfirmed takes a seat on the course and inserts the booking in
	// one transaction. ErrConditionFailed means the course is full.
	CreateConfirmed(ctx context.Context, booking *models.Booking) error
	CreatePending(ctx context.Context, booking *models.Booking) error
	// ConfirmPending moves a pending booking to confirmed and takes its seat.
	ConfirmPending(ctx context.Context, bookingID uuid.UUID, amountPaid float64) (*models.Booking, error)
	SetStripeSession(ctx context.Context, bookingID uuid.UUID, sessionID string) error
	MarkFailed(ctx context.Context, bookingID uuid.UUID) error
	// Cancel cancels the booking and frees its seat when it held one.
	Cancel(ctx context.Context, bookingID uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindActive(ctx context.Context, studentID, courseID uuid.UUID, scheduledDate time.Time) (*models.Booking, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func takeSeat(tx *gorm.DB, courseID uuid.UUID) error {
	return requireRow(tx.Model(&models.Course{}).
		Where("id = ? AND current_students < max_students", courseID).
		Update("current_students", gorm.Expr("current_students + 1")))
}

func (r *bookingRepository) CreateConfirmed(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := takeSeat(tx, booking.CourseID); err != nil {
			return err
		}
		return translate(tx.Omit("Course", "Student").Create(booking).Error)
	})
}

func (r *bookingRepository) CreatePending(ctx context.Context, booking *models.Booking) error {
	return translate(r.db.WithContext(ctx).Omit("Course", "Student").Create(booking).Error)
}

func (r *bookingRepository) ConfirmPending(ctx context.Context, bookingID uuid.UUID, amountPaid float64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return translate(err)
		}
		if booking.Status != models.BookingStatusPendingPayment {
			return ErrConditionFailed
		}
		if err := takeSeat(tx, booking.CourseID); err != nil {
			return err
		}
		booking.Status = models.BookingStatusConfirmed
		booking.PaymentStatus = models.PaymentStatusCompleted
		booking.PaymentAmount = amountPaid
		return tx.Model(&booking).Updates(map[string]interface{}{
			"status":         booking.Status,
			"payment_status": booking.PaymentStatus,
			"payment_amount": amountPaid,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) SetStripeSession(ctx context.Context, bookingID uuid.UUID, sessionID string) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("stripe_session_id", sessionID))
}

func (r *bookingRepository) MarkFailed(ctx context.Context, bookingID uuid.UUID) error {
	return requireRow(r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", bookingID, models.BookingStatusPendingPayment).
		Updates(map[string]interface{}{
			"status":         models.BookingStatusFailed,
			"payment_status": models.PaymentStatusFailed,
		}))
}

func (r *bookingRepository) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var booking models.Booking
		if err := tx.First(&booking, "id = ?", bookingID).Error; err != nil {
			return translate(err)
		}
		if booking.Status == models.BookingStatusCancelled || booking.Status == models.BookingStatusFailed {
			return ErrConditionFailed
		}
		if booking.Status == models.BookingStatusConfirmed {
			if err := tx.Model(&models.Course{}).
				Where("id = ? AND current_students > 0", booking.CourseID).
				Update("current_students", gorm.Expr("current_students - 1")).Error; err != nil {
				return err
			}
		}
		return tx.Model(&booking).Update("status", models.BookingStatusCancelled).Error
	})
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Preload("Course").First(&booking, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *bookingRepository) FindActive(ctx context.Context, studentID, courseID uuid.UUID, scheduledDate time.Time) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND scheduled_date = ? AND status NOT IN ?",
			studentID, courseID, scheduledDate, []string{models.BookingStatusCancelled, models.BookingStatusFailed}).
		First(&booking).Error
	if err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (r *bookingRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("student_id = ?", studentID).
		Order("scheduled_date DESC").
		Find(&bookings).Error
	return bookings, err
}
