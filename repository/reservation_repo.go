package repository

import (
	"context"
	"time"

	"github.com/dancehub/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReservationRepository interface {
	// Create fails with ErrDuplicate when the user already holds a
	// non-cancelled reservation for the schedule.
	Create(ctx context.Context, reservation *models.HelmetReservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.HelmetReservation, error)
	FindActive(ctx context.Context, userID, scheduleID uuid.UUID) (*models.HelmetReservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.HelmetReservation, error)
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]models.HelmetReservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) error
	ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.HelmetReservation, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkNoShows(ctx context.Context, endedBefore time.Time) (int64, error)

	FindQRCode(ctx context.Context, userID uuid.UUID) (*models.UserQRCode, error)
	FindQRCodeByData(ctx context.Context, data string) (*models.UserQRCode, error)
	CreateQRCode(ctx context.Context, qr *models.UserQRCode) error
}

type reservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

func (r *reservationRepository) Create(ctx context.Context, reservation *models.HelmetReservation) error {
	return translate(r.db.WithContext(ctx).Create(reservation).Error)
}

func (r *reservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.HelmetReservation, error) {
	var res models.HelmetReservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *reservationRepository) FindActive(ctx context.Context, userID, scheduleID uuid.UUID) (*models.HelmetReservation, error) {
	var res models.HelmetReservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND schedule_id = ? AND status <> ?", userID, scheduleID, models.ReservationCancelled).
		First(&res).Error
	if err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

func (r *reservationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.HelmetReservation, error) {
	var list []models.HelmetReservation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("start_time DESC").Find(&list).Error
	return list, err
}

func (r *reservationRepository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]models.HelmetReservation, error) {
	var list []models.HelmetReservation
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND status <> ?", scheduleID, models.ReservationCancelled).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *reservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, at time.Time) error {
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.ReservationCheckedIn:
		updates["checked_in_at"] = at
	case models.ReservationCancelled:
		updates["cancelled_at"] = at
	}
	return requireRow(r.db.WithContext(ctx).Model(&models.HelmetReservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates))
}

func (r *reservationRepository) ListDueForReminder(ctx context.Context, from, to time.Time) ([]models.HelmetReservation, error) {
	var list []models.HelmetReservation
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent_at IS NULL AND start_time BETWEEN ? AND ?", models.ReservationBooked, from, to).
		Find(&list).Error
	return list, err
}

func (r *reservationRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.HelmetReservation{}).Where("id = ?", id).Update("reminder_sent_at", at).Error
}

func (r *reservationRepository) MarkNoShows(ctx context.Context, endedBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.HelmetReservation{}).
		Where("status = ? AND end_time < ?", models.ReservationBooked, endedBefore).
		Update("status", models.ReservationNoShow)
	return result.RowsAffected, result.Error
}

func (r *reservationRepository) FindQRCode(ctx context.Context, userID uuid.UUID) (*models.UserQRCode, error) {
	var qr models.UserQRCode
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&qr).Error; err != nil {
		return nil, translate(err)
	}
	return &qr, nil
}

func (r *reservationRepository) FindQRCodeByData(ctx context.Context, data string) (*models.UserQRCode, error) {
	var qr models.UserQRCode
	if err := r.db.WithContext(ctx).Where("qr_code_data = ?", data).First(&qr).Error; err != nil {
		return nil, translate(err)
	}
	return &qr, nil
}

func (r *reservationRepository) CreateQRCode(ctx context.Context, qr *models.UserQRCode) error {
	return translate(r.db.WithContext(ctx).Create(qr).Error)
}
