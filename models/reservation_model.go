package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReservationBooked    = "booked"
	ReservationCheckedIn = "checked_in"
	ReservationCancelled = "cancelled"
	ReservationNoShow    = "no_show"
)

// HelmetReservation holds one seat of a schedule occurrence. Course, coach
// and schedule display fields are copied at creation and never refreshed.
type HelmetReservation struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID     uuid.UUID `gorm:"not null;uniqueIndex:idx_active_reservation,where:status <> 'cancelled'" json:"userId"`
	ScheduleID uuid.UUID `gorm:"not null;uniqueIndex:idx_active_reservation,where:status <> 'cancelled';index" json:"scheduleId"`
	CourseID   uuid.UUID `gorm:"not null;index" json:"courseId"`
	CoachID    uuid.UUID `gorm:"not null;index" json:"coachId"`
	Status     string    `gorm:"size:20;not null;default:'booked'" json:"status"`
	QRCode     string    `gorm:"size:128;not null" json:"qrCode"`

	UserName   string    `gorm:"size:255" json:"userName"`
	UserEmail  string    `gorm:"size:255" json:"userEmail"`
	CourseName string    `gorm:"size:255" json:"courseName"`
	CoachName  string    `gorm:"size:255" json:"coachName"`
	Location   string    `gorm:"size:255" json:"location"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`

	ReminderSentAt *time.Time `json:"reminderSentAt,omitempty"`
	CheckedInAt    *time.Time `json:"checkedInAt,omitempty"`
	CancelledAt    *time.Time `json:"cancelledAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserQRCode identifies a person, not a booking; it is reused by every
// reservation the user makes.
type UserQRCode struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID      uuid.UUID `gorm:"not null;uniqueIndex" json:"userId"`
	QRCodeData  string    `gorm:"size:128;not null;uniqueIndex" json:"qrCodeData"`
	QRCodeImage string    `gorm:"type:text" json:"qrCodeImage"`

	CreatedAt time.Time `json:"createdAt"`
}
