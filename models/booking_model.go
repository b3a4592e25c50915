package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BookingStatusPendingPayment = "pending_payment"
	BookingStatusConfirmed      = "confirmed"
	BookingStatusCancelled      = "cancelled"
	BookingStatusFailed         = "failed"

	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	// PaymentStatusRefunded marks a paid session whose purchase could not
	// be delivered and was credited back to the buyer.
	PaymentStatusRefunded = "refunded"
)

type Booking struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StudentID     uuid.UUID `gorm:"not null;index" json:"studentId"`
	CourseID      uuid.UUID `gorm:"not null;index" json:"courseId"`
	CoachID       uuid.UUID `gorm:"not null;index" json:"coachId"`
	ScheduledDate time.Time `gorm:"not null" json:"scheduledDate"`

	Status        string  `gorm:"size:20;not null;default:'pending_payment'" json:"status"`
	PaymentStatus string  `gorm:"size:20;not null;default:'pending'" json:"paymentStatus"`
	PaymentAmount float64 `gorm:"type:numeric(10,2);not null;default:0" json:"paymentAmount"`
	PaymentMethod string  `gorm:"size:30" json:"paymentMethod"`
	BookingMode   string  `gorm:"size:30" json:"bookingMode"`

	// Card codes and the amounts they absorbed, kept so an abandoned
	// checkout can hand the value back.
	GiftCardCode     *string `gorm:"size:40" json:"giftCardCode,omitempty"`
	GiftCardAmount   float64 `gorm:"type:numeric(10,2);default:0" json:"giftCardAmount"`
	DiscountCardCode *string `gorm:"size:40" json:"discountCardCode,omitempty"`
	DiscountAmount   float64 `gorm:"type:numeric(10,2);default:0" json:"discountAmount"`
	ReferralCode     *string `gorm:"size:10" json:"referralCode,omitempty"`
	StripeSessionID  *string `gorm:"size:255;index" json:"stripeSessionId,omitempty"`

	Course  Course `gorm:"foreignkey:CourseID" json:"course,omitempty"`
	Student User   `gorm:"foreignkey:StudentID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
