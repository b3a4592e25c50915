package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AdvantageFree               = "free"
	AdvantageSpecialPrice       = "special_price"
	AdvantagePercentageDiscount = "percentage_discount"

	// UnlimitedUsage disables the usage limit check.
	UnlimitedUsage = -1
)

type DiscountCard struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Code               string     `gorm:"size:40;not null;uniqueIndex" json:"code"`
	CoachID            uuid.UUID  `gorm:"not null;index" json:"coachId"`
	Title              string     `gorm:"size:255" json:"title"`
	Description        string     `gorm:"type:text" json:"description"`
	AdvantageType      string     `gorm:"size:30;not null;default:'percentage_discount'" json:"advantageType"`
	DiscountPercentage float64    `gorm:"type:numeric(5,2);default:0" json:"discountPercentage"`
	Value              float64    `gorm:"type:numeric(10,2);default:0" json:"value"`
	UsageLimit         int        `gorm:"not null;default:-1" json:"usageLimit"`
	UsageCount         int        `gorm:"not null;default:0" json:"usageCount"`
	IsActive           bool       `gorm:"default:true" json:"isActive"`
	ExpirationDate     *time.Time `json:"expirationDate,omitempty"`
	CourseID           *uuid.UUID `gorm:"index" json:"courseId,omitempty"`
	UserEmail          *string    `gorm:"size:255;index" json:"userEmail,omitempty"`
	QRCodeImage        string     `gorm:"type:text" json:"qrCodeImage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DiscountCardUsage struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CardID         uuid.UUID `gorm:"not null;index" json:"cardId"`
	CoachID        uuid.UUID `gorm:"not null" json:"coachId"`
	CustomerID     string    `gorm:"size:64" json:"customerId"`
	CustomerName   string    `gorm:"size:255" json:"customerName"`
	OrderAmount    float64   `gorm:"type:numeric(10,2)" json:"orderAmount"`
	DiscountAmount float64   `gorm:"type:numeric(10,2)" json:"discountAmount"`
	FinalAmount    float64   `gorm:"type:numeric(10,2)" json:"finalAmount"`

	CreatedAt time.Time `json:"createdAt"`
}
