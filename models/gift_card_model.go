package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	GiftCardTxnPurchase          = "purchase"
	GiftCardTxnRedemption        = "redemption"
	GiftCardTxnPartialRedemption = "partial_redemption"
	GiftCardTxnRefund            = "refund"
)

type GiftCard struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Code            string     `gorm:"size:40;not null;uniqueIndex" json:"code"`
	IssuerID        uuid.UUID  `gorm:"not null;index" json:"issuerId"`
	BusinessID      *string    `gorm:"size:64" json:"businessId,omitempty"`
	BusinessName    string     `gorm:"size:255" json:"businessName"`
	Amount          float64    `gorm:"type:numeric(10,2);not null" json:"amount"`
	RemainingAmount float64    `gorm:"type:numeric(10,2);not null" json:"remainingAmount"`
	UsageAmount     float64    `gorm:"type:numeric(10,2);not null;default:0" json:"usageAmount"`
	IsUsed          bool       `gorm:"default:false" json:"isUsed"`
	IsActive        bool       `gorm:"default:true" json:"isActive"`
	AllowPartialUse bool       `gorm:"not null" json:"allowPartialUse"`
	ExpirationDate  *time.Time `json:"expirationDate,omitempty"`
	RecipientEmail  string     `gorm:"size:255" json:"recipientEmail,omitempty"`
	Message         string     `gorm:"type:text" json:"message,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (g GiftCard) IsExpired(now time.Time) bool {
	return g.ExpirationDate != nil && g.ExpirationDate.Before(now)
}

type GiftCardTransaction struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	GiftCardID      uuid.UUID  `gorm:"not null;index" json:"giftCardId"`
	Type            string     `gorm:"size:30;not null" json:"type"`
	Amount          float64    `gorm:"type:numeric(10,2);not null" json:"amount"`
	BalanceAfter    float64    `gorm:"type:numeric(10,2);not null" json:"balanceAfter"`
	CustomerID      string     `gorm:"size:64" json:"customerId"`
	CustomerName    string     `gorm:"size:255" json:"customerName"`
	BusinessID      *string    `gorm:"size:64" json:"businessId,omitempty"`
	OrderID         *string    `gorm:"size:64" json:"orderId,omitempty"`
	BookingID       *uuid.UUID `json:"bookingId,omitempty"`
	TransactionType string     `gorm:"size:50" json:"transactionType,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}
