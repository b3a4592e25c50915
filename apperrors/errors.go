// Package apperrors defines the closed set of error kinds returned by the
// domain layer. HTTP status mapping lives in one place, the handlers package.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindBusinessRule
	KindConflict
	KindConfig
	KindIntegration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindBusinessRule:
		return "business_rule"
	case KindConflict:
		return "conflict"
	case KindConfig:
		return "config"
	case KindIntegration:
		return "integration"
	default:
		return "unknown"
	}
}

// Error is a tagged domain error. Two errors match under errors.Is when
// their codes are equal, so a customised message still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Code != ""
}

// WithMessage returns a copy of e carrying a different message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Wrap returns a copy of e that wraps cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: message}
}

func Integration(message string, cause error) *Error {
	return &Error{Kind: KindIntegration, Code: "integration_failed", Message: message, Err: cause}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Business rule violations shared across card, token, booking and
// reservation flows. Messages keep the wording clients already match on.
var (
	ErrCardNotFound        = New(KindNotFound, "card_not_found", "Card not found")
	ErrCardInactive        = New(KindBusinessRule, "card_inactive", "Card is not active")
	ErrCardExpired         = New(KindBusinessRule, "card_expired", "Card has expired")
	ErrCardUsed            = New(KindBusinessRule, "card_used", "Gift card has already been used")
	ErrUsageLimitReached   = New(KindBusinessRule, "usage_limit_reached", "Card usage limit reached")
	ErrCourseMismatch      = New(KindBusinessRule, "course_mismatch", "Card is not valid for this course")
	ErrCoachMismatch       = New(KindBusinessRule, "coach_mismatch", "Card is not valid for this coach")
	ErrUserMismatch        = New(KindBusinessRule, "user_mismatch", "Card is not valid for this user")
	ErrBusinessMismatch    = New(KindBusinessRule, "business_mismatch", "Gift card can only be used with its issuing business")
	ErrInsufficientBalance = New(KindBusinessRule, "insufficient_balance", "Insufficient balance")
	ErrInsufficientTokens  = New(KindBusinessRule, "insufficient_tokens", "Insufficient tokens")
	ErrInsufficientCredit  = New(KindBusinessRule, "insufficient_credit", "Insufficient credit balance")
	ErrCourseFull          = New(KindBusinessRule, "course_full", "This course is full")
	ErrScheduleInPast      = New(KindBusinessRule, "schedule_in_past", "Please select a future date")
	ErrPaymentMethod       = New(KindBusinessRule, "payment_method_not_accepted", "Payment method not accepted")
	ErrBookingClosed       = New(KindBusinessRule, "booking_closed", "Booking is no longer awaiting payment")
	ErrDuplicateBooking    = New(KindConflict, "duplicate_booking", "You already booked this course for this date")
	ErrDuplicateReserve    = New(KindConflict, "duplicate_reservation", "You already have a reservation for this class")
	ErrInvalidStripeConfig = New(KindConfig, "invalid_stripe_config", "Invalid Stripe configuration")
)
