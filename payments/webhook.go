package payments

import (
	"encoding/json"
	"errors"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

var ErrIgnoredEvent = errors.New("stripe event ignored")

type CheckoutEvent struct {
	Type          stripe.EventType
	SessionID     string
	PaymentStatus string
	AmountTotal   float64
	Metadata      map[string]string
}

func (c CheckoutEvent) Expired() bool {
	return c.Type == stripe.EventTypeCheckoutSessionExpired
}

func (c CheckoutEvent) Paid() bool {
	return c.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid) ||
		c.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusNoPaymentRequired)
}

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Parse verifies the Stripe signature and extracts a completed or expired
// checkout session. Any other event type yields ErrIgnoredEvent.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (*CheckoutEvent, error) {
	if v.secret == "" {
		return nil, apperrors.New(apperrors.KindConfig, "webhook_not_configured", "Stripe webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperrors.Validation("Invalid Stripe signature")
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted && event.Type != stripe.EventTypeCheckoutSessionExpired {
		return nil, ErrIgnoredEvent
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, apperrors.Validation("Malformed checkout session payload")
	}
	return &CheckoutEvent{
		Type:          event.Type,
		SessionID:     sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   FromMinorUnits(sess.AmountTotal),
		Metadata:      sess.Metadata,
	}, nil
}
