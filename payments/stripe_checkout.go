package payments

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

const (
	MethodTwint = "twint"
	MethodCard  = "card"
	MethodBoth  = "both"

	SessionTTL = 30 * time.Minute
)

// PurchaseContext travels in the session metadata and tells the webhook
// what to finalize once the payment completes.
type PurchaseContext struct {
	Type           string `json:"type" validate:"omitempty,oneof=booking token_package offer boost gift_card"`
	CourseID       string `json:"courseId,omitempty"`
	BookingID      string `json:"bookingId,omitempty"`
	ProductID      string `json:"productId,omitempty"`
	TokenPackageID string `json:"tokenPackageId,omitempty"`
	OfferID        string `json:"offerId,omitempty"`
	OptionID       string `json:"optionId,omitempty"`
	BoostDays      int    `json:"boostDays,omitempty"`
	ReferralCode   string `json:"referralCode,omitempty"`
	CheckoutData   string `json:"checkoutData,omitempty"`
}

type CheckoutRequest struct {
	Amount          float64          `json:"amount" validate:"required,gt=0"`
	Description     string           `json:"description" validate:"required"`
	UserID          string           `json:"userId"`
	CustomerEmail   string           `json:"customerEmail,omitempty"`
	PaymentMethod   string           `json:"paymentMethod" validate:"omitempty,oneof=twint card both"`
	PurchaseContext *PurchaseContext `json:"purchaseContext,omitempty"`
}

type CheckoutSession struct {
	SessionID     string `json:"sessionId"`
	URL           string `json:"url"`
	TwintFallback bool   `json:"twintFallback,omitempty"`
}

// SessionCreator is the single Stripe call the builder depends on.
type SessionCreator interface {
	CreateSession(ctx context.Context, secretKey string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type KeyProvider interface {
	SecretKey(ctx context.Context) (string, error)
}

type CheckoutDataStore interface {
	Create(ctx context.Context, data *models.CheckoutData) error
}

type StripeSessionCreator struct{}

func (StripeSessionCreator) CreateSession(ctx context.Context, secretKey string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	client := session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	params.Context = ctx
	return client.New(params)
}

type CheckoutBuilder struct {
	keys     KeyProvider
	sessions SessionCreator
	data     CheckoutDataStore
	baseURL  string
	currency string
	log      *logrus.Logger
	now      func() time.Time
}

func NewCheckoutBuilder(keys KeyProvider, sessions SessionCreator, data CheckoutDataStore, baseURL, currency string, log *logrus.Logger) *CheckoutBuilder {
	if currency == "" {
		currency = "chf"
	}
	return &CheckoutBuilder{
		keys:     keys,
		sessions: sessions,
		data:     data,
		baseURL:  strings.TrimRight(baseURL, "/"),
		currency: strings.ToLower(currency),
		log:      log,
		now:      time.Now,
	}
}

// Create opens a hosted checkout session. When TWINT was requested and
// Stripe rejects it, the session is retried once with card only.
func (b *CheckoutBuilder) Create(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, apperrors.Validation("Description is required")
	}
	mode := req.PaymentMethod
	if mode == "" {
		mode = MethodBoth
	}
	methods, err := methodsFor(mode)
	if err != nil {
		return nil, err
	}

	key, err := b.keys.SecretKey(ctx)
	if err != nil {
		return nil, err
	}

	now := b.now()
	metadata, err := b.metadata(ctx, req, now)
	if err != nil {
		return nil, err
	}

	sess, err := b.sessions.CreateSession(ctx, key, b.params(req, methods, metadata, now))
	if err == nil {
		return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
	}
	if mode == MethodCard || !IsTwintError(err) {
		return nil, apperrors.Integration("Failed to create checkout session", err)
	}

	b.log.WithFields(logrus.Fields{"userId": req.UserID, "error": err}).Warn("TWINT rejected, retrying checkout with card only")
	metadata["twintFallback"] = "true"
	metadata["originalPaymentMethod"] = mode
	sess, retryErr := b.sessions.CreateSession(ctx, key, b.params(req, []string{MethodCard}, metadata, now))
	if retryErr != nil {
		b.log.WithFields(logrus.Fields{"userId": req.UserID, "error": retryErr}).Error("card fallback checkout failed")
		return nil, apperrors.Integration("Failed to create checkout session", err)
	}
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL, TwintFallback: true}, nil
}

func methodsFor(mode string) ([]string, error) {
	switch mode {
	case MethodTwint:
		return []string{MethodTwint}, nil
	case MethodCard:
		return []string{MethodCard}, nil
	case MethodBoth:
		return []string{MethodCard, MethodTwint}, nil
	}
	return nil, apperrors.Validation("Payment method must be one of twint, card or both")
}

// IsTwintError reports whether a session creation failure is attributable
// to the TWINT payment method.
func IsTwintError(err error) bool {
	if err == nil {
		return false
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeInvalidRequest && stripeErr.Param == "payment_method_types" {
			return true
		}
		if containsTwintHint(stripeErr.Msg) {
			return true
		}
	}
	return containsTwintHint(err.Error())
}

func containsTwintHint(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "twint") || strings.Contains(msg, "payment method type")
}

func (b *CheckoutBuilder) metadata(ctx context.Context, req CheckoutRequest, now time.Time) (map[string]string, error) {
	meta := map[string]string{"userId": req.UserID}
	pc := req.PurchaseContext
	if pc == nil {
		return meta, nil
	}
	put := func(k, v string) {
		if v != "" {
			meta[k] = v
		}
	}
	put("type", pc.Type)
	put("courseId", pc.CourseID)
	put("bookingId", pc.BookingID)
	put("productId", pc.ProductID)
	put("tokenPackageId", pc.TokenPackageID)
	put("offerId", pc.OfferID)
	put("optionId", pc.OptionID)
	put("referralCode", pc.ReferralCode)
	if pc.BoostDays > 0 {
		meta["boostDays"] = strconv.Itoa(pc.BoostDays)
	}

	if pc.CheckoutData != "" {
		data := &models.CheckoutData{UserID: req.UserID, Data: pc.CheckoutData, ExpiresAt: now.Add(SessionTTL)}
		if err := b.data.Create(ctx, data); err != nil {
			return nil, apperrors.Integration("Failed to store checkout data", err)
		}
		meta["checkoutDataId"] = data.ID.String()
	}
	return meta, nil
}

func (b *CheckoutBuilder) params(req CheckoutRequest, methods []string, metadata map[string]string, now time.Time) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(methods),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(b.currency),
				UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL: stripe.String(b.baseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(b.baseURL + "/payment/cancel?session_id={CHECKOUT_SESSION_ID}"),
		ExpiresAt:  stripe.Int64(now.Add(SessionTTL).Unix()),
	}
	if req.UserID != "" {
		params.ClientReferenceID = stripe.String(req.UserID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	return params
}

// ToMinorUnits converts a CHF amount to rappen.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func FromMinorUnits(amount int64) float64 {
	return decimal.New(amount, -2).InexactFloat64()
}
