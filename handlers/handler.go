package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/dancehub/marketplace/media"
	"github.com/dancehub/marketplace/middleware"
	"github.com/dancehub/marketplace/payments"
	"github.com/dancehub/marketplace/services"
	"github.com/dancehub/marketplace/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// UploadSigner signs browser-side uploads. Nil when Cloudinary is not configured.
type UploadSigner interface {
	SignUpload(now time.Time) (*media.UploadSignature, error)
}

// Handler carries the services every route group calls into.
type Handler struct {
	Auth          *services.AuthService
	GiftCards     *services.GiftCardService
	Discounts     *services.DiscountCardService
	Tokens        *services.TokenService
	Offers        *services.OfferService
	Courses       *services.CourseService
	Resolver      *services.ModeResolver
	Bookings      *services.BookingService
	Reservations  *services.ReservationService
	Checkouts     *services.CheckoutService
	Notifications *services.NotificationService
	Referrals     *services.ReferralService

	Verifier   *payments.WebhookVerifier
	StripeKeys *payments.StripeKeyStore
	Uploads    UploadSigner
	Hub        *websocket.Hub

	JWTSecret string
	Log       *logrus.Logger
}

// respondError is the single place domain errors become HTTP responses.
func (h *Handler) respondError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}
		h.Log.WithFields(logrus.Fields{"path": c.Path(), "method": c.Method(), "error": err}).Error("unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	status := StatusFor(appErr.Kind)
	if status >= fiber.StatusInternalServerError {
		h.Log.WithFields(logrus.Fields{"path": c.Path(), "code": appErr.Code, "error": err}).Error("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": appErr.Message, "code": appErr.Code})
}

func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindBusinessRule:
		return fiber.StatusBadRequest
	case apperrors.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperrors.KindForbidden:
		return fiber.StatusForbidden
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// bind parses and validates a JSON body.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("Cannot parse JSON")
	}
	if err := validate.Struct(out); err != nil {
		return apperrors.Validation(validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
	}
	return "Invalid request: " + strings.Join(msgs, ", ")
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("Invalid " + name)
	}
	return id, nil
}

func optionalID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.Validation("Invalid id: " + raw)
	}
	return &id, nil
}

func currentUser(c *fiber.Ctx) (uuid.UUID, error) {
	id := middleware.UserID(c)
	if id == uuid.Nil {
		return uuid.Nil, apperrors.New(apperrors.KindUnauthorized, "unauthorized", "Authentication required")
	}
	return id, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.Validation("Invalid date: " + raw)
}
