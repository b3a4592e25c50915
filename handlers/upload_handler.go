package handlers

import (
	"time"

	"github.com/dancehub/marketplace/apperrors"
	"github.com/gofiber/fiber/v2"
)

// GenerateUploadSignature creates a signature for a direct browser upload
// to Cloudinary (course images, profile pictures).
func (h *Handler) GenerateUploadSignature(c *fiber.Ctx) error {
	if h.Uploads == nil {
		return h.respondError(c, apperrors.New(apperrors.KindConfig, "uploads_disabled", "Uploads are not configured"))
	}
	sig, err := h.Uploads.SignUpload(time.Now())
	if err != nil {
		return h.respondError(c, apperrors.Integration("Failed to sign upload params", err))
	}
	return c.JSON(sig)
}
