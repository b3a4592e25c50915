package media

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	config "github.com/dancehub/marketplace/configs"
)

type Uploader interface {
	Upload(ctx context.Context, file any, publicID string) (string, error)
}

type UploadSignature struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"api_key"`
	CloudName string `json:"cloud_name"`
	Folder    string `json:"folder"`
	Preset    string `json:"upload_preset,omitempty"`
}

type Cloudinary struct {
	cld *cloudinary.Cloudinary
	cfg config.CloudinaryConfig
}

func NewCloudinary(cfg config.CloudinaryConfig) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, cfg: cfg}, nil
}

// Upload accepts anything the Cloudinary SDK does, including data URLs,
// and returns the secure URL of the stored asset.
func (c *Cloudinary) Upload(ctx context.Context, file any, publicID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := uploader.UploadParams{
		PublicID:     publicID,
		Folder:       c.cfg.Folder,
		UploadPreset: c.cfg.UploadPreset,
	}
	result, err := c.cld.Upload.Upload(ctx, file, params)
	if err != nil {
		return "", err
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: %s", result.Error.Message)
	}
	return result.SecureURL, nil
}

// SignUpload prepares the parameters a browser needs for a signed direct upload.
func (c *Cloudinary) SignUpload(now time.Time) (*UploadSignature, error) {
	paramsToSign, err := api.StructToParams(uploader.UploadParams{
		Folder:       c.cfg.Folder,
		UploadPreset: c.cfg.UploadPreset,
	})
	if err != nil {
		return nil, err
	}
	timestamp := now.Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, c.cfg.APISecret)
	if err != nil {
		return nil, err
	}
	return &UploadSignature{
		Signature: signature,
		Timestamp: timestamp,
		APIKey:    c.cfg.APIKey,
		CloudName: c.cfg.CloudName,
		Folder:    c.cfg.Folder,
		Preset:    c.cfg.UploadPreset,
	}, nil
}

// ImageStore renders QR codes and, when an uploader is configured, hosts
// them remotely. Without one the data URL itself is stored.
type ImageStore struct {
	renderer QRRenderer
	uploader Uploader
}

func NewImageStore(renderer QRRenderer, uploader Uploader) *ImageStore {
	return &ImageStore{renderer: renderer, uploader: uploader}
}

func (s *ImageStore) QRDataURL(content string) (string, error) {
	return s.renderer.RenderDataURL(content)
}

func (s *ImageStore) HostedQR(ctx context.Context, content, publicID string) (string, error) {
	dataURL, err := s.renderer.RenderDataURL(content)
	if err != nil {
		return "", err
	}
	if s.uploader == nil {
		return dataURL, nil
	}
	url, err := s.uploader.Upload(ctx, dataURL, publicID)
	if err != nil {
		return dataURL, err
	}
	return url, nil
}
