// Package media renders QR codes and hosts images on Cloudinary.
package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"

	"github.com/skip2/go-qrcode"
)

const (
	QRSize   = 300
	QRMargin = 2
)

type QRRenderer interface {
	RenderDataURL(content string) (string, error)
}

// PNGRenderer draws black-on-white QR codes of a fixed pixel size with a
// quiet zone of Margin modules.
type PNGRenderer struct {
	Size   int
	Margin int
	Level  qrcode.RecoveryLevel
}

func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{Size: QRSize, Margin: QRMargin, Level: qrcode.Medium}
}

func (r *PNGRenderer) Render(content string) ([]byte, error) {
	q, err := qrcode.New(content, r.Level)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	bitmap := q.Bitmap()

	modules := len(bitmap) + 2*r.Margin
	scale := r.Size / modules
	if scale < 1 {
		scale = 1
	}
	offset := (r.Size - len(bitmap)*scale) / 2

	img := image.NewPaletted(image.Rect(0, 0, r.Size, r.Size), color.Palette{color.White, color.Black})
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(offset+x*scale+dx, offset+y*scale+dy, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *PNGRenderer) RenderDataURL(content string) (string, error) {
	raw, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}
