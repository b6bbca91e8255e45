package imagepkg

import (
	"bytes"
	"context"
	"image"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRPNG returns PNG bytes of a QR code for the given text.
func GenerateQRPNG(text string, size int) ([]byte, error) {
	return qrcode.Encode(text, qrcode.Medium, size)
}

// GenerateQRImage returns an image.Image for further composition.
func GenerateQRImage(text string, size int) (image.Image, error) {
	b, err := GenerateQRPNG(text, size)
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(b))
}

// QRSource renders Text as a QR code sticker of Size pixels.
type QRSource struct {
	Text string
	Size int
}

func (q QRSource) Resolve(context.Context) (*DecodedImage, error) {
	size := q.Size
	if size <= 0 {
		size = 256
	}
	img, err := GenerateQRImage(q.Text, size)
	if err != nil {
		return nil, err
	}
	return NewDecodedImage(img, "qr:"+q.Text), nil
}
