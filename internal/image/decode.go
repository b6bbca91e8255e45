package imagepkg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"reflect"

	"github.com/disintegration/imaging"
)

// DecodedImage is a ready-to-draw bitmap.
type DecodedImage struct {
	Image         image.Image
	NaturalWidth  int
	NaturalHeight int
	MIMEType      string
	// Src identifies the image in the memory-mode stack (URL, path or name).
	Src string
}

// NewDecodedImage wraps an already decoded image.
func NewDecodedImage(img image.Image, src string) *DecodedImage {
	b := img.Bounds()
	return &DecodedImage{
		Image:         img,
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
		MIMEType:      MIMETypePNG,
		Src:           src,
	}
}

// Resolve makes an already decoded image usable as an overlay source.
func (d *DecodedImage) Resolve(context.Context) (*DecodedImage, error) {
	return d, nil
}

// Decode reads the whole handle and decodes it.
func Decode(ctx context.Context, h FileHandle) (*DecodedImage, error) {
	if isNilHandle(h) || h.Size() < 0 {
		return nil, ErrInvalidHandle
	}

	rc, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrDecode, h.Name(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrDecode, h.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mimeType := h.Type()
	if mimeType == "" {
		mimeType = lookupTypeByExt(h.Name())
	}
	if mimeType == "" {
		// no declared type and no usable extension, last chance is the content
		if !supportedType(http.DetectContentType(data)) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownImageType, h.Name())
		}
	}

	return decodeBytes(data, h.Name())
}

// DecodeAsync runs Decode in its own goroutine and reports the outcome to
// exactly one of onLoad or onError.
func DecodeAsync(ctx context.Context, h FileHandle, onLoad func(*DecodedImage), onError func(error)) {
	go func() {
		img, err := Decode(ctx, h)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onLoad != nil {
			onLoad(img)
		}
	}()
}

func decodeBytes(data []byte, name string) (*DecodedImage, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if err := checkPixels(float64(cfg.Width), float64(cfg.Height)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	mimeType := "image/" + format
	if !supportedType(mimeType) {
		return nil, fmt.Errorf("%w: %s: unsupported format %q", ErrDecode, name, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	d := NewDecodedImage(img, name)
	d.MIMEType = mimeType
	return d, nil
}

func isNilHandle(h FileHandle) bool {
	if h == nil {
		return true
	}
	v := reflect.ValueOf(h)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
