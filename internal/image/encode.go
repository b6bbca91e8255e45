package imagepkg

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// DefaultImageQuality is the JPEG quality used when none is configured.
const DefaultImageQuality = 0.92

// Artifact is an encoded surface: a DataURL, *File or *Blob from Encode, or a
// *LocalFile produced by the upload filesystem round trip.
type Artifact interface {
	isArtifact()
}

// DataURL is a base64 data URL ("data:image/png;base64,...").
type DataURL string

func (DataURL) isArtifact()    {}
func (*File) isArtifact()      {}
func (*Blob) isArtifact()      {}
func (*LocalFile) isArtifact() {}

// EncodeOptions controls how a surface is serialized.
type EncodeOptions struct {
	// Filename selects the MIME type by extension and names the file.
	Filename string
	// Quality in (0,1]; only used for JPEG.
	Quality float64
	// ReturnAsString produces a DataURL instead of a file.
	ReturnAsString bool
	// NamedFiles reports whether first-class named files can be produced.
	// When false the result is a *Blob with name and type stamped on.
	NamedFiles bool
}

// Encode serializes the surface at its logical size.
func Encode(ctx context.Context, s *Surface, opts EncodeOptions) (Artifact, error) {
	if s == nil {
		return nil, ErrNotReady
	}
	mimeType := TypeByExt(opts.Filename)

	var encOpts []imaging.EncodeOption
	if mimeType == MIMETypeJPEG {
		encOpts = append(encOpts, imaging.JPEGQuality(jpegQuality(opts.Quality)))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, snapshot(s), typeFormats[mimeType], encOpts...); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", mimeType, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.ReturnAsString {
		return DataURL("data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes())), nil
	}

	name := opts.Filename
	if name == "" {
		name = "image." + ExtByType(mimeType)
	}
	if opts.NamedFiles {
		return NewFile(name, mimeType, buf.Bytes()), nil
	}
	return &Blob{Name: name, Type: mimeType, Data: buf.Bytes()}, nil
}

// snapshot returns the surface content at logical resolution.
func snapshot(s *Surface) image.Image {
	w, h := pixels(s.width), pixels(s.height)
	bw, bh := s.BackingSize()
	if bw == w && bh == h {
		return s.backing
	}
	return imaging.Resize(s.backing, w, h, imaging.Lanczos)
}

func jpegQuality(q float64) int {
	if !finitePositive(q) || q > 1 {
		q = DefaultImageQuality
	}
	n := int(math.Round(q * 100))
	if n < 1 {
		n = 1
	}
	return n
}
