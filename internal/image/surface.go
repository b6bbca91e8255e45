package imagepkg

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// DPI is either "auto" or an explicit pixel density.
type DPI struct {
	Auto  bool
	Value float64
}

// AutoDPI follows the device density.
var AutoDPI = DPI{Auto: true}

// ExplicitDPI pins the density to v. Non-finite or non-positive values mean auto.
func ExplicitDPI(v float64) DPI {
	if !finitePositive(v) {
		return AutoDPI
	}
	return DPI{Value: v}
}

// ParseDPI accepts "auto", "" or a number.
func ParseDPI(s string) (DPI, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return AutoDPI, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return AutoDPI, fmt.Errorf("invalid dpi %q: %w", s, err)
	}
	return ExplicitDPI(v), nil
}

func (d DPI) String() string {
	if d.Auto {
		return "auto"
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}

// Density describes the pixel densities a surface is created for.
type Density struct {
	DPI DPI
	// Device is the detected device pixel ratio; 0 when unknown.
	Device float64
	// Backing is the native density of the raster buffer; 0 means 1.
	Backing float64
}

// Target resolves the density to render at: explicit DPI, then device, then 1.
func (d Density) Target() float64 {
	if !d.DPI.Auto && finitePositive(d.DPI.Value) {
		return d.DPI.Value
	}
	if finitePositive(d.Device) {
		return d.Device
	}
	return 1
}

// Scale is the factor between logical units and backing pixels.
func (d Density) Scale() float64 {
	backing := d.Backing
	if !finitePositive(backing) {
		backing = 1
	}
	return d.Target() / backing
}

// MaxPixels bounds the pixel count of decoded images and backing buffers.
const MaxPixels = 64 << 20

// checkPixels fails with ErrTooLarge when a w×h buffer exceeds MaxPixels.
func checkPixels(w, h float64) error {
	if !(w*h <= MaxPixels) {
		return fmt.Errorf("%w: %gx%g exceeds %d pixels", ErrTooLarge, w, h, MaxPixels)
	}
	return nil
}

// Surface is a raster buffer addressed in logical units. When the backing
// scale is not 1 the buffer holds logical*scale pixels and every draw is
// transformed accordingly.
type Surface struct {
	width, height float64
	scale         float64
	backing       *image.NRGBA
	interp        draw.Interpolator
}

// NewSurface creates a surface of the given logical size. The density is
// resolved once here and stays fixed. Callers check the size with
// CheckSurface first.
func NewSurface(width, height float64, density Density) *Surface {
	scale := density.Scale()
	bw, bh := pixels(width), pixels(height)
	if scale != 1 {
		bw, bh = pixels(width*scale), pixels(height*scale)
	}
	return &Surface{
		width:   width,
		height:  height,
		scale:   scale,
		backing: imaging.New(bw, bh, color.NRGBA{}),
		interp:  draw.CatmullRom,
	}
}

// CheckSurface reports whether a surface of the given logical size and
// density fits within MaxPixels.
func CheckSurface(width, height float64, density Density) error {
	scale := density.Scale()
	return checkPixels(math.Round(width*scale), math.Round(height*scale))
}

// LogicalSize is the size draw coordinates are expressed in.
func (s *Surface) LogicalSize() (float64, float64) { return s.width, s.height }

// DisplaySize is the size the surface is shown at; it is pinned to the
// logical size whatever the backing resolution.
func (s *Surface) DisplaySize() (float64, float64) { return s.width, s.height }

// BackingSize is the pixel size of the raster buffer.
func (s *Surface) BackingSize() (int, int) {
	b := s.backing.Bounds()
	return b.Dx(), b.Dy()
}

func (s *Surface) Scale() float64 { return s.scale }

// Backing exposes the raster buffer. Callers must not keep it across draws.
func (s *Surface) Backing() *image.NRGBA { return s.backing }

// DrawImage scales the whole of src into the logical box (x, y, w, h).
func (s *Surface) DrawImage(src image.Image, x, y, w, h float64) {
	sb := src.Bounds()
	if sb.Empty() || !(w > 0) || !(h > 0) {
		return
	}
	sx := w * s.scale / float64(sb.Dx())
	sy := h * s.scale / float64(sb.Dy())
	m := f64.Aff3{
		sx, 0, x*s.scale - float64(sb.Min.X)*sx,
		0, sy, y*s.scale - float64(sb.Min.Y)*sy,
	}
	s.interp.Transform(s.backing, m, src, sb, draw.Over, nil)
}

// pixels rounds a logical length to a whole pixel count of at least 1.
func pixels(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	return n
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
