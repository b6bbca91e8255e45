package imagepkg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State of a compositing session. Sessions only move forward.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateFinalizing:
		return "finalizing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options is the configuration a session is created with.
type Options struct {
	// File is the base photo.
	File FileHandle
	// Output receives the raster view or the memory-mode stack. May be nil.
	Output Output
	// Width is the target logical width; non-positive keeps the natural size.
	Width float64
	// Zoom scales presentation only. Non-positive means 1, or 1/DeviceDensity
	// when FollowDensity is set.
	Zoom          float64
	FollowDensity bool
	DPI           DPI
	// DeviceDensity is the detected device pixel ratio (0 when unknown).
	DeviceDensity float64
	// BackingDensity is the native raster density (0 means 1).
	BackingDensity float64
	Filename       string
	ImageQuality   float64
	ReturnAsString bool
	SaveMemory     bool
	NamedFiles     bool
	// OnError is told about base image decode failures.
	OnError func(error)
	Logger  *slog.Logger
}

// Placement positions an overlay by its centre.
type Placement struct {
	X, Y          float64
	Width, Height float64
}

// Origin is the top-left corner of the placement box.
func (p Placement) Origin() (float64, float64) {
	return p.X - p.Width/2, p.Y - p.Height/2
}

// Session is one compositing context: a base photo scaled onto a surface,
// with overlays drawn on top.
type Session struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger

	state      State
	base       *DecodedImage
	surface    *Surface
	stack      *Stack
	density    Density
	zoom       float64
	width      float64
	height     float64
	viewWidth  float64
	viewHeight float64
}

// New creates an uninitialized session. Call Load to decode the base photo.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{opts: opts, logger: logger}
}

// Open creates a session and loads its base photo.
func Open(ctx context.Context, opts Options) (*Session, error) {
	s := New(opts)
	if err := s.Load(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Load decodes the base photo and initializes the surface. A decode failure
// is passed to OnError when set and is always returned.
func (s *Session) Load(ctx context.Context) error {
	img, err := Decode(ctx, s.opts.File)
	if err != nil {
		s.logger.Error("base image decode failed", "err", err)
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return err
	}
	if err := s.Init(img); err != nil {
		s.logger.Error("session init failed", "err", err)
		if s.opts.OnError != nil {
			s.opts.OnError(err)
		}
		return err
	}
	return nil
}

// Init draws base onto a fresh surface and attaches the result to the output.
func (s *Session) Init(base *DecodedImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("session already %s", s.state)
	}

	width, height := float64(base.NaturalWidth), float64(base.NaturalHeight)
	if finitePositive(s.opts.Width) {
		ratio := width / s.opts.Width
		width = s.opts.Width
		height = height / ratio
	}

	zoom := s.opts.Zoom
	if !finitePositive(zoom) {
		zoom = 1
		if s.opts.FollowDensity && finitePositive(s.opts.DeviceDensity) {
			zoom = 1 / s.opts.DeviceDensity
		}
	}

	density := Density{
		DPI:     s.opts.DPI,
		Device:  s.opts.DeviceDensity,
		Backing: s.opts.BackingDensity,
	}
	if err := CheckSurface(width, height, density); err != nil {
		return err
	}
	surface := NewSurface(width, height, density)
	surface.DrawImage(base.Image, 0, 0, width, height)

	s.base = base
	s.density = density
	s.surface = surface
	s.zoom = zoom
	s.width, s.height = width, height
	s.viewWidth, s.viewHeight = width*zoom, height*zoom

	if s.opts.SaveMemory {
		s.stack = newStack(s.viewWidth, s.viewHeight, Node{
			Image:  base.Image,
			Src:    base.Src,
			Width:  s.viewWidth,
			Height: s.viewHeight,
		})
	}
	if out := s.opts.Output; out != nil {
		out.Clear()
		if s.stack != nil {
			out.Attach(s.stack)
		} else {
			out.Attach(&RasterView{Surface: surface, Width: s.viewWidth, Height: s.viewHeight})
		}
	}

	s.state = StateReady
	bw, bh := surface.BackingSize()
	s.logger.Debug("session ready",
		"width", width, "height", height, "zoom", zoom,
		"scale", surface.Scale(), "backing_width", bw, "backing_height", bh,
		"save_memory", s.opts.SaveMemory)
	return nil
}

// AddImage resolves src and draws it at p. Width and height default to the
// image's natural size. A source that fails to load leaves the session
// untouched and returns an error wrapping ErrOverlayLoad.
func (s *Session) AddImage(ctx context.Context, src Source, p Placement) error {
	if s.State() != StateReady {
		return ErrNotReady
	}
	img, err := src.Resolve(ctx)
	if err != nil {
		s.logger.Warn("overlay load failed", "err", err)
		return fmt.Errorf("%w: %w", ErrOverlayLoad, err)
	}
	return s.draw(img, p)
}

// AddImageAsync is AddImage on its own goroutine. Overlays issued this way
// are drawn in the order their sources finish loading.
func (s *Session) AddImageAsync(ctx context.Context, src Source, p Placement) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.AddImage(ctx, src, p)
	}()
	return done
}

func (s *Session) draw(img *DecodedImage, p Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}
	if !(p.Width > 0) {
		p.Width = float64(img.NaturalWidth)
	}
	if !(p.Height > 0) {
		p.Height = float64(img.NaturalHeight)
	}
	left, top := p.Origin()
	s.surface.DrawImage(img.Image, left, top, p.Width, p.Height)

	if s.stack != nil {
		s.stack.Append(Node{
			Image:  img.Image,
			Src:    img.Src,
			Left:   left * s.zoom,
			Top:    top * s.zoom,
			Width:  p.Width * s.zoom,
			Height: p.Height * s.zoom,
		})
	}
	return nil
}

// RemoveOverlay drops the i-th memory-mode overlay and redraws the surface
// from the base image and the overlays that remain, so the encoded output
// matches the stack.
func (s *Session) RemoveOverlay(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}
	if s.stack == nil {
		return ErrNoStack
	}
	if err := s.stack.Remove(i); err != nil {
		return err
	}

	surface := NewSurface(s.width, s.height, s.density)
	surface.DrawImage(s.base.Image, 0, 0, s.width, s.height)
	for _, n := range s.stack.Overlays() {
		if n.Image == nil {
			continue
		}
		surface.DrawImage(n.Image, n.Left/s.zoom, n.Top/s.zoom, n.Width/s.zoom, n.Height/s.zoom)
	}
	s.surface = surface
	s.logger.Debug("overlay removed", "index", i, "remaining", len(s.stack.Overlays()))
	return nil
}

// Encode serializes the surface per the session's filename, quality and
// string mode.
func (s *Session) Encode(ctx context.Context) (Artifact, error) {
	return s.EncodeWith(ctx, s.EncodeOptions())
}

// EncodeWith serializes the surface with explicit encoder settings.
func (s *Session) EncodeWith(ctx context.Context, opts EncodeOptions) (Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUninitialized {
		return nil, ErrNotReady
	}
	return Encode(ctx, s.surface, opts)
}

// EncodeOptions returns the encoder settings derived from the session options.
func (s *Session) EncodeOptions() EncodeOptions {
	return EncodeOptions{
		Filename:       s.opts.Filename,
		Quality:        s.opts.ImageQuality,
		ReturnAsString: s.opts.ReturnAsString,
		NamedFiles:     s.opts.NamedFiles,
	}
}

// Finalize stops the session from accepting overlays. Encoding stays possible.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUninitialized:
		return ErrNotReady
	case StateReady:
		s.state = StateFinalizing
	}
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Size is the logical surface size.
func (s *Session) Size() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// ViewSize is the logical size multiplied by the zoom.
func (s *Session) ViewSize() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewWidth, s.viewHeight
}

func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

// Surface is nil until the session is ready.
func (s *Session) Surface() *Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Stack is nil unless the session runs in memory mode.
func (s *Session) Stack() *Stack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stack
}

func (s *Session) Base() *DecodedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

func (s *Session) Options() Options { return s.opts }

// IsNotReady reports whether err came from an operation issued too early.
func IsNotReady(err error) bool { return errors.Is(err, ErrNotReady) }
