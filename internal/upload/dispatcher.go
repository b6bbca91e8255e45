// Package upload sends encoded images to a remote endpoint using whichever
// transport the host provides.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	imagepkg "github.com/youruser/imagemerger/internal/image"
)

// Strategy is the transport chosen for an artifact.
type Strategy int

const (
	StrategyMultipartHTTP Strategy = iota
	StrategyNativeBridge
	StrategyFilesystemRoundtrip
)

func (s Strategy) String() string {
	switch s {
	case StrategyMultipartHTTP:
		return "multipart"
	case StrategyNativeBridge:
		return "bridge"
	case StrategyFilesystemRoundtrip:
		return "fs-roundtrip"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Capabilities describes what the host runtime offers. Nil fields are
// unavailable.
type Capabilities struct {
	Bridge     Bridge
	FileSystem FileSystem
}

// DefaultQuery is the form field name used when Params.Query is empty.
const DefaultQuery = "file"

// Params addresses the remote endpoint.
type Params struct {
	URL string
	// Query is the form field the image is sent under.
	Query string
	// Method is POST or PUT; anything else is sent as POST.
	Method string
}

func (p Params) normalized() Params {
	if p.Query == "" {
		p.Query = DefaultQuery
	}
	p.Method = strings.ToUpper(p.Method)
	if p.Method != http.MethodPut {
		p.Method = http.MethodPost
	}
	return p
}

const defaultTimeout = 60 * time.Second

// Dispatcher uploads artifacts.
type Dispatcher struct {
	caps    Capabilities
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the client used for multipart uploads.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithRateLimit makes every upload wait for a token from limiter first.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(d *Dispatcher) {
		d.limiter = limiter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher for the given host capabilities.
func NewDispatcher(caps Capabilities, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		caps:   caps,
		client: &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Capabilities returns what the dispatcher was built with.
func (d *Dispatcher) Capabilities() Capabilities { return d.caps }

// Plan picks the first strategy for a. A round trip is followed by a second
// plan for the file it produced.
func (d *Dispatcher) Plan(a imagepkg.Artifact) Strategy {
	switch a.(type) {
	case *imagepkg.Blob:
		if d.caps.FileSystem != nil {
			return StrategyFilesystemRoundtrip
		}
	case *imagepkg.LocalFile:
		if d.caps.Bridge != nil {
			return StrategyNativeBridge
		}
	}
	return StrategyMultipartHTTP
}

// Dispatch uploads a and reports to exactly one of onSuccess (raw response
// body) or onError. It returns once the transfer is over.
func (d *Dispatcher) Dispatch(ctx context.Context, a imagepkg.Artifact, p Params, onSuccess func(string), onError func(error)) {
	l := newLatch(onSuccess, onError)
	p = p.normalized()

	if a == nil {
		l.fail(fmt.Errorf("%w: nothing to upload", ErrTransfer))
		return
	}
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			l.fail(fmt.Errorf("%w: %w", ErrAbort, err))
			return
		}
	}

	strategy := d.Plan(a)
	if strategy == StrategyFilesystemRoundtrip {
		lf, err := d.roundtrip(ctx, a.(*imagepkg.Blob))
		if err != nil {
			d.logger.Error("filesystem round trip failed", "err", err)
			l.fail(err)
			return
		}
		defer func() {
			if err := d.caps.FileSystem.Remove(lf.Path()); err != nil {
				d.logger.Warn("unable to remove temp file", "path", lf.Path(), "err", err)
			}
		}()
		a = lf
		strategy = d.Plan(a)
	}

	d.logger.Info("uploading", "strategy", strategy.String(), "url", p.URL, "method", p.Method, "field", p.Query)
	switch strategy {
	case StrategyNativeBridge:
		d.bridgeUpload(ctx, a.(*imagepkg.LocalFile), p, l)
	default:
		d.multipartUpload(ctx, a, p, l)
	}
}

// Upload is Dispatch with the outcome returned.
func (d *Dispatcher) Upload(ctx context.Context, a imagepkg.Artifact, p Params) (string, error) {
	var (
		body string
		err  error
	)
	d.Dispatch(ctx, a, p, func(b string) { body = b }, func(e error) { err = e })
	return body, err
}

func (d *Dispatcher) roundtrip(ctx context.Context, b *imagepkg.Blob) (*imagepkg.LocalFile, error) {
	name := b.Name
	if name == "" {
		name = "blob"
	}
	path, err := d.caps.FileSystem.WriteTemp(ctx, name, b.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: write: %w", ErrFileSystem, err)
	}
	lf, err := d.caps.FileSystem.ReadFile(ctx, path, name, b.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", ErrFileSystem, err)
	}
	return lf, nil
}

func (d *Dispatcher) bridgeUpload(ctx context.Context, lf *imagepkg.LocalFile, p Params, l *latch) {
	res, err := d.caps.Bridge.Upload(ctx, lf.LocalURL(), p.URL, TransferOptions{
		FileKey:    p.Query,
		FileName:   lf.Name(),
		MimeType:   lf.Type(),
		HTTPMethod: p.Method,
	})
	if err != nil {
		l.fail(classify(err))
		return
	}
	if !successCode(res.ResponseCode) {
		l.fail(&TransferError{Strategy: StrategyNativeBridge, StatusCode: res.ResponseCode, Body: res.Response})
		return
	}
	l.succeed(res.Response)
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrAbort, err)
	}
	return fmt.Errorf("%w: %w", ErrTransfer, err)
}

func successCode(code int) bool {
	return code >= 200 && code < 300
}
