package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/youruser/imagemerger/internal/config"
	imagepkg "github.com/youruser/imagemerger/internal/image"
	"github.com/youruser/imagemerger/internal/layout"
	"github.com/youruser/imagemerger/internal/stickers"
	"github.com/youruser/imagemerger/internal/upload"
	"github.com/youruser/imagemerger/internal/util"
)

const defaultResultExpr = "url || data.img_url"

type mergeOptions struct {
	layoutPath string
	base       string
	output     string
	dpi        string
	width      float64
	zoom       float64
	quality    float64
	asString   bool
	saveMemory bool
	uploadURL  string
	query      string
	method     string
	resultExpr string
	parallel   int
}

type mergeResult struct {
	session  *imagepkg.Session
	artifact imagepkg.Artifact
	// skipped counts overlays whose source failed to load.
	skipped   int
	response  string
	resultURL string
}

func newMergeCmd() *cobra.Command {
	var opts mergeOptions

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Composite a photo from a YAML layout",
		Long: `Runs one merge session without the HTTP API.

The base photo is scaled to the layout width, every overlay is drawn at its
centre point and the result is written to --output (or the layout filename).
With an upload url the result is also sent and the image URL is read from the
response with a JMESPath expression.`,
		Example: `  # Write merged.jpg from a layout
  imagemerger merge --layout layout.yaml --base photo.jpg --output merged.jpg

  # Merge and upload
  imagemerger merge -l layout.yaml -b photo.jpg --upload-url https://example.com/api --query upload`,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := runMerge(cmd.Context(), config.Load(), opts)
			if err != nil {
				return err
			}
			if res.resultURL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.resultURL)
			} else if res.response != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.response)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.layoutPath, "layout", "l", "", "YAML layout file")
	f.StringVarP(&opts.base, "base", "b", "", "Base photo (overrides the layout)")
	f.StringVarP(&opts.output, "output", "o", "", "Output file, '-' for stdout (default: layout filename)")
	f.StringVar(&opts.dpi, "dpi", "", `Pixel density, "auto" or a number`)
	f.Float64Var(&opts.width, "width", 0, "Target logical width")
	f.Float64Var(&opts.zoom, "zoom", 0, "Presentation zoom")
	f.Float64Var(&opts.quality, "quality", 0, "JPEG quality in (0,1]")
	f.BoolVar(&opts.asString, "string", false, "Produce a base64 data URL")
	f.BoolVar(&opts.saveMemory, "save-memory", false, "Keep overlays as separate layers")
	f.StringVar(&opts.uploadURL, "upload-url", "", "Upload endpoint")
	f.StringVar(&opts.query, "query", "", "Form field name for the upload (default file)")
	f.StringVar(&opts.method, "method", "", "POST or PUT")
	f.StringVar(&opts.resultExpr, "result", "", "JMESPath expression for the image URL in the response")
	f.IntVar(&opts.parallel, "parallel", 4, "Overlays loaded at once")

	return cmd
}

func runMerge(ctx context.Context, cfg config.Config, opts mergeOptions) (*mergeResult, error) {
	l := &layout.Layout{}
	if opts.layoutPath != "" {
		var err error
		if l, err = layout.Load(opts.layoutPath); err != nil {
			return nil, err
		}
	}
	applyFlags(l, opts)
	if l.Base == "" {
		return nil, errors.New("no base photo: pass --base or set base in the layout")
	}
	slog.Debug("Merge layout", "layout", l.Text())

	dpi, err := imagepkg.ParseDPI(l.DPI)
	if err != nil {
		return nil, err
	}
	base, err := imagepkg.OpenLocalFile(l.Base)
	if err != nil {
		return nil, err
	}

	sess, err := imagepkg.Open(ctx, imagepkg.Options{
		File:           base,
		Width:          l.Width,
		Zoom:           l.Zoom,
		DPI:            dpi,
		DeviceDensity:  cfg.DeviceDensity,
		Filename:       l.Filename,
		ImageQuality:   l.ImageQuality,
		ReturnAsString: l.ReturnAsString,
		SaveMemory:     l.SaveMemory,
		NamedFiles:     cfg.NamedFiles,
	})
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient()
	images, err := preloadOverlays(ctx, cfg, client, l.Overlays, opts.parallel)
	if err != nil {
		return nil, err
	}

	res := &mergeResult{session: sess}
	for i, o := range l.Overlays {
		if images[i] == nil {
			res.skipped++
			continue
		}
		if err := sess.AddImage(ctx, images[i], imagepkg.Placement{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}); err != nil {
			return nil, err
		}
	}

	art, err := sess.Encode(ctx)
	if err != nil {
		return nil, err
	}
	res.artifact = art

	if opts.output != "" || l.Upload == nil {
		out := opts.output
		if out == "" {
			out = l.Filename
		}
		if err := writeArtifact(out, art, os.Stdout); err != nil {
			return nil, err
		}
	}

	if l.Upload == nil {
		return res, nil
	}

	if err := sess.Finalize(); err != nil {
		return nil, err
	}
	body, err := cfg.Dispatcher(client).Upload(ctx, art, upload.Params{
		URL:    l.Upload.URL,
		Query:  l.Upload.Query,
		Method: l.Upload.Method,
	})
	if err != nil {
		return nil, err
	}
	res.response = body

	expr := l.Upload.Result
	if expr == "" {
		expr = defaultResultExpr
	}
	if u, err := extractResultURL(body, expr); err != nil {
		slog.Warn("No image URL in upload response", "expr", expr, "err", err)
	} else {
		res.resultURL = u
	}
	return res, nil
}

func applyFlags(l *layout.Layout, opts mergeOptions) {
	if opts.base != "" {
		l.Base = opts.base
	}
	if opts.dpi != "" {
		l.DPI = opts.dpi
	}
	if opts.width > 0 {
		l.Width = opts.width
	}
	if opts.zoom > 0 {
		l.Zoom = opts.zoom
	}
	if opts.quality > 0 {
		l.ImageQuality = opts.quality
	}
	if opts.asString {
		l.ReturnAsString = true
	}
	if opts.saveMemory {
		l.SaveMemory = true
	}
	if l.Filename == "" {
		l.Filename = "file.png"
	}
	if opts.uploadURL != "" {
		if l.Upload == nil {
			l.Upload = &layout.Upload{}
		}
		l.Upload.URL = opts.uploadURL
	}
	if l.Upload != nil {
		if opts.query != "" {
			l.Upload.Query = opts.query
		}
		if opts.method != "" {
			l.Upload.Method = opts.method
		}
		if opts.resultExpr != "" {
			l.Upload.Result = opts.resultExpr
		}
	}
}

// preloadOverlays resolves every overlay source concurrently. An overlay
// that fails to load is logged and left nil so that the merge goes on
// without it.
func preloadOverlays(ctx context.Context, cfg config.Config, client *http.Client, overlays []layout.Overlay, parallel int) ([]*imagepkg.DecodedImage, error) {
	var catalog []stickers.Sticker
	for _, o := range overlays {
		if o.Sticker != "" {
			var err error
			if catalog, err = stickers.LoadCatalog(cfg.StickersDir); err != nil {
				return nil, err
			}
			break
		}
	}

	images := make([]*imagepkg.DecodedImage, len(overlays))
	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, o := range overlays {
		g.Go(func() error {
			src, err := overlaySource(o, catalog, client)
			if err == nil && isRemote(o.Src) && !cfg.HostAllowed(o.Src) {
				err = fmt.Errorf("overlay host not allowed: %s", o.Src)
			}
			if err == nil {
				images[i], err = src.Resolve(gctx)
			}
			if err != nil {
				slog.Warn("Skipping overlay", "index", i, "err", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func overlaySource(o layout.Overlay, catalog []stickers.Sticker, client *http.Client) (imagepkg.Source, error) {
	switch {
	case o.QR != "":
		size := int(o.Width)
		return imagepkg.QRSource{Text: o.QR, Size: size}, nil
	case o.Sticker != "":
		st, ok := stickers.Find(catalog, o.Sticker)
		if !ok {
			return nil, fmt.Errorf("unknown sticker %q", o.Sticker)
		}
		return imagepkg.SourceFromString(st.ImageURL, client), nil
	default:
		return imagepkg.SourceFromString(o.Src, client), nil
	}
}

func writeArtifact(path string, art imagepkg.Artifact, stdout io.Writer) error {
	var data []byte
	switch v := art.(type) {
	case imagepkg.DataURL:
		data = []byte(v)
	case *imagepkg.File:
		data = v.Bytes()
	case *imagepkg.Blob:
		data = v.Data
	default:
		return fmt.Errorf("cannot write %T", art)
	}
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := util.WriteFile(path, data); err != nil {
		return err
	}
	slog.Info("Merged image written", "path", path, "bytes", len(data))
	return nil
}
