package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	imagepkg "github.com/youruser/imagemerger/internal/image"
	"github.com/youruser/imagemerger/internal/stickers"
	"github.com/youruser/imagemerger/internal/upload"
)

// health
func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listStickers(c *gin.Context) {
	opt := stickers.FilterOptions{
		FreeWords: c.Query("q"),
		Source:    c.Query("source"),
	}
	if tags := c.Query("tags"); tags != "" {
		opt.Tags = strings.Split(tags, ",")
	}
	out := stickers.Filter(s.catalog(), opt)
	c.JSON(http.StatusOK, gin.H{"count": len(out), "stickers": out})
}

type sessionResponse struct {
	ID            string          `json:"id"`
	State         string          `json:"state"`
	Width         float64         `json:"width"`
	Height        float64         `json:"height"`
	ViewWidth     float64         `json:"view_width"`
	ViewHeight    float64         `json:"view_height"`
	Zoom          float64         `json:"zoom"`
	Scale         float64         `json:"scale"`
	BackingWidth  int             `json:"backing_width"`
	BackingHeight int             `json:"backing_height"`
	SaveMemory    bool            `json:"save_memory"`
	Overlays      []imagepkg.Node `json:"overlays,omitempty"`
}

func describe(l live) sessionResponse {
	sess := l.session
	resp := sessionResponse{ID: l.id, State: sess.State().String()}
	resp.Width, resp.Height = sess.Size()
	resp.ViewWidth, resp.ViewHeight = sess.ViewSize()
	resp.Zoom = sess.Zoom()
	if surface := sess.Surface(); surface != nil {
		resp.Scale = surface.Scale()
		resp.BackingWidth, resp.BackingHeight = surface.BackingSize()
	}
	if stack := sess.Stack(); stack != nil {
		resp.SaveMemory = true
		resp.Overlays = stack.Overlays()
	}
	return resp
}

// createSession starts a new session from the uploaded base photo. The
// previous session is dropped even when the new photo fails to decode.
func (s *Server) createSession(c *gin.Context) {
	file, err := readFormFile(c, "file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := imagepkg.Options{
		File:          file,
		Filename:      c.DefaultPostForm("filename", "file.png"),
		DeviceDensity: s.cfg.DeviceDensity,
		NamedFiles:    s.cfg.NamedFiles,
	}
	var parseErrs []error
	opts.Width = formFloat(c, "width", &parseErrs)
	opts.Zoom = formFloat(c, "zoom", &parseErrs)
	opts.ImageQuality = formFloat(c, "imageQuality", &parseErrs)
	if d := formFloat(c, "devicePixelRatio", &parseErrs); d > 0 {
		opts.DeviceDensity = d
	}
	opts.ReturnAsString = formBool(c, "returnAsString", &parseErrs)
	opts.SaveMemory = formBool(c, "saveMemory", &parseErrs)
	opts.FollowDensity = formBool(c, "followDensity", &parseErrs)
	dpi, err := imagepkg.ParseDPI(c.PostForm("dpi"))
	if err != nil {
		parseErrs = append(parseErrs, err)
	}
	opts.DPI = dpi
	if err := errors.Join(parseErrs...); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target := &imagepkg.Target{}
	opts.Output = target
	sess, err := imagepkg.Open(c.Request.Context(), opts)
	s.metrics.sessions.WithLabelValues(result(err)).Inc()
	id := s.replace(sess, target, file)
	if err != nil {
		writeError(c, err)
		return
	}

	slog.Info("Session created", "session_id", id, "file", file.Name(), "size", file.Size())
	c.JSON(http.StatusCreated, describe(live{id: id, session: sess, target: target}))
}

func (s *Server) getSession(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, describe(l))
}

type overlayRequest struct {
	URL       string  `json:"url" form:"url"`
	StickerID string  `json:"sticker_id" form:"sticker_id"`
	X         float64 `json:"x" form:"x"`
	Y         float64 `json:"y" form:"y"`
	Width     float64 `json:"width" form:"width"`
	Height    float64 `json:"height" form:"height"`
}

func (s *Server) addImage(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}

	var req overlayRequest
	var src imagepkg.Source
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := c.FormFile("image"); err == nil {
			file, err := readFormFile(c, "image")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			src = imagepkg.FileSource{Handle: file}
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if src == nil {
		switch {
		case req.StickerID != "":
			st, found := stickers.Find(s.catalog(), req.StickerID)
			if !found {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown sticker " + req.StickerID})
				return
			}
			src = imagepkg.SourceFromString(st.ImageURL, s.client)
			if req.Width <= 0 && req.Height <= 0 {
				req.Width, req.Height = float64(st.Width), float64(st.Height)
			}
		case isRemoteURL(req.URL):
			if !s.cfg.HostAllowed(req.URL) {
				c.JSON(http.StatusForbidden, gin.H{"error": "overlay host is not allowed"})
				return
			}
			src = imagepkg.SourceFromString(req.URL, s.client)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "one of image, sticker_id or an http(s)/data url is required"})
			return
		}
	}

	err := l.session.AddImage(c.Request.Context(), src, imagepkg.Placement{
		X: req.X, Y: req.Y, Width: req.Width, Height: req.Height,
	})
	s.metrics.overlays.WithLabelValues(result(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(l))
}

type qrRequest struct {
	Text string  `json:"text" binding:"required"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size int     `json:"size"`
}

func (s *Server) addQR(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	var req qrRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := l.session.AddImage(c.Request.Context(), imagepkg.QRSource{Text: req.Text, Size: req.Size}, imagepkg.Placement{
		X: req.X, Y: req.Y,
	})
	s.metrics.overlays.WithLabelValues(result(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(l))
}

// view presents the session the way it is attached to its output: the
// memory-mode stack as HTML, the raster surface as a PNG preview.
func (s *Server) view(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	switch v := l.target.View().(type) {
	case *imagepkg.Stack:
		w, h := v.Size()
		c.HTML(http.StatusOK, stackTemplateName, gin.H{
			"Width":    w,
			"Height":   h,
			"Overlays": v.Overlays(),
		})
	case *imagepkg.RasterView:
		art, err := l.session.EncodeWith(c.Request.Context(), imagepkg.EncodeOptions{
			Filename:   "preview.png",
			NamedFiles: true,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		f := art.(*imagepkg.File)
		c.Header("X-View-Width", strconv.FormatFloat(v.Width, 'f', -1, 64))
		c.Header("X-View-Height", strconv.FormatFloat(v.Height, 'f', -1, 64))
		c.Data(http.StatusOK, f.Type(), f.Bytes())
	default:
		writeError(c, imagepkg.ErrNotReady)
	}
}

func (s *Server) baseImage(c *gin.Context) {
	if _, ok := s.requireSession(c); !ok {
		return
	}
	f := s.baseFile()
	mimeType := f.Type()
	if mimeType == "" {
		mimeType = imagepkg.TypeByExt(f.Name())
	}
	c.Data(http.StatusOK, mimeType, f.Bytes())
}

func (s *Server) layerImage(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	node, found := s.layer(c, l)
	if !found {
		return
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, node.Image, imaging.PNG); err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, imagepkg.MIMETypePNG, buf.Bytes())
}

func (s *Server) removeLayer(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	if _, found := s.layer(c, l); !found {
		return
	}
	idx, _ := strconv.Atoi(c.Param("index"))
	if err := l.session.RemoveOverlay(idx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, describe(l))
}

func (s *Server) layer(c *gin.Context, l live) (imagepkg.Node, bool) {
	stack := l.session.Stack()
	if stack == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "session is not in memory mode"})
		return imagepkg.Node{}, false
	}
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid layer index"})
		return imagepkg.Node{}, false
	}
	node, found := stack.Overlay(idx)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no layer %d", idx)})
		return imagepkg.Node{}, false
	}
	return node, true
}

func (s *Server) output(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	art, err := l.session.Encode(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	switch v := art.(type) {
	case imagepkg.DataURL:
		s.metrics.encodes.WithLabelValues(dataURLType(string(v))).Inc()
		c.String(http.StatusOK, string(v))
	case *imagepkg.File:
		s.metrics.encodes.WithLabelValues(v.Type()).Inc()
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", v.Name()))
		c.Data(http.StatusOK, v.Type(), v.Bytes())
	case *imagepkg.Blob:
		s.metrics.encodes.WithLabelValues(v.Type).Inc()
		c.Data(http.StatusOK, v.Type, v.Data)
	}
}

type uploadRequest struct {
	URL    string `json:"url" binding:"required"`
	Query  string `json:"query"`
	Method string `json:"method"`
}

// uploadOutput encodes the session, finalizes it and sends the result to
// the requested endpoint. The upstream body is returned verbatim.
func (s *Server) uploadOutput(c *gin.Context) {
	l, ok := s.requireSession(c)
	if !ok {
		return
	}
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	art, err := l.session.Encode(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if err := l.session.Finalize(); err != nil {
		writeError(c, err)
		return
	}

	strategy := s.dispatcher.Plan(art)
	body, err := s.dispatcher.Upload(c.Request.Context(), art, upload.Params{
		URL:    req.URL,
		Query:  req.Query,
		Method: req.Method,
	})
	s.metrics.uploads.WithLabelValues(strategy.String(), result(err)).Inc()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": strategy.String(), "response": body})
}

func (s *Server) requireSession(c *gin.Context) (live, bool) {
	l, ok := s.current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session, upload a base photo first"})
	}
	return l, ok
}

func writeError(c *gin.Context, err error) {
	status := errorStatus(err)
	resp := gin.H{"error": err.Error()}
	var te *upload.TransferError
	if errors.As(err, &te) {
		resp["status"] = te.StatusCode
		resp["body"] = te.Body
	}
	slog.Error("Request failed", "path", c.FullPath(), "status", status, "err", err)
	c.JSON(status, resp)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, imagepkg.ErrNotReady),
		errors.Is(err, imagepkg.ErrNoStack):
		return http.StatusConflict
	case errors.Is(err, imagepkg.ErrNoLayer):
		return http.StatusNotFound
	case errors.Is(err, imagepkg.ErrInvalidHandle),
		errors.Is(err, imagepkg.ErrUnknownImageType),
		errors.Is(err, imagepkg.ErrDecode),
		errors.Is(err, imagepkg.ErrTooLarge),
		errors.Is(err, imagepkg.ErrOverlayLoad):
		return http.StatusUnprocessableEntity
	case errors.Is(err, upload.ErrAbort):
		return http.StatusRequestTimeout
	case errors.Is(err, upload.ErrTransfer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readFormFile(c *gin.Context, field string) (*imagepkg.File, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", field, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	declared := fh.Header.Get("Content-Type")
	if declared == "application/octet-stream" {
		// pickers that do not know the type send this; let the decoder infer it
		declared = ""
	}
	return imagepkg.NewFile(fh.Filename, declared, data), nil
}

func formFloat(c *gin.Context, key string, errs *[]error) float64 {
	v := c.PostForm(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return f
}

func formBool(c *gin.Context, key string, errs *[]error) bool {
	v := c.PostForm(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return b
}

func isRemoteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "data:")
}

func dataURLType(s string) string {
	s = strings.TrimPrefix(s, "data:")
	if i := strings.IndexByte(s, ';'); i != -1 {
		return s[:i]
	}
	return "unknown"
}
