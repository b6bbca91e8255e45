package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	imagepkg "github.com/youruser/imagemerger/internal/image"
)

type received struct {
	method   string
	field    string
	filename string
	mimeType string
	data     []byte
	value    string
}

// formServer records the first part of each multipart request and answers
// with status and body.
func formServer(t *testing.T, status int, body string) (*httptest.Server, <-chan received) {
	t.Helper()
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := received{method: r.Method}
		mr, err := r.MultipartReader()
		if err == nil {
			if part, err := mr.NextPart(); err == nil {
				rec.field = part.FormName()
				rec.filename = part.FileName()
				rec.mimeType = part.Header.Get("Content-Type")
				data, _ := io.ReadAll(part)
				if rec.filename == "" {
					rec.value = string(data)
				} else {
					rec.data = data
				}
			}
		}
		got <- rec
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestParamsNormalized(t *testing.T) {
	p := Params{URL: "http://x"}.normalized()
	assert.Equal(t, DefaultQuery, p.Query)
	assert.Equal(t, http.MethodPost, p.Method)

	assert.Equal(t, http.MethodPut, Params{Method: "put"}.normalized().Method)
	assert.Equal(t, http.MethodPost, Params{Method: "PATCH"}.normalized().Method)
	assert.Equal(t, "upload", Params{Query: "upload"}.normalized().Query)
}

func TestPlan(t *testing.T) {
	lf := &imagepkg.LocalFile{}
	blob := &imagepkg.Blob{}

	bare := NewDispatcher(Capabilities{})
	assert.Equal(t, StrategyMultipartHTTP, bare.Plan(blob))
	assert.Equal(t, StrategyMultipartHTTP, bare.Plan(lf))
	assert.Equal(t, StrategyMultipartHTTP, bare.Plan(imagepkg.DataURL("data:")))

	full := NewDispatcher(Capabilities{Bridge: &fakeBridge{}, FileSystem: NewTempFS(t.TempDir())})
	assert.Equal(t, StrategyFilesystemRoundtrip, full.Plan(blob))
	assert.Equal(t, StrategyNativeBridge, full.Plan(lf))
	assert.Equal(t, StrategyMultipartHTTP, full.Plan(imagepkg.NewFile("a.png", imagepkg.MIMETypePNG, nil)))
	assert.Equal(t, "fs-roundtrip", StrategyFilesystemRoundtrip.String())
}

func TestUploadMultipartFile(t *testing.T) {
	srv, got := formServer(t, http.StatusOK, `{"url":"https://cdn/x.png"}`)
	d := NewDispatcher(Capabilities{}, WithHTTPClient(srv.Client()))

	body, err := d.Upload(context.Background(), imagepkg.NewFile("merged.png", imagepkg.MIMETypePNG, []byte("png-bytes")),
		Params{URL: srv.URL, Query: "upload", Method: "put"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://cdn/x.png"}`, body)

	rec := <-got
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "upload", rec.field)
	assert.Equal(t, "merged.png", rec.filename)
	assert.Equal(t, imagepkg.MIMETypePNG, rec.mimeType)
	assert.Equal(t, []byte("png-bytes"), rec.data)
}

func TestUploadMultipartDataURL(t *testing.T) {
	srv, got := formServer(t, http.StatusCreated, "ok")
	d := NewDispatcher(Capabilities{}, WithHTTPClient(srv.Client()))

	body, err := d.Upload(context.Background(), imagepkg.DataURL("data:image/png;base64,AAAA"), Params{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", body)

	rec := <-got
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, DefaultQuery, rec.field)
	assert.Equal(t, "data:image/png;base64,AAAA", rec.value)
}

func TestUploadNon2xx(t *testing.T) {
	srv, _ := formServer(t, http.StatusInternalServerError, "boom")
	d := NewDispatcher(Capabilities{}, WithHTTPClient(srv.Client()))

	var (
		successes int
		errs      []error
	)
	d.Dispatch(context.Background(), &imagepkg.Blob{Data: []byte("x")}, Params{URL: srv.URL},
		func(string) { successes++ },
		func(err error) { errs = append(errs, err) })

	assert.Zero(t, successes)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrTransfer)
	var te *TransferError
	require.True(t, errors.As(errs[0], &te))
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, "boom", te.Body)
	assert.Equal(t, StrategyMultipartHTTP, te.Strategy)
}

func TestUploadNothing(t *testing.T) {
	_, err := NewDispatcher(Capabilities{}).Upload(context.Background(), nil, Params{URL: "http://x"})
	assert.ErrorIs(t, err, ErrTransfer)
}

func TestUploadAbortReportsOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	var calls atomic.Int32
	var first error
	NewDispatcher(Capabilities{}, WithHTTPClient(srv.Client())).Dispatch(ctx,
		imagepkg.NewFile("a.png", imagepkg.MIMETypePNG, []byte("x")), Params{URL: srv.URL},
		func(string) { calls.Add(1) },
		func(err error) {
			if calls.Add(1) == 1 {
				first = err
			}
		})

	assert.Equal(t, int32(1), calls.Load())
	assert.ErrorIs(t, first, ErrAbort)
}

func TestLatchFiresOnce(t *testing.T) {
	var successes, failures int
	l := newLatch(func(string) { successes++ }, func(error) { failures++ })
	l.fail(ErrAbort)
	l.succeed("late")
	l.fail(ErrTransfer)
	assert.Equal(t, 0, successes)
	assert.Equal(t, 1, failures)

	// nil callbacks are allowed
	newLatch(nil, nil).succeed("x")
}

type fakeBridge struct {
	localURL string
	target   string
	opts     TransferOptions
	data     []byte
	result   *TransferResult
	err      error
}

func (b *fakeBridge) Upload(_ context.Context, localURL, target string, opts TransferOptions) (*TransferResult, error) {
	b.localURL, b.target, b.opts = localURL, target, opts
	path, err := pathFromLocalURL(localURL)
	if err != nil {
		return nil, err
	}
	if b.data, err = os.ReadFile(path); err != nil {
		return nil, err
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.result, nil
}

func TestUploadRoundtripThroughBridge(t *testing.T) {
	fs := NewTempFS(t.TempDir())
	bridge := &fakeBridge{result: &TransferResult{ResponseCode: 200, Response: `{"data":{"img_url":"u"}}`}}
	d := NewDispatcher(Capabilities{Bridge: bridge, FileSystem: fs})

	body, err := d.Upload(context.Background(),
		&imagepkg.Blob{Name: "merged.jpg", Type: imagepkg.MIMETypeJPEG, Data: []byte("jpeg")},
		Params{URL: "https://api.example.com/up", Query: "upload"})
	require.NoError(t, err)
	assert.Equal(t, `{"data":{"img_url":"u"}}`, body)

	assert.Equal(t, "https://api.example.com/up", bridge.target)
	assert.Equal(t, TransferOptions{FileKey: "upload", FileName: "merged.jpg", MimeType: imagepkg.MIMETypeJPEG, HTTPMethod: http.MethodPost}, bridge.opts)
	assert.Equal(t, []byte("jpeg"), bridge.data)

	// the temp copy is gone once the upload is over
	entries, err := os.ReadDir(fs.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadBridgeFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	lf, err := imagepkg.OpenLocalFileAs(path, "a.png", imagepkg.MIMETypePNG)
	require.NoError(t, err)

	bridge := &fakeBridge{result: &TransferResult{ResponseCode: 404, Response: "nope"}}
	_, err = NewDispatcher(Capabilities{Bridge: bridge}).Upload(context.Background(), lf, Params{URL: "http://x"})
	var te *TransferError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StrategyNativeBridge, te.Strategy)
	assert.Equal(t, 404, te.StatusCode)

	bridge = &fakeBridge{err: context.Canceled}
	_, err = NewDispatcher(Capabilities{Bridge: bridge}).Upload(context.Background(), lf, Params{URL: "http://x"})
	assert.ErrorIs(t, err, ErrAbort)
}

type brokenFS struct{ *TempFS }

func (brokenFS) WriteTemp(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestUploadRoundtripFailure(t *testing.T) {
	_, err := NewDispatcher(Capabilities{FileSystem: brokenFS{NewTempFS(t.TempDir())}}).Upload(context.Background(), &imagepkg.Blob{}, Params{URL: "http://x"})
	assert.ErrorIs(t, err, ErrFileSystem)
}

func TestFileTransfer(t *testing.T) {
	srv, got := formServer(t, http.StatusAccepted, "stored")

	path := filepath.Join(t.TempDir(), "merged.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	lf, err := imagepkg.OpenLocalFile(path)
	require.NoError(t, err)

	res, err := NewFileTransfer(5*time.Second).Upload(context.Background(), lf.LocalURL(), srv.URL,
		TransferOptions{FileKey: "file", MimeType: imagepkg.MIMETypePNG, HTTPMethod: http.MethodPut})
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, res.ResponseCode)
	assert.Equal(t, "stored", res.Response)

	rec := <-got
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "merged.png", rec.filename)
	assert.Equal(t, []byte("png"), rec.data)

	_, err = NewFileTransfer(0).Upload(context.Background(), "https://not/local", srv.URL, TransferOptions{})
	assert.Error(t, err)
}

func TestTempFSRemoveKeepsForeignDirs(t *testing.T) {
	root := t.TempDir()
	fs := NewTempFS(filepath.Join(root, "scratch"))

	path, err := fs.WriteTemp(context.Background(), "a.png", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, fs.Remove(path))
	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err))

	other := filepath.Join(root, "keep", "b.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(other), 0o755))
	require.NoError(t, os.WriteFile(other, []byte("y"), 0o644))
	require.NoError(t, fs.Remove(other))
	_, err = os.Stat(filepath.Dir(other))
	assert.NoError(t, err)
}

func TestUploadRateLimitHonoursContext(t *testing.T) {
	srv, got := formServer(t, http.StatusOK, "ok")
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	d := NewDispatcher(Capabilities{}, WithHTTPClient(srv.Client()), WithRateLimit(limiter))

	body, err := d.Upload(context.Background(), imagepkg.DataURL("data:,x"), Params{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	<-got

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Upload(ctx, imagepkg.DataURL("data:,x"), Params{URL: srv.URL})
	assert.ErrorIs(t, err, ErrAbort)
}
