package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	imagepkg "github.com/youruser/imagemerger/internal/image"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// createFilePart starts a file part that carries its real MIME type instead
// of application/octet-stream.
func createFilePart(w *multipart.Writer, field, filename, mimeType string) (io.Writer, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimeType)
	return w.CreatePart(h)
}

// buildForm writes a under field. A DataURL is sent as a plain text field.
func buildForm(a imagepkg.Artifact, field string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	var err error
	switch v := a.(type) {
	case imagepkg.DataURL:
		err = writer.WriteField(field, string(v))
	case *imagepkg.File:
		err = writeFilePart(writer, field, v.Name(), v.Type(), bytes.NewReader(v.Bytes()))
	case *imagepkg.Blob:
		name := v.Name
		if name == "" {
			name = "blob"
		}
		err = writeFilePart(writer, field, name, v.Type, bytes.NewReader(v.Data))
	case *imagepkg.LocalFile:
		var rc io.ReadCloser
		if rc, err = v.Open(); err == nil {
			err = writeFilePart(writer, field, v.Name(), v.Type(), rc)
			rc.Close()
		}
	default:
		err = fmt.Errorf("unsupported artifact %T", a)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, field, name, mimeType string, r io.Reader) error {
	part, err := createFilePart(w, field, name, mimeType)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

func (d *Dispatcher) multipartUpload(ctx context.Context, a imagepkg.Artifact, p Params, l *latch) {
	body, contentType, err := buildForm(a, p.Query)
	if err != nil {
		l.fail(fmt.Errorf("%w: %w", ErrTransfer, err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body)
	if err != nil {
		l.fail(fmt.Errorf("%w: %w", ErrTransfer, err))
		return
	}
	req.Header.Set("Content-Type", contentType)

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := d.client.Do(req)
		if err != nil {
			l.fail(classify(err))
			return
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			l.fail(classify(err))
			return
		}
		if !successCode(resp.StatusCode) {
			l.fail(&TransferError{Strategy: StrategyMultipartHTTP, StatusCode: resp.StatusCode, Body: string(respBody)})
			return
		}
		l.succeed(string(respBody))
	}()

	// Cancellation and the transport error it causes race each other; the
	// latch keeps whichever arrives first.
	select {
	case <-done:
	case <-ctx.Done():
		l.fail(fmt.Errorf("%w: %w", ErrAbort, ctx.Err()))
		<-done
	}
}
