package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// TransferOptions configures a bridge upload.
type TransferOptions struct {
	FileKey    string
	FileName   string
	MimeType   string
	HTTPMethod string
}

// TransferResult is what the bridge reports for a completed transfer,
// whatever its status code.
type TransferResult struct {
	ResponseCode int
	Response     string
}

// Bridge uploads a file that lives on the local filesystem.
type Bridge interface {
	Upload(ctx context.Context, localURL, target string, opts TransferOptions) (*TransferResult, error)
}

// FileTransfer is a Bridge that streams the file from disk straight into
// the request body.
type FileTransfer struct {
	Client *http.Client
}

// NewFileTransfer returns a FileTransfer using a client with the given
// timeout (0 means none).
func NewFileTransfer(timeout time.Duration) *FileTransfer {
	return &FileTransfer{Client: &http.Client{Timeout: timeout}}
}

func (t *FileTransfer) Upload(ctx context.Context, localURL, target string, opts TransferOptions) (*TransferResult, error) {
	path, err := pathFromLocalURL(localURL)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", target, err)
	}

	name := opts.FileName
	if name == "" {
		name = filepath.Base(path)
	}
	method := opts.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := createFilePart(writer, opts.FileKey, name, opts.MimeType)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &TransferResult{ResponseCode: resp.StatusCode, Response: string(body)}, nil
}

func pathFromLocalURL(localURL string) (string, error) {
	u, err := url.Parse(localURL)
	if err != nil {
		return "", fmt.Errorf("invalid local URL %q: %w", localURL, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a local URL: %q", localURL)
	}
	return filepath.FromSlash(u.Path), nil
}
