package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPClient is used when callers pass a nil client.
var DefaultHTTPClient = &http.Client{Timeout: 12 * time.Second}

// MaxDownloadBytes caps the body GetBytes reads.
const MaxDownloadBytes = 32 << 20

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// GetBytes fetches url and returns the body of a 2xx response, up to
// MaxDownloadBytes.
func GetBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	return GetBytesLimit(ctx, client, url, MaxDownloadBytes)
}

// GetBytesLimit is GetBytes with an explicit body limit.
func GetBytesLimit(ctx context.Context, client *http.Client, url string, limit int64) ([]byte, error) {
	if client == nil {
		client = DefaultHTTPClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("get %s: %s", url, resp.Status)
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("get %s: %w: %d bytes", url, ErrBodyTooLarge, resp.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("get %s: %w: over %d bytes", url, ErrBodyTooLarge, limit)
	}
	return body, nil
}
