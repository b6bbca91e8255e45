package imagepkg

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Source is anything an overlay can be drawn from.
type Source interface {
	Resolve(ctx context.Context) (*DecodedImage, error)
}

// URLSource downloads the overlay over HTTP.
type URLSource struct {
	URL    string
	Client *http.Client
}

func (u URLSource) Resolve(ctx context.Context) (*DecodedImage, error) {
	return DownloadImage(ctx, u.Client, u.URL)
}

// FileSource decodes the overlay from a file handle.
type FileSource struct {
	Handle FileHandle
}

func (f FileSource) Resolve(ctx context.Context) (*DecodedImage, error) {
	img, err := Decode(ctx, f.Handle)
	if err != nil {
		return nil, err
	}
	if lf, ok := f.Handle.(*LocalFile); ok {
		img.Src = lf.Path()
	}
	return img, nil
}

type pathSource string

func (p pathSource) Resolve(ctx context.Context) (*DecodedImage, error) {
	h, err := OpenLocalFile(string(p))
	if err != nil {
		return nil, err
	}
	return FileSource{Handle: h}.Resolve(ctx)
}

type dataURLSource string

func (d dataURLSource) Resolve(context.Context) (*DecodedImage, error) {
	s := string(d)
	comma := strings.IndexByte(s, ',')
	if comma == -1 || !strings.HasSuffix(s[:comma], ";base64") {
		return nil, fmt.Errorf("%w: malformed data URL", ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(s[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, err := decodeBytes(data, "data-url")
	if err != nil {
		return nil, err
	}
	img.Src = s
	return img, nil
}

// SourceFromString picks a source for s: http(s) URLs are downloaded with
// client, data URLs are decoded inline and anything else is a local path.
func SourceFromString(s string, client *http.Client) Source {
	switch {
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return URLSource{URL: s, Client: client}
	case strings.HasPrefix(s, "data:"):
		return dataURLSource(s)
	default:
		return pathSource(strings.TrimPrefix(s, "file://"))
	}
}
