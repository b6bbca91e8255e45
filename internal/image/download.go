package imagepkg

import (
	"context"
	"net/http"
	"net/url"
	"path"

	"github.com/youruser/imagemerger/internal/util"
)

// DownloadImage fetches rawURL and decodes it.
func DownloadImage(ctx context.Context, client *http.Client, rawURL string) (*DecodedImage, error) {
	body, err := util.GetBytes(ctx, client, rawURL)
	if err != nil {
		return nil, err
	}
	name := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	img, err := decodeBytes(body, name)
	if err != nil {
		return nil, err
	}
	img.Src = rawURL
	return img, nil
}
