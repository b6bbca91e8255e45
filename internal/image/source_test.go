package imagepkg

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceFromString(t *testing.T) {
	assert.IsType(t, URLSource{}, SourceFromString("https://example.com/a.png", nil))
	assert.IsType(t, dataURLSource(""), SourceFromString("data:image/png;base64,AAAA", nil))
	assert.Equal(t, pathSource("/tmp/a.png"), SourceFromString("file:///tmp/a.png", nil))
	assert.Equal(t, pathSource("stickers/star.png"), SourceFromString("stickers/star.png", nil))
}

func TestDataURLSource(t *testing.T) {
	data := encodePNG(t, solid(6, 4, red))
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	img, err := SourceFromString(src, nil).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, img.NaturalWidth)
	assert.Equal(t, src, img.Src)

	_, err = dataURLSource("data:image/png,plain").Resolve(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
}

func TestURLSource(t *testing.T) {
	data := encodePNG(t, solid(12, 12, red))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/star.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", MIMETypePNG)
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	img, err := SourceFromString(srv.URL+"/star.png", srv.Client()).Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, img.NaturalWidth)
	assert.Equal(t, srv.URL+"/star.png", img.Src)

	_, err = SourceFromString(srv.URL+"/missing.png", srv.Client()).Resolve(context.Background())
	assert.Error(t, err)
}

func TestQRSource(t *testing.T) {
	img, err := QRSource{Text: "https://example.com"}.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 256, img.NaturalWidth)
	assert.Equal(t, "qr:https://example.com", img.Src)

	png, err := GenerateQRPNG("hello", 128)
	require.NoError(t, err)
	decoded, err := Decode(context.Background(), NewFile("qr", "", png))
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.NaturalWidth)
}
