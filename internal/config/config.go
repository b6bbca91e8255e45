// Package config reads runtime settings from the environment.
package config

import (
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/youruser/imagemerger/internal/upload"
)

// Config holds the host settings shared by the server and the CLI.
type Config struct {
	Port        string
	StickersDir string
	TmpDir      string
	// DeviceDensity is the pixel ratio assumed for sessions using dpi=auto.
	DeviceDensity float64
	// NamedFiles is false on hosts that can only hand out anonymous blobs.
	NamedFiles bool
	// FileSystem enables the temp filesystem used to turn blobs into files.
	FileSystem bool
	// Bridge enables streaming file transfer for filesystem-backed files.
	Bridge      bool
	HTTPTimeout time.Duration
	// UploadRate caps uploads per second; 0 means unlimited.
	UploadRate float64
	// AllowedHosts limits the hosts overlay URLs may be fetched from.
	// Empty allows any host.
	AllowedHosts []string
}

// Load reads the environment. Unset or malformed values fall back to defaults.
func Load() Config {
	return Config{
		Port:          getString("PORT", "8080"),
		StickersDir:   getString("IMAGEMERGER_STICKERS_DIR", "data"),
		TmpDir:        getString("IMAGEMERGER_TMP_DIR", ""),
		DeviceDensity: getFloat("IMAGEMERGER_DEVICE_DENSITY", 1),
		NamedFiles:    getBool("IMAGEMERGER_NAMED_FILES", true),
		FileSystem:    getBool("IMAGEMERGER_FILESYSTEM", true),
		Bridge:        getBool("IMAGEMERGER_BRIDGE", false),
		HTTPTimeout:   getDuration("IMAGEMERGER_HTTP_TIMEOUT", 60*time.Second),
		UploadRate:    getFloat("IMAGEMERGER_UPLOAD_RATE", 0),
		AllowedHosts:  getList("IMAGEMERGER_ALLOWED_HOSTS"),
	}
}

// Capabilities builds the upload capability descriptor for this host.
func (c Config) Capabilities() upload.Capabilities {
	var caps upload.Capabilities
	if c.FileSystem {
		caps.FileSystem = upload.NewTempFS(c.TmpDir)
	}
	if c.Bridge {
		caps.Bridge = upload.NewFileTransfer(c.HTTPTimeout)
	}
	return caps
}

// HTTPClient returns the traced client used for overlay downloads and uploads.
func (c Config) HTTPClient() *http.Client {
	return &http.Client{
		Timeout:   c.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Dispatcher builds the upload dispatcher for this host.
func (c Config) Dispatcher(client *http.Client) *upload.Dispatcher {
	opts := []upload.Option{upload.WithHTTPClient(client)}
	if c.UploadRate > 0 {
		opts = append(opts, upload.WithRateLimit(rate.NewLimiter(rate.Limit(c.UploadRate), 1)))
	}
	return upload.NewDispatcher(c.Capabilities(), opts...)
}

// HostAllowed reports whether an overlay URL may be downloaded. Data URLs
// need no download and are always allowed.
func (c Config) HostAllowed(rawURL string) bool {
	if len(c.AllowedHosts) == 0 || strings.HasPrefix(rawURL, "data:") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range c.AllowedHosts {
		if host == h {
			return true
		}
	}
	return false
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("Ignoring invalid setting", "key", key, "value", v, "err", err)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("Ignoring invalid setting", "key", key, "value", v, "err", err)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Ignoring invalid setting", "key", key, "value", v, "err", err)
		return def
	}
	return d
}
