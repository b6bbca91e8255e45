// Package layout reads the YAML files that describe a headless merge.
package layout

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is one sticker placement. Exactly one of Src, Sticker or QR is set.
type Overlay struct {
	Src     string  `yaml:"src,omitempty"`
	Sticker string  `yaml:"sticker,omitempty"`
	QR      string  `yaml:"qr,omitempty"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Width   float64 `yaml:"width,omitempty"`
	Height  float64 `yaml:"height,omitempty"`
}

// Upload is where the merged image is sent.
type Upload struct {
	URL    string `yaml:"url"`
	Query  string `yaml:"query,omitempty"`
	Method string `yaml:"method,omitempty"`
	// Result is a JMESPath expression picking the image URL from the response.
	Result string `yaml:"result,omitempty"`
}

type Layout struct {
	Name           string    `yaml:"name,omitempty"`
	Base           string    `yaml:"base,omitempty"`
	Filename       string    `yaml:"filename,omitempty"`
	Width          float64   `yaml:"width,omitempty"`
	Zoom           float64   `yaml:"zoom,omitempty"`
	DPI            string    `yaml:"dpi,omitempty"`
	ImageQuality   float64   `yaml:"imageQuality,omitempty"`
	ReturnAsString bool      `yaml:"returnAsString,omitempty"`
	SaveMemory     bool      `yaml:"saveMemory,omitempty"`
	Overlays       []Overlay `yaml:"overlays"`
	Upload         *Upload   `yaml:"upload,omitempty"`
}

// Load reads and validates a layout file.
func Load(path string) (*Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return l, nil
}

// Parse decodes and validates layout YAML.
func Parse(b []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(b, &l); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

func (l *Layout) Validate() error {
	var errs []error
	for i, o := range l.Overlays {
		n := 0
		for _, s := range []string{o.Src, o.Sticker, o.QR} {
			if s != "" {
				n++
			}
		}
		if n != 1 {
			errs = append(errs, fmt.Errorf("overlay %d: exactly one of src, sticker or qr is required", i))
		}
	}
	if l.Upload != nil && l.Upload.URL == "" {
		errs = append(errs, errors.New("upload: url is required"))
	}
	return errors.Join(errs...)
}
