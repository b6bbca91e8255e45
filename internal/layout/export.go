package layout

import (
	"fmt"
	"strings"
)

// Text renders a short human readable summary of the layout.
func (l *Layout) Text() string {
	lines := []string{}
	if l.Name != "" {
		lines = append(lines, "# "+l.Name)
	}
	if l.Base != "" {
		lines = append(lines, "base "+l.Base)
	}
	for _, o := range l.Overlays {
		src := o.Src
		switch {
		case o.Sticker != "":
			src = "sticker:" + o.Sticker
		case o.QR != "":
			src = "qr:" + o.QR
		}
		line := fmt.Sprintf("%s @ %g,%g", src, o.X, o.Y)
		if o.Width > 0 || o.Height > 0 {
			line += fmt.Sprintf(" %gx%g", o.Width, o.Height)
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	return strings.Join(lines, "\n")
}
