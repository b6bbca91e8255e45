package imagepkg

import (
	"strings"

	"github.com/disintegration/imaging"
)

// MIME types understood by the merger.
const (
	MIMETypeGIF  = "image/gif"
	MIMETypePNG  = "image/png"
	MIMETypeJPEG = "image/jpeg"
)

var extTypes = map[string]string{
	"gif":  MIMETypeGIF,
	"png":  MIMETypePNG,
	"jpg":  MIMETypeJPEG,
	"jpeg": MIMETypeJPEG,
}

var typeExts = map[string]string{
	MIMETypeJPEG: "jpg",
	MIMETypePNG:  "png",
	MIMETypeGIF:  "gif",
}

var typeFormats = map[string]imaging.Format{
	MIMETypeJPEG: imaging.JPEG,
	MIMETypePNG:  imaging.PNG,
	MIMETypeGIF:  imaging.GIF,
}

// lookupTypeByExt returns the MIME type for name's extension, or "".
func lookupTypeByExt(name string) string {
	dot := strings.LastIndex(name, ".")
	if dot == -1 {
		return ""
	}
	return extTypes[strings.ToLower(name[dot+1:])]
}

// TypeByExt resolves the output MIME type for a filename. Unknown or missing
// extensions resolve to image/png.
func TypeByExt(name string) string {
	if t := lookupTypeByExt(name); t != "" {
		return t
	}
	return MIMETypePNG
}

// ExtByType is the reverse of the extension table ("jpg" for JPEG).
func ExtByType(mimeType string) string {
	return typeExts[mimeType]
}

func supportedType(mimeType string) bool {
	_, ok := typeFormats[mimeType]
	return ok
}
