package asset

import (
	"bytes"
	"image"
	"strings"

	// Decoders consulted by DetectFormat.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format describes an image encoding.
type Format struct {
	Name        string
	Extension   string // including the leading dot
	ContentType string
	// Portable formats are accepted by common share targets as is.
	Portable bool
}

var formats = map[string]Format{
	"jpeg": {Name: "jpeg", Extension: ".jpg", ContentType: "image/jpeg", Portable: true},
	"png":  {Name: "png", Extension: ".png", ContentType: "image/png", Portable: true},
	"gif":  {Name: "gif", Extension: ".gif", ContentType: "image/gif", Portable: true},
	"webp": {Name: "webp", Extension: ".webp", ContentType: "image/webp", Portable: true},
	"heic": {Name: "heic", Extension: ".heic", ContentType: "image/heic", Portable: true},
	"heif": {Name: "heif", Extension: ".heif", ContentType: "image/heif", Portable: true},
	"avif": {Name: "avif", Extension: ".avif", ContentType: "image/avif", Portable: true},
	"bmp":  {Name: "bmp", Extension: ".bmp", ContentType: "image/bmp"},
	"tiff": {Name: "tiff", Extension: ".tiff", ContentType: "image/tiff"},
}

var aliases = map[string]string{
	"jpg":         "jpeg",
	"public.jpeg": "jpeg",
	"image/jpeg":  "jpeg",
	"public.png":  "png",
	"image/png":   "png",
	"tif":         "tiff",
	"public.heic": "heic",
	"public.heif": "heif",
}

// FallbackFormat is assumed when an encoding cannot be identified.
var FallbackFormat = formats["jpeg"]

// LookupFormat returns the format for a name, extension, or content type.
func LookupFormat(name string) (Format, bool) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	f, ok := formats[key]
	return f, ok
}

// DetectFormat identifies the encoding of data, preferring the bytes
// themselves over the hint. It returns FallbackFormat and false when neither
// identifies a known format.
func DetectFormat(data []byte, hint string) (Format, bool) {
	if name := sniffHEIF(data); name != "" {
		return formats[name], true
	}
	if _, name, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if f, ok := formats[name]; ok {
			return f, true
		}
	}
	if f, ok := LookupFormat(hint); ok {
		return f, true
	}
	return FallbackFormat, false
}

// sniffHEIF recognises ISO base media image files by their ftyp brand.
func sniffHEIF(data []byte) string {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return ""
	}
	switch string(data[8:12]) {
	case "heic", "heix", "hevc", "hevx", "heim", "heis", "hevm", "hevs":
		return "heic"
	case "mif1", "msf1":
		return "heif"
	case "avif", "avis":
		return "avif"
	}
	return ""
}
