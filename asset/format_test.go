package asset

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func encodeWith(t *testing.T, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, image.NewRGBA(image.Rect(0, 0, 8, 4))))
	return buf.Bytes()
}

func TestDetectFormatFromBytes(t *testing.T) {
	pngData := encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) })
	bmpData := encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) })
	tiffData := encodeWith(t, func(b *bytes.Buffer, m image.Image) error { return tiff.Encode(b, m, nil) })

	tests := []struct {
		name     string
		data     []byte
		hint     string
		expected string
		portable bool
	}{
		{"png ignores wrong hint", pngData, "jpeg", "png", true},
		{"bmp", bmpData, "", "bmp", false},
		{"tiff", tiffData, "", "tiff", false},
		{"heic brand", append([]byte{0, 0, 0, 24}, []byte("ftypheic\x00\x00\x00\x00")...), "", "heic", true},
		{"avif brand", append([]byte{0, 0, 0, 24}, []byte("ftypavif\x00\x00\x00\x00")...), "", "avif", true},
		{"hint used when bytes unknown", []byte("garbage"), "public.heif", "heif", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			f, ok := DetectFormat(tt.data, tt.hint)
			assert.True(t, ok)
			assert.Equal(t, tt.expected, f.Name)
			assert.Equal(t, tt.portable, f.Portable)
		})
	}
}

func TestDetectFormatFallsBackToJPEG(t *testing.T) {
	f, ok := DetectFormat([]byte("not an image"), "")
	assert.False(t, ok)
	assert.Equal(t, "image/jpeg", f.ContentType)
	assert.Equal(t, ".jpg", f.Extension)
}

func TestLookupFormat(t *testing.T) {
	f, ok := LookupFormat(".JPG")
	require.True(t, ok)
	assert.Equal(t, "jpeg", f.Name)

	f, ok = LookupFormat("tif")
	require.True(t, ok)
	assert.Equal(t, "tiff", f.Name)

	_, ok = LookupFormat("psd")
	assert.False(t, ok)
}
