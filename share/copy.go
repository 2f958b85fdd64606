package share

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/opd-ai/panosphere/asset"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	// Non-portable formats transcoded to PNG.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	// MaxNameLength bounds the staged file name in bytes.
	MaxNameLength = 128

	// maxExtLength is the longest suffix kept as an extension when a name
	// is shortened.
	maxExtLength = 16

	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// stagedName reduces name to a single safe path element of at most
// MaxNameLength bytes. Long names are shortened by cutting the stem on a
// rune boundary; the extension is kept.
func stagedName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." || name == ".." || name == "" {
		name = "asset"
	}
	if len(name) <= MaxNameLength {
		return name
	}

	ext := filepath.Ext(name)
	if len(ext) > maxExtLength || len(ext) == len(name) {
		return truncateRunes(name, MaxNameLength)
	}
	return truncateRunes(name[:len(name)-len(ext)], MaxNameLength-len(ext)) + ext
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// writeStaged copies r into a new file named name inside a fresh staging
// directory, computing its checksum on the way. On failure nothing is left
// on disk.
func writeStaged(root, name string, r io.Reader) (*StagedAsset, error) {
	dir := filepath.Join(root, uuid.New().String())
	if err := os.Mkdir(dir, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to set staging directory permissions: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		os.RemoveAll(dir)
		return nil, err
	}
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if err != nil {
		f.Close()
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to close staged file: %w", err)
	}

	// Source permissions are not inherited; readers in other processes
	// need the file world-readable regardless of umask.
	if err := os.Chmod(path, fileMode); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to set staged file permissions: %w", err)
	}

	staged := &StagedAsset{
		Path:        path,
		Size:        n,
		Checksum:    h.Sum(nil),
		AccessToken: uuid.New().String(),
		dir:         dir,
	}
	if err := staged.Verify(); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return staged, nil
}

// imagePayload returns the bytes and format to stage for an image. The
// original encoding is kept when share targets accept it; other decodable
// formats are transcoded to PNG.
func imagePayload(data *asset.ImageData) ([]byte, asset.Format, error) {
	format, known := asset.DetectFormat(data.Data, data.FormatHint)
	if !known {
		logrus.WithFields(logrus.Fields{
			"function": "imagePayload",
			"hint":     data.FormatHint,
			"fallback": format.ContentType,
		}).Warn("Unrecognized image format, using fallback")
		return data.Data, format, nil
	}
	if format.Portable {
		return data.Data, format, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data.Data))
	if err != nil {
		return nil, format, fmt.Errorf("failed to decode %s image: %w", format.Name, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, format, fmt.Errorf("failed to transcode image: %w", err)
	}
	pngFormat, _ := asset.LookupFormat("png")

	logrus.WithFields(logrus.Fields{
		"function": "imagePayload",
		"from":     format.Name,
		"to":       pngFormat.Name,
		"size":     buf.Len(),
	}).Debug("Transcoded image for sharing")
	return buf.Bytes(), pngFormat, nil
}

func videoContentType(ext string) string {
	if ct, ok := videoContentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}
