package asset

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// RemotePrefix marks DirSource ids that stand for remote-backed assets.
const RemotePrefix = "remote/"

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true,
}

// DirSource serves assets from a directory tree. Ids are slash-separated
// paths relative to the root. Ids under RemotePrefix behave like assets that
// must be downloaded first.
type DirSource struct {
	root string

	mu       sync.Mutex
	denied   map[string]bool
	accesses atomic.Int64
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) (*DirSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", abs)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewDirSource",
		"root":     abs,
	}).Info("Directory asset source ready")

	return &DirSource{root: abs, denied: make(map[string]bool)}, nil
}

// Root returns the absolute source directory.
func (s *DirSource) Root() string { return s.root }

// Deny makes scoped access to id fail, as a revoked sandbox grant would.
func (s *DirSource) Deny(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[id] = true
}

// OpenAccesses returns the number of scoped accesses not yet stopped.
func (s *DirSource) OpenAccesses() int64 {
	return s.accesses.Load()
}

// Handle builds a handle for id from the file's extension and header.
func (s *DirSource) Handle(id string) (Handle, error) {
	path, err := s.resolve(id)
	if err != nil {
		return Handle{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return Handle{}, fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, id, err)
	}

	if KindOf(id) == KindVideo {
		return NewHandle(id, KindVideo, 0, 0)
	}

	var width, height int
	if f, err := os.Open(path); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			width, height = cfg.Width, cfg.Height
		}
		f.Close()
	}
	return NewHandle(id, KindImage, width, height)
}

// Handles lists handles for every regular file under the root.
func (s *DirSource) Handles() ([]Handle, error) {
	var handles []Handle
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		h, err := s.Handle(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		handles = append(handles, h)
		return nil
	})
	return handles, err
}

// FetchImage reads the image file for id.
func (s *DirSource) FetchImage(ctx context.Context, id string, opts FetchOptions) (*ImageData, error) {
	if err := s.check(ctx, id, KindImage, opts); err != nil {
		return nil, err
	}
	path, _ := s.resolve(id)

	data, err := os.ReadFile(path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "DirSource.FetchImage",
			"id":       id,
			"error":    err.Error(),
		}).Warn("Image read failed")
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, id, err)
	}

	ext := filepath.Ext(path)
	return &ImageData{
		Data:       data,
		FormatHint: strings.TrimPrefix(strings.ToLower(ext), "."),
		Name:       strings.TrimSuffix(filepath.Base(path), ext),
	}, nil
}

// FetchVideo returns the video file for id, guarded by a scope.
func (s *DirSource) FetchVideo(ctx context.Context, id string, opts FetchOptions) (*VideoFile, error) {
	if err := s.check(ctx, id, KindVideo, opts); err != nil {
		return nil, err
	}
	path, _ := s.resolve(id)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, id, err)
	}
	return &VideoFile{Path: path, Scope: &dirScope{source: s, id: id}}, nil
}

func (s *DirSource) check(ctx context.Context, id string, kind Kind, opts FetchOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if KindOf(id) != kind {
		return fmt.Errorf("%w: %s is not a %s", ErrUnsupportedKind, id, kind)
	}
	if _, err := s.resolve(id); err != nil {
		return err
	}
	if strings.HasPrefix(id, RemotePrefix) && !opts.NetworkAllowed {
		return fmt.Errorf("%w: %w: %s", ErrAssetUnavailable, ErrNetworkRequired, id)
	}
	return nil
}

// resolve maps id to a path inside the root, refusing traversal.
func (s *DirSource) resolve(id string) (string, error) {
	if id == "" {
		return "", errors.New("asset id cannot be empty")
	}
	cleaned := filepath.Clean(filepath.FromSlash(id))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes source root: %s", ErrAccessDenied, id)
	}
	return filepath.Join(s.root, cleaned), nil
}

// KindOf infers the asset kind from an id's extension.
func KindOf(id string) Kind {
	if videoExtensions[strings.ToLower(filepath.Ext(id))] {
		return KindVideo
	}
	return KindImage
}

type dirScope struct {
	source *DirSource
	id     string
}

func (d *dirScope) StartAccessing() bool {
	d.source.mu.Lock()
	denied := d.source.denied[d.id]
	d.source.mu.Unlock()
	if denied {
		return false
	}
	d.source.accesses.Add(1)
	return true
}

func (d *dirScope) StopAccessing() {
	d.source.accesses.Add(-1)
}
