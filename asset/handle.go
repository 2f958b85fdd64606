package asset

import (
	"errors"
	"fmt"
)

// Kind is the media type of an asset.
type Kind uint8

const (
	// KindImage is a still equirectangular image.
	KindImage Kind = iota + 1
	// KindVideo is an equirectangular video.
	KindVideo
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Handle is an opaque, immutable reference to a media asset. The zero value
// refers to nothing.
type Handle struct {
	id     string
	kind   Kind
	width  int
	height int
}

// NewHandle creates a handle. Dimensions may be zero when unknown.
func NewHandle(id string, kind Kind, width, height int) (Handle, error) {
	if id == "" {
		return Handle{}, errors.New("asset id cannot be empty")
	}
	if kind != KindImage && kind != KindVideo {
		return Handle{}, fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}
	if width < 0 || height < 0 {
		return Handle{}, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}
	return Handle{id: id, kind: kind, width: width, height: height}, nil
}

// ID returns the source identifier.
func (h Handle) ID() string { return h.id }

// Kind returns the media type.
func (h Handle) Kind() Kind { return h.kind }

// Width returns the pixel width, or 0 if unknown.
func (h Handle) Width() int { return h.width }

// Height returns the pixel height, or 0 if unknown.
func (h Handle) Height() int { return h.height }

// IsZero reports whether h refers to nothing.
func (h Handle) IsZero() bool { return h.id == "" }

// String formats the handle for logs.
func (h Handle) String() string {
	return fmt.Sprintf("%s:%s(%dx%d)", h.kind, h.id, h.width, h.height)
}
