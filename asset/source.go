package asset

import "context"

// FetchOptions controls how a Source resolves an asset.
type FetchOptions struct {
	// NetworkAllowed permits downloading remote-backed assets.
	NetworkAllowed bool
}

// ImageData is the encoded bytes of an image asset.
type ImageData struct {
	Data []byte
	// FormatHint is the source's name for the encoding ("jpeg", "heic", ...).
	// It may be empty.
	FormatHint string
	// Name is a suggested file name without extension.
	Name string
}

// VideoFile is a readable video file.
type VideoFile struct {
	Path string
	// Scope guards access to Path. Nil when no scoped access is required.
	Scope Scope
}

// Source resolves asset identifiers to content.
type Source interface {
	// FetchImage returns the full-resolution encoded image.
	FetchImage(ctx context.Context, id string, opts FetchOptions) (*ImageData, error)
	// FetchVideo returns a readable video file.
	FetchVideo(ctx context.Context, id string, opts FetchOptions) (*VideoFile, error)
}
