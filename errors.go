package panosphere

import "errors"

// ErrViewerClosed is returned by Load after Close.
var ErrViewerClosed = errors.New("viewer closed")
