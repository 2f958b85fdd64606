package share

import (
	"errors"
	"fmt"

	"github.com/opd-ai/panosphere/asset"
)

var (
	// ErrStagingFailed indicates a copy could not be prepared.
	ErrStagingFailed = errors.New("staging failed")

	// ErrAlreadyReleased indicates the staged copy was already released.
	ErrAlreadyReleased = errors.New("staged asset already released")

	// ErrStagerClosed indicates the stager no longer accepts requests.
	ErrStagerClosed = errors.New("stager closed")

	// ErrChecksumMismatch indicates a staged file differs from what was written.
	ErrChecksumMismatch = errors.New("staged file checksum mismatch")
)

// ItemError is the failure of one item of a batch.
type ItemError struct {
	Handle asset.Handle
	Err    error
}

// Error implements error.
func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Handle.ID(), e.Err)
}

// Unwrap returns the underlying error.
func (e *ItemError) Unwrap() error {
	return e.Err
}
