package share

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/timing"
	"golang.org/x/crypto/blake2b"
)

// StagedAsset is a temporary, world-readable copy of an asset prepared for
// an external share. It stays on disk until released.
type StagedAsset struct {
	// Source is the asset the copy was made from.
	Source asset.Handle
	// Path is the staged file.
	Path string
	// ContentType is the MIME type of the staged file.
	ContentType string
	// Size is the file length in bytes.
	Size int64
	// Checksum is the BLAKE2b-256 digest of the file.
	Checksum []byte
	// AccessToken identifies the copy to Stager.Lookup.
	AccessToken string
	// StagedAt is when the copy was completed.
	StagedAt time.Time

	dir      string
	once     sync.Once
	released atomic.Bool
	timer    timing.Timer
}

// Released reports whether the copy has been deleted.
func (s *StagedAsset) Released() bool {
	return s.released.Load()
}

// Verify rehashes the staged file and compares it with Checksum.
func (s *StagedAsset) Verify() error {
	sum, err := checksumFile(s.Path)
	if err != nil {
		return err
	}
	if !bytes.Equal(sum, s.Checksum) {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, s.Path)
	}
	return nil
}

func checksumFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}
