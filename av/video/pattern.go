package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PatternDecoder is a decoder that synthesizes a moving test pattern instead
// of decoding a bitstream. It is used for demos and for exercising the
// playback pipeline without a codec.
type PatternDecoder struct {
	width    uint16
	height   uint16
	interval time.Duration
	duration time.Duration

	mu     sync.Mutex
	next   int64
	closed bool
}

// NewPatternDecoder creates a decoder producing fps frames per second of
// width x height for the given duration.
func NewPatternDecoder(width, height uint16, fps int, duration time.Duration) (*PatternDecoder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate: %d", fps)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("invalid duration: %v", duration)
	}
	if _, err := NewFrame(width, height, 0); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPatternDecoder",
		"width":    width,
		"height":   height,
		"fps":      fps,
		"duration": duration,
	}).Info("Creating pattern decoder")

	return &PatternDecoder{
		width:    width,
		height:   height,
		interval: time.Second / time.Duration(fps),
		duration: duration,
	}, nil
}

// Duration returns the media duration.
func (d *PatternDecoder) Duration() time.Duration {
	return d.duration
}

// FrameInterval returns the spacing between presentation times.
func (d *PatternDecoder) FrameInterval() time.Duration {
	return d.interval
}

// ReadFrame produces the next frame, or io.EOF past the end of the media.
func (d *PatternDecoder) ReadFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("pattern decoder closed")
	}
	index := d.next
	pts := time.Duration(index) * d.interval
	if pts >= d.duration {
		d.mu.Unlock()
		return nil, io.EOF
	}
	d.next++
	d.mu.Unlock()

	frame, err := NewFrame(d.width, d.height, pts)
	if err != nil {
		return nil, err
	}
	paint(frame, int(index))
	return frame, nil
}

// Seek positions the decoder so the next frame is the first one at or after
// pos.
func (d *PatternDecoder) Seek(ctx context.Context, pos time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if pos < 0 || pos > d.duration {
		return fmt.Errorf("seek position %v outside [0, %v]", pos, d.duration)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("pattern decoder closed")
	}
	d.next = int64((pos + d.interval - 1) / d.interval)
	return nil
}

// Close releases the decoder.
func (d *PatternDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// paint draws a horizontal luma ramp that scrolls with the frame index so
// motion across the sphere seam is visible.
func paint(f *Frame, index int) {
	w := int(f.Width)
	for y := 0; y < int(f.Height); y++ {
		row := f.Y[y*f.YStride : y*f.YStride+w]
		for x := range row {
			row[x] = byte((x*256/w + index*4) & 0xff)
		}
	}
	for i := range f.U {
		f.U[i] = 128
		f.V[i] = byte(128 + (index % 32) - 16)
	}
}
