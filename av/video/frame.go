package video

import (
	"fmt"
	"time"
)

// Frame is a decoded video frame in YUV420 planar format.
//
// Between Enqueue and publication a Frame is owned by the Streamer. Once
// published the renderer may read it until the next tick; it must not be
// modified.
type Frame struct {
	PTS     time.Duration // presentation time in media time
	Width   uint16
	Height  uint16
	Y       []byte // Luminance plane
	U       []byte // Chrominance U plane
	V       []byte // Chrominance V plane
	YStride int
	UStride int
	VStride int
}

// NewFrame allocates a frame with tightly packed planes.
// Width and height must be even.
func NewFrame(width, height uint16, pts time.Duration) (*Frame, error) {
	if width == 0 || height == 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("invalid YUV420 dimensions: %dx%d", width, height)
	}
	uvWidth := int(width) / 2
	uvHeight := int(height) / 2
	return &Frame{
		PTS:     pts,
		Width:   width,
		Height:  height,
		Y:       make([]byte, int(width)*int(height)),
		U:       make([]byte, uvWidth*uvHeight),
		V:       make([]byte, uvWidth*uvHeight),
		YStride: int(width),
		UStride: uvWidth,
		VStride: uvWidth,
	}, nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Y = append([]byte(nil), f.Y...)
	c.U = append([]byte(nil), f.U...)
	c.V = append([]byte(nil), f.V...)
	return &c
}

// Size returns the number of bytes held by the planes.
func (f *Frame) Size() int {
	return len(f.Y) + len(f.U) + len(f.V)
}
