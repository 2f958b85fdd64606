package video

import (
	"fmt"
)

// Scaler resizes YUV420 frames with bilinear interpolation.
type Scaler struct{}

// NewScaler creates a new video frame scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Scale resizes a frame to the target dimensions, keeping its presentation
// time. Both target dimensions must be even and at least 16.
func (s *Scaler) Scale(frame *Frame, targetWidth, targetHeight uint16) (*Frame, error) {
	if frame == nil {
		return nil, fmt.Errorf("source frame cannot be nil")
	}
	if targetWidth == 0 || targetHeight == 0 {
		return nil, fmt.Errorf("invalid target dimensions: %dx%d", targetWidth, targetHeight)
	}
	if targetWidth%2 != 0 || targetHeight%2 != 0 {
		return nil, fmt.Errorf("target dimensions must be even for YUV420: %dx%d", targetWidth, targetHeight)
	}
	if targetWidth < 16 || targetHeight < 16 {
		return nil, fmt.Errorf("target dimensions too small: %dx%d (minimum 16x16)", targetWidth, targetHeight)
	}

	if frame.Width == targetWidth && frame.Height == targetHeight {
		return frame.Clone(), nil
	}

	result, err := NewFrame(targetWidth, targetHeight, frame.PTS)
	if err != nil {
		return nil, err
	}

	if err := scalePlane(frame.Y, int(frame.Width), int(frame.Height), frame.YStride,
		result.Y, int(targetWidth), int(targetHeight), result.YStride); err != nil {
		return nil, fmt.Errorf("failed to scale Y plane: %w", err)
	}

	srcUVWidth, srcUVHeight := int(frame.Width)/2, int(frame.Height)/2
	dstUVWidth, dstUVHeight := int(targetWidth)/2, int(targetHeight)/2
	if err := scalePlane(frame.U, srcUVWidth, srcUVHeight, frame.UStride,
		result.U, dstUVWidth, dstUVHeight, result.UStride); err != nil {
		return nil, fmt.Errorf("failed to scale U plane: %w", err)
	}
	if err := scalePlane(frame.V, srcUVWidth, srcUVHeight, frame.VStride,
		result.V, dstUVWidth, dstUVHeight, result.VStride); err != nil {
		return nil, fmt.Errorf("failed to scale V plane: %w", err)
	}

	return result, nil
}

// FitWidth downsamples a frame so its width does not exceed maxWidth,
// preserving the aspect ratio. Frames that already fit are returned as is.
func (s *Scaler) FitWidth(frame *Frame, maxWidth int) (*Frame, error) {
	if frame == nil {
		return nil, fmt.Errorf("source frame cannot be nil")
	}
	if maxWidth <= 0 || int(frame.Width) <= maxWidth {
		return frame, nil
	}
	w := maxWidth &^ 1
	h := (int(frame.Height) * w / int(frame.Width)) &^ 1
	if h < 16 {
		h = 16
	}
	return s.Scale(frame, uint16(w), uint16(h))
}

func scalePlane(src []byte, srcWidth, srcHeight, srcStride int,
	dst []byte, dstWidth, dstHeight, dstStride int) error {

	if len(src) < srcHeight*srcStride {
		return fmt.Errorf("source buffer too small: %d < %d", len(src), srcHeight*srcStride)
	}
	if len(dst) < dstHeight*dstStride {
		return fmt.Errorf("destination buffer too small: %d < %d", len(dst), dstHeight*dstStride)
	}

	xRatio := float64(srcWidth) / float64(dstWidth)
	yRatio := float64(srcHeight) / float64(dstHeight)

	for y := 0; y < dstHeight; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := y1 + 1
		if y2 >= srcHeight {
			y2 = srcHeight - 1
		}
		fy := srcY - float64(y1)

		for x := 0; x < dstWidth; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := x1 + 1
			if x2 >= srcWidth {
				x2 = srcWidth - 1
			}
			fx := srcX - float64(x1)

			p11 := float64(src[y1*srcStride+x1])
			p12 := float64(src[y1*srcStride+x2])
			p21 := float64(src[y2*srcStride+x1])
			p22 := float64(src[y2*srcStride+x2])

			top := p11*(1-fx) + p12*fx
			bottom := p21*(1-fx) + p22*fx
			dst[y*dstStride+x] = byte(top*(1-fy) + bottom*fy + 0.5)
		}
	}

	return nil
}
