package audio

import (
	"fmt"
)

// Resampler converts interleaved PCM between sample rates with linear
// interpolation. It carries the last input frame across calls so packet
// boundaries do not click.
type Resampler struct {
	inputRate  uint32
	outputRate uint32
	channels   int
	last       []int16
	position   float64
}

// NewResampler creates a resampler for the given rates and channel count.
func NewResampler(inputRate, outputRate uint32, channels int) (*Resampler, error) {
	if inputRate == 0 || outputRate == 0 {
		return nil, fmt.Errorf("invalid sample rates: %d -> %d", inputRate, outputRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d", channels)
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
	}, nil
}

// InputRate returns the input sample rate.
func (r *Resampler) InputRate() uint32 { return r.inputRate }

// OutputRate returns the output sample rate.
func (r *Resampler) OutputRate() uint32 { return r.outputRate }

// Channels returns the channel count.
func (r *Resampler) Channels() int { return r.channels }

// Resample converts one block of interleaved samples.
func (r *Resampler) Resample(input []int16) []int16 {
	frames := len(input) / r.channels
	if frames == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		return append([]int16(nil), input[:frames*r.channels]...)
	}

	step := float64(r.inputRate) / float64(r.outputRate)
	out := make([]int16, 0, int(float64(frames)/step+1)*r.channels)

	// sample returns frame i of the stream where -1 is the carried frame.
	sample := func(i, ch int) float64 {
		if i < 0 {
			if r.last == nil {
				return float64(input[ch])
			}
			return float64(r.last[ch])
		}
		if i >= frames {
			i = frames - 1
		}
		return float64(input[i*r.channels+ch])
	}

	pos := r.position
	for pos < float64(frames-1)+1e-9 {
		i := int(pos)
		if pos < 0 {
			i = -1
		}
		frac := pos - float64(i)
		for ch := 0; ch < r.channels; ch++ {
			a := sample(i, ch)
			b := sample(i+1, ch)
			out = append(out, int16(a+(b-a)*frac))
		}
		pos += step
	}

	r.position = pos - float64(frames)
	r.last = append(r.last[:0], input[(frames-1)*r.channels:frames*r.channels]...)
	return out
}

// Reset clears the carried state.
func (r *Resampler) Reset() {
	r.last = nil
	r.position = 0
}
