package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

const (
	// DecodeRate is the rate of the PCM the Opus decoder produces. The
	// decoder upsamples every bandwidth to it.
	DecodeRate = 48000

	// decodedFrameBytes is the S16LE output of one decoded packet: a 20ms
	// frame of 960 samples.
	decodedFrameBytes = 1920

	// DefaultSinkRate is the sample rate PCM is delivered to sinks at.
	DefaultSinkRate = DecodeRate
)

// ErrOutputActive is returned when activating an output twice.
var ErrOutputActive = errors.New("audio output already active")

// Output is the audio output of a playback session.
type Output interface {
	// Activate claims the audio hardware. Audio flows only while playing.
	Activate() error
	// SetPlaying starts or pauses audio delivery.
	SetPlaying(playing bool)
	// SetMuted silences delivered audio without stopping the stream.
	SetMuted(muted bool)
	// Deactivate stops delivery and releases the hardware. When it returns
	// no further writes reach the sink. It is safe to call more than once.
	Deactivate() error
}

// PacketSource yields encoded Opus packets in presentation order.
// ReadAudioPacket returns io.EOF at the end of the track.
type PacketSource interface {
	ReadAudioPacket(ctx context.Context) ([]byte, error)
}

// Sink receives interleaved PCM samples.
type Sink interface {
	WritePCM(pcm []int16, sampleRate uint32, channels int) error
}

// OpusOutput decodes Opus packets from a PacketSource into a Sink.
type OpusOutput struct {
	source   PacketSource
	sink     Sink
	sinkRate uint32
	decoder  opus.Decoder

	mu      sync.Mutex
	cond    *sync.Cond
	active  bool
	playing bool
	muted   bool
	stopped bool

	cancel context.CancelFunc
	done   chan struct{}

	resampler *Resampler
}

// NewOpusOutput creates an output delivering PCM at sinkRate. A zero rate
// selects DefaultSinkRate.
func NewOpusOutput(source PacketSource, sink Sink, sinkRate uint32) (*OpusOutput, error) {
	if source == nil {
		return nil, errors.New("packet source cannot be nil")
	}
	if sink == nil {
		return nil, errors.New("sink cannot be nil")
	}
	if sinkRate == 0 {
		sinkRate = DefaultSinkRate
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewOpusOutput",
		"sink_rate": sinkRate,
	}).Debug("Creating Opus audio output")

	o := &OpusOutput{
		source:   source,
		sink:     sink,
		sinkRate: sinkRate,
		decoder:  opus.NewDecoder(),
	}
	o.cond = sync.NewCond(&o.mu)
	return o, nil
}

// Activate starts the delivery goroutine.
func (o *OpusOutput) Activate() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return ErrOutputActive
	}
	if o.stopped {
		return errors.New("audio output already deactivated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})
	o.active = true
	go o.pump(ctx)

	logrus.WithFields(logrus.Fields{
		"function": "OpusOutput.Activate",
	}).Info("Audio output activated")
	return nil
}

// SetPlaying starts or pauses delivery.
func (o *OpusOutput) SetPlaying(playing bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.playing = playing
	o.cond.Broadcast()
}

// SetMuted replaces delivered samples with silence while muted.
func (o *OpusOutput) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.muted = muted
}

// Deactivate stops delivery and waits for the delivery goroutine to exit.
func (o *OpusOutput) Deactivate() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	wasActive := o.active
	o.active = false
	cancel, done := o.cancel, o.done
	o.cond.Broadcast()
	o.mu.Unlock()

	if wasActive {
		cancel()
		<-done
	}

	logrus.WithFields(logrus.Fields{
		"function": "OpusOutput.Deactivate",
	}).Info("Audio output deactivated")
	return nil
}

func (o *OpusOutput) pump(ctx context.Context) {
	defer close(o.done)

	out := make([]byte, decodedFrameBytes)
	for {
		o.mu.Lock()
		for !o.playing && !o.stopped {
			o.cond.Wait()
		}
		if o.stopped {
			o.mu.Unlock()
			return
		}
		o.mu.Unlock()

		packet, err := o.source.ReadAudioPacket(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logrus.WithFields(logrus.Fields{
					"function": "OpusOutput.pump",
					"error":    err.Error(),
				}).Warn("Audio packet read failed, stopping audio")
			}
			return
		}

		pcm, rate, channels, err := o.decode(packet, out)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":    "OpusOutput.pump",
				"packet_size": len(packet),
				"error":       err.Error(),
			}).Debug("Skipping undecodable audio packet")
			continue
		}

		o.mu.Lock()
		muted, stopped := o.muted, o.stopped
		o.mu.Unlock()
		if stopped {
			return
		}
		if muted {
			clear(pcm)
		}
		if err := o.sink.WritePCM(pcm, rate, channels); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "OpusOutput.pump",
				"error":    err.Error(),
			}).Warn("Audio sink write failed")
		}
	}
}

// decode converts one Opus packet to PCM at the sink rate.
func (o *OpusOutput) decode(packet, out []byte) ([]int16, uint32, int, error) {
	if len(packet) == 0 {
		return nil, 0, 0, errors.New("empty audio packet")
	}
	_, isStereo, err := o.decoder.Decode(packet, out)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("opus decode failed: %w", err)
	}

	channels := 1
	if isStereo {
		channels = 2
	}
	pcm := make([]int16, len(out)/2)
	for i := range pcm {
		pcm[i] = int16(out[i*2]) | int16(out[i*2+1])<<8
	}

	if o.sinkRate == DecodeRate {
		return pcm, DecodeRate, channels, nil
	}
	if o.resampler == nil || o.resampler.Channels() != channels {
		o.resampler, err = NewResampler(DecodeRate, o.sinkRate, channels)
		if err != nil {
			return nil, 0, 0, err
		}
	}
	return o.resampler.Resample(pcm), o.sinkRate, channels, nil
}

// NullOutput is an Output for media without audio. It tracks state only.
type NullOutput struct {
	mu      sync.Mutex
	active  bool
	playing bool
	muted   bool
}

// NewNullOutput creates a silent output.
func NewNullOutput() *NullOutput {
	return &NullOutput{}
}

// Activate marks the output active.
func (n *NullOutput) Activate() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.active {
		return ErrOutputActive
	}
	n.active = true
	return nil
}

// SetPlaying records the playing state.
func (n *NullOutput) SetPlaying(playing bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.playing = playing
}

// SetMuted records the muted state.
func (n *NullOutput) SetMuted(muted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.muted = muted
}

// Deactivate marks the output inactive.
func (n *NullOutput) Deactivate() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = false
	n.playing = false
	return nil
}

// Active reports whether the output is active.
func (n *NullOutput) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}
