package av

import (
	"context"
	"time"

	"github.com/opd-ai/panosphere/asset"
	"github.com/opd-ai/panosphere/av/audio"
	"github.com/opd-ai/panosphere/av/video"
	"github.com/sirupsen/logrus"
)

// Decoder produces decoded video frames in presentation order.
//
// A decoder that also implements audio.PacketSource supplies the audio
// track to the session's audio output.
type Decoder interface {
	// Duration returns the media duration, or zero if unknown.
	Duration() time.Duration
	// ReadFrame returns the next frame, or io.EOF at the end of the media.
	ReadFrame(ctx context.Context) (*video.Frame, error)
	// Seek positions the decoder so the next frame is the first one at or
	// after pos.
	Seek(ctx context.Context, pos time.Duration) error
	// Close releases the decoder.
	Close() error
}

// DecoderFactory opens a decoder for a fetched video file.
type DecoderFactory func(ctx context.Context, handle asset.Handle, file *asset.VideoFile) (Decoder, error)

// AudioFactory creates the audio output for a decoder.
type AudioFactory func(dec Decoder) (audio.Output, error)

// NewAudioFactory returns a factory that decodes the decoder's Opus track
// into sink. Decoders without an audio track, or a nil sink, get a silent
// output.
func NewAudioFactory(sink audio.Sink, sinkRate uint32) AudioFactory {
	return func(dec Decoder) (audio.Output, error) {
		source, ok := dec.(audio.PacketSource)
		if !ok || sink == nil {
			logrus.WithFields(logrus.Fields{
				"function":  "AudioFactory",
				"has_track": ok,
				"has_sink":  sink != nil,
			}).Debug("Using silent audio output")
			return audio.NewNullOutput(), nil
		}
		return audio.NewOpusOutput(source, sink, sinkRate)
	}
}
