// Package audio provides the audio output owned by a playback session.
//
// An Output is activated when its session starts, follows the session's
// play/pause and mute state, and is deactivated during teardown before the
// decoder is released. Only one Output may hold the audio hardware at a
// time; the session manager guarantees that by tearing the previous session
// down before the next one activates.
//
// OpusOutput decodes Opus packets with the pure Go pion/opus decoder,
// resamples the PCM to the sink rate and writes it to a Sink:
//
//	PacketSource → opus.Decoder → Resampler → Sink
//
// NullOutput is used for media without an audio track.
package audio
