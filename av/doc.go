// Package av implements the playback core of the panorama viewer.
//
// A Manager owns at most one Session at a time. Replace tears down the
// active session synchronously before constructing the next one, so two
// sessions never hold the audio output or the decoder together.
//
// # Sessions
//
// A Session drives one video through the states
//
//	Idle -> Loading -> Ready -> Playing <-> Paused -> Ended -> TornDown
//
// It owns the Decoder, the audio Output, the media Clock, the video
// Streamer, and two TickSources: a display tick that publishes frames and
// a progress tick that reports playback position. Resources are released in
// reverse order of acquisition, which stops both tick sources before the
// audio output is deactivated and the decoder closed.
//
// # Seeking
//
// SeekCoordinator arbitrates between passive progress reports and user
// scrubbing. While a scrub or a seek is in progress the progress tick does
// not write PlaybackState.Progress. A seek requested while another is in
// flight is rejected, never queued.
//
//	manager, err := av.NewManager(source, decoders, av.DefaultSessionConfig())
//	session, err := manager.Replace(ctx, handle)
//	session.Play()
//	session.Seeker().Seek(0.5)
//
// # Sub-Packages
//
//   - av/video: decoded frames, the frame streamer, bilinear scaling
//   - av/audio: Opus audio output and resampling
package av
