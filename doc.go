// Package panosphere implements the core of a 360° panorama viewer.
//
// A Viewer turns drag and pinch gestures into a camera orientation and field
// of view, plays panoramic video with at most one playback session alive at
// a time, and stages media as temporary files for a platform share sheet.
// It performs no drawing. A renderer polls it once per display frame.
//
// # Getting Started
//
// Create a viewer over an asset source and a decoder factory:
//
//	source, err := asset.NewDirSource("/var/media")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	viewer, err := panosphere.New(config.Default(), source, decoders)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer viewer.Close()
//
//	handle, _ := source.Handle("pano/dive.mp4")
//	if err := viewer.Load(ctx, handle); err != nil {
//	    log.Fatal(err)
//	}
//	viewer.Play()
//
// # Rendering
//
// On every display frame the renderer reads:
//
//	view := viewer.CurrentViewTransform()
//	proj := viewer.CurrentProjection(width / height)
//	if frame := viewer.CurrentVideoFrame(hostTime); frame != nil {
//	    // upload frame.Y, frame.U, frame.V
//	}
//
// CurrentVideoFrame never blocks. When decoding falls behind the previous
// frame stays current.
//
// # Gestures
//
// Drag and pinch input is given in platform-normalized units:
//
//	viewer.DragBegin()
//	viewer.DragUpdate(dx, dy) // pitch clamps at the poles
//	viewer.DragEnd()
//
//	viewer.PinchBegin()
//	viewer.PinchUpdate(scale) // FOV clamps to the configured range
//	viewer.PinchEnd()
//
// Loading a new asset resets the orientation and keeps the field of view.
//
// # Seeking
//
// A progress control calls BeginScrub when the user grabs it, UpdateScrub
// while it moves, and EndScrub on release. While scrubbing, periodic
// progress reports do not touch the displayed position. Only one seek runs
// at a time; Seek and EndScrub report false when theirs was not issued.
//
// # Sharing
//
// Share copies an asset into a private staging directory and hands the copy
// to a callback. The host presents its share sheet and calls ReleaseShare
// when it is dismissed. Copies the host never releases are deleted after
// the configured grace timeout.
//
// # Package Layout
//
//   - view: orientation and zoom controllers, view and projection matrices
//   - av: playback sessions, the single-session Manager, seeking, media clock
//   - av/video: decoded frames, the frame streamer, scaling
//   - av/audio: Opus audio output
//   - asset: handles, the Source interface, scoped access, format detection
//   - share: staging, batches, expiry
//   - timing: the clock seam shared by av and share
//   - config: YAML configuration
package panosphere
