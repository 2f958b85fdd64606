// Package video moves decoded video frames from a decoder onto the texture
// the renderer samples once per display refresh.
//
// The pipeline:
//
//	Decoder → (decode goroutine) → Streamer.Enqueue → pending queue
//	display tick → Streamer.Tick(hostTime) → TakeFrame → published frame
//	renderer → Streamer.Current()
//
// Frames carry a presentation time in media time. The Streamer converts the
// host time of each display tick to media time through an ItemClock and
// publishes the newest frame that is due. It never blocks the tick: when the
// decoder lags the previously published frame stays current, and when the
// tick lags, frames that were overtaken are skipped. Presentation times only
// move forward between flushes.
//
// Frames use planar YUV420, the layout decoders hand out.
package video
