package av

import "fmt"

// SessionState is the lifecycle state of a playback session.
type SessionState uint32

const (
	// StateIdle indicates the session has not started loading.
	StateIdle SessionState = iota
	// StateLoading indicates the asset and decoder are being prepared.
	StateLoading
	// StateReady indicates the session is loaded and not yet played.
	StateReady
	// StatePlaying indicates the clock is running.
	StatePlaying
	// StatePaused indicates the clock is stopped with decoder state kept.
	StatePaused
	// StateEnded indicates playback reached the end or was stopped.
	StateEnded
	// StateTornDown indicates every resource has been released.
	StateTornDown
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateTornDown:
		return "torn-down"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// PlaybackState is the observable playback state of a session.
type PlaybackState struct {
	IsPlaying bool
	IsMuted   bool
	// Progress is the playback position as a fraction of the duration.
	Progress float64
	// IsScrubbing is set while the user drags the progress control.
	IsScrubbing bool
	// IsSeekInFlight is set from seek issue until its completion.
	IsSeekInFlight bool
}
