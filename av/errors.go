package av

import "errors"

// Sentinel errors for av package operations.
// These errors enable reliable error classification using errors.Is().

// Session errors.
var (
	// ErrNoActiveSession indicates no session occupies the manager slot.
	ErrNoActiveSession = errors.New("no active playback session")

	// ErrInvalidTransition indicates an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSessionConflict indicates a session tried to claim the slot while
	// another still held it. It is raised as a panic because Replace makes
	// it unreachable.
	ErrSessionConflict = errors.New("playback session conflict")
)

// Seek errors.
var (
	// ErrSeekRejected indicates a seek was requested while another was in
	// flight. Seek reports it by returning false.
	ErrSeekRejected = errors.New("seek already in flight")
)

// Manager state errors.
var (
	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.New("manager is closed")

	// ErrTickSourceRunning indicates Start was called on a running tick source.
	ErrTickSourceRunning = errors.New("tick source already running")
)
