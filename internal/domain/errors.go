package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound       = errors.New("not found")
	ErrNoExercises    = errors.New("no exercises selected")
	ErrSessionClosed  = errors.New("session is closed")
	ErrSessionPaused  = errors.New("session is paused")
	ErrNotPaused      = errors.New("session is not paused")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
	ErrNotImplemented = errors.New("not implemented")

	// ErrGeneration marks a failure of the text or speech service.
	ErrGeneration = errors.New("generation failed")
	// ErrPlayback marks a decode or stream failure in the audio sink.
	ErrPlayback = errors.New("playback failed")
	// ErrInvariant marks a state the controller should never reach. It is
	// logged and the session is clamped, never returned to the UI.
	ErrInvariant = errors.New("invariant violation")
)
