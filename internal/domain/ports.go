package domain

import "context"

// ExerciseSource provides exercises. Implementations can be in-memory,
// file-based, or API-backed.
type ExerciseSource interface {
	List(ctx context.Context) ([]ExerciseSummary, error)
	Get(ctx context.Context, id string) (*Exercise, error)
}

// CompletionStore persists completion records of finished sessions.
type CompletionStore interface {
	SaveCompletions(ctx context.Context, records []CompletionRecord) error
	ListCompletions(ctx context.Context, limit int) ([]CompletionRecord, error)
}

// TextGenerator turns a coaching context into a spoken line. It may fail;
// callers must fall back.
type TextGenerator interface {
	GenerateCoachingText(ctx context.Context, cc CoachingContext) (string, error)
}

// SpeechSynthesizer turns text into playable audio bytes (WAV).
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

// AudioSink starts playback of one audio clip and returns its handle.
type AudioSink interface {
	Play(audio []byte) (Playback, error)
}

// Playback is a single playing clip. Done is closed (after at most one
// error value) when playback ends naturally, fails, or is stopped.
type Playback interface {
	Stop()
	Done() <-chan error
}

// Ambient is the background music loop. It is only stopped and resumed,
// never ducked.
type Ambient interface {
	Start() error
	Pause()
	Resume()
	Close() error
}
