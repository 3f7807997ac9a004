// Package speech turns coaching cues into audio: the coaching cache, the
// static phrase cache, the playback coordinator and the Azure and oto
// backends they run on.
package speech

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.SpeechSynthesizer = (*NoOp)(nil)
	_ domain.TextGenerator     = (*NoOp)(nil)
	_ domain.AudioSink         = (*SilentSink)(nil)
)

// NoOp stands in for the text and speech services when they are not
// configured. Every call fails, so the coordinator falls back to silence.
type NoOp struct {
	log *logger.Logger
}

// NewNoOp creates a no-op service.
func NewNoOp(log *logger.Logger) *NoOp {
	return &NoOp{log: log}
}

// GenerateCoachingText returns ErrNotImplemented.
func (n *NoOp) GenerateCoachingText(_ context.Context, cc domain.CoachingContext) (string, error) {
	return "", fmt.Errorf("text generation for %s: %w", cc.Category, domain.ErrNotImplemented)
}

// SynthesizeSpeech returns ErrNotImplemented.
func (n *NoOp) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	n.log.Debug("speech no-op: would say %q", text)
	return nil, fmt.Errorf("speech synthesis: %w", domain.ErrNotImplemented)
}

// SilentSink accepts clips without an audio device. Every clip ends at once.
type SilentSink struct {
	log *logger.Logger
}

// NewSilentSink creates a sink that discards audio.
func NewSilentSink(log *logger.Logger) *SilentSink {
	return &SilentSink{log: log}
}

// Play returns a handle that finishes immediately.
func (s *SilentSink) Play(audio []byte) (domain.Playback, error) {
	s.log.Debug("silent sink: dropped %d bytes", len(audio))
	done := make(chan error)
	close(done)
	return silentPlayback{done: done}, nil
}

type silentPlayback struct{ done chan error }

func (silentPlayback) Stop()                 {}
func (p silentPlayback) Done() <-chan error { return p.done }
