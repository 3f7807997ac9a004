package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

func quietLog() *logger.Logger { return logger.New(logger.LevelOff, nil) }

// fakeText returns "<category> for <exercise>" after an optional delay.
type fakeText struct {
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeText) GenerateCoachingText(ctx context.Context, cc domain.CoachingContext) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("**%s for %s**", cc.Category, cc.ExerciseName), nil
}

// fakeSynth returns the text itself as "audio".
type fakeSynth struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSynth) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(text), nil
}

// fakeSink records every clip and the order of Play and Stop calls.
type fakeSink struct {
	mu      sync.Mutex
	events  []string
	played  []string
	handles []*fakePlayback
	playing int
	maxPlay int
	err     error
}

func (s *fakeSink) Play(audio []byte) (domain.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	pb := &fakePlayback{sink: s, done: make(chan error)}
	s.handles = append(s.handles, pb)
	s.played = append(s.played, string(audio))
	s.events = append(s.events, "play:"+string(audio))
	s.playing++
	s.maxPlay = max(s.maxPlay, s.playing)
	return pb, nil
}

func (s *fakeSink) snapshot() (played, events []string, maxPlaying int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.played...), append([]string(nil), s.events...), s.maxPlay
}

// finishAll ends every clip still playing.
func (s *fakeSink) finishAll() {
	s.mu.Lock()
	hs := append([]*fakePlayback(nil), s.handles...)
	s.mu.Unlock()
	for _, h := range hs {
		h.end("finish")
	}
}

type fakePlayback struct {
	sink *fakeSink
	once sync.Once
	done chan error
}

func (p *fakePlayback) Stop() { p.end("stop") }

func (p *fakePlayback) end(kind string) {
	p.once.Do(func() {
		p.sink.mu.Lock()
		p.sink.playing--
		p.sink.events = append(p.sink.events, kind)
		p.sink.mu.Unlock()
		close(p.done)
	})
}

func (p *fakePlayback) Done() <-chan error { return p.done }

// fakeAmbient counts calls.
type fakeAmbient struct {
	starts, pauses, resumes, closes atomic.Int32
}

func (a *fakeAmbient) Start() error { a.starts.Add(1); return nil }
func (a *fakeAmbient) Pause()       { a.pauses.Add(1) }
func (a *fakeAmbient) Resume()      { a.resumes.Add(1) }
func (a *fakeAmbient) Close() error { a.closes.Add(1); return nil }

var errBackend = errors.New("backend down")
