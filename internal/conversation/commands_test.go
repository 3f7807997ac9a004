package conversation

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/engine"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

type fakeSession struct {
	snap      domain.Snapshot
	calls     []string
	err       error
	encourage bool
	repeat    bool
}

func (f *fakeSession) Pause() error {
	f.calls = append(f.calls, "pause")
	if f.err == nil {
		f.snap.Paused = true
	}
	return f.err
}

func (f *fakeSession) Resume() error {
	f.calls = append(f.calls, "resume")
	if f.err == nil {
		f.snap.Paused = false
	}
	return f.err
}

func (f *fakeSession) Skip() error {
	f.calls = append(f.calls, "skip")
	return f.err
}

func (f *fakeSession) Encourage() (bool, error) {
	f.calls = append(f.calls, "encourage")
	return f.encourage, f.err
}

func (f *fakeSession) RepeatLast() (bool, error) {
	f.calls = append(f.calls, "repeat")
	return f.repeat, f.err
}

func (f *fakeSession) Snapshot() domain.Snapshot { return f.snap }

func TestApplyToggle(t *testing.T) {
	s := &fakeSession{}

	if _, err := Apply(CommandToggle, s); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := Apply(CommandToggle, s); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got := strings.Join(s.calls, ","); got != "pause,resume" {
		t.Fatalf("expected pause,resume, got %s", got)
	}
}

func TestApplyFeedback(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		session *fakeSession
		want    string
	}{
		{"skip", CommandSkip, &fakeSession{}, "Skipped."},
		{"encourage accepted", CommandEncourage, &fakeSession{encourage: true}, ""},
		{"encourage too soon", CommandEncourage, &fakeSession{}, "Give it a moment"},
		{"nothing to repeat", CommandRepeat, &fakeSession{}, "Nothing to repeat"},
		{"paused", CommandSkip, &fakeSession{err: domain.ErrSessionPaused}, "Resume first"},
		{"not paused", CommandResume, &fakeSession{err: domain.ErrNotPaused}, "not paused"},
		{"over", CommandPause, &fakeSession{err: fmt.Errorf("wrapped: %w", domain.ErrSessionClosed)}, "over"},
		{"unknown", CommandUnknown, &fakeSession{}, "help"},
		{"help", CommandHelp, &fakeSession{}, "skip / next"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.cmd, tt.session)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == "" && got != "" {
				t.Fatalf("expected no feedback, got %q", got)
			}
			if !strings.Contains(got, tt.want) {
				t.Fatalf("expected %q in %q", tt.want, got)
			}
		})
	}
}

func TestApplyUnexpectedError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Apply(CommandSkip, &fakeSession{err: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestFormatStatus(t *testing.T) {
	next := domain.Exercise{Name: "Plank"}
	got := FormatStatus(domain.Snapshot{
		Exercise:   domain.Exercise{Name: "Squats"},
		Next:       &next,
		Phase:      domain.PhaseWorkout,
		Step:       1,
		TotalSteps: 4,
		Remaining:  65 * time.Second,
		Paused:     true,
	})
	want := "Workout, step 2/4: Squats, 1m05s left. Next: Plank (paused)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := FormatStatus(domain.Snapshot{Phase: domain.PhaseComplete, TotalSteps: 4}); !strings.Contains(got, "complete") {
		t.Fatalf("unexpected completion status %q", got)
	}
}

func TestNarrator(t *testing.T) {
	var lines []string
	n := NewNarrator(logger.New(logger.LevelOff, nil), func(format string, a ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, a...))
	}, false)

	snap := domain.Snapshot{
		Exercise:   domain.Exercise{Name: "Squats"},
		Phase:      domain.PhaseWorkout,
		TotalSteps: 2,
		PhaseTotal: 20 * time.Second,
		Remaining:  20 * time.Second,
	}
	n.Narrate(engine.Event{Kind: engine.EventPhase, Snapshot: snap})
	n.Narrate(engine.Event{Kind: engine.EventCue, Delivery: &domain.Delivery{Text: "Squats. Go!", Played: true}})
	n.Narrate(engine.Event{Kind: engine.EventCue, Delivery: &domain.Delivery{Text: "stale", Dropped: true}})

	snap.Remaining = 17 * time.Second
	n.Narrate(engine.Event{Kind: engine.EventTick, Snapshot: snap})
	snap.Remaining = 15 * time.Second
	n.Narrate(engine.Event{Kind: engine.EventTick, Snapshot: snap})

	n.Narrate(engine.Event{Kind: engine.EventCompleted, Snapshot: snap, Err: errors.New("disk full")})

	want := []string{
		"Workout  1/2  Squats (20s)",
		`  "Squats. Go!"`,
		"  15s",
		"Could not save your workout: disk full",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Fatalf("got:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}
