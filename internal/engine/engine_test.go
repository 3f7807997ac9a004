package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hammamikhairi/ottofit/internal/catalogue"
	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
	"github.com/hammamikhairi/ottofit/internal/storage"
)

func setupEngine(t *testing.T, opts ...Option) (*Engine, context.Context) {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	svc := Services{
		Text:   &recordingText{},
		Speech: echoSynth{},
		Store:  storage.NewMemoryStore(log),
	}
	base := []Option{
		WithTickInterval(testTick),
		WithDurations(time.Second, time.Second, time.Second),
	}
	eng := New(catalogue.NewMemorySource(log), svc, log, WithSessionOptions(append(base, opts...)...))
	return eng, context.Background()
}

func TestListExercises(t *testing.T) {
	eng, ctx := setupEngine(t)

	list, err := eng.ListExercises(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(list) == 0 {
		t.Fatal("expected built-in exercises")
	}

	ex, err := eng.GetExercise(ctx, "squats")
	if err != nil {
		t.Fatalf("getting squats: %v", err)
	}
	if ex.Name != "Squats" {
		t.Fatalf("expected Squats, got %q", ex.Name)
	}

	if _, err := eng.GetExercise(ctx, "nonexistent"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartSession(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr error
	}{
		{"single exercise", []string{"squats"}, nil},
		{"duplicates allowed", []string{"plank", "plank"}, nil},
		{"no exercises", nil, domain.ErrNoExercises},
		{"unknown exercise", []string{"squats", "nonexistent"}, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, ctx := setupEngine(t, WithDurations(100*time.Second, 0, 0))
			ctrl, err := eng.StartSession(ctx, tt.ids)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer ctrl.Close()

			if ctrl.ID() == "" {
				t.Fatal("session ID is empty")
			}
			if ctrl.Phase() != domain.PhaseGetReady {
				t.Fatalf("expected get_ready, got %s", ctrl.Phase())
			}
			if got := ctrl.Snapshot().TotalSteps; got != 2*len(tt.ids) {
				t.Fatalf("expected %d steps, got %d", 2*len(tt.ids), got)
			}
			if eng.Active() != ctrl {
				t.Fatal("expected the new session to be active")
			}
		})
	}
}

func TestOneSessionAtATime(t *testing.T) {
	eng, ctx := setupEngine(t, WithDurations(100*time.Second, 0, 0))

	first, err := eng.StartSession(ctx, []string{"squats"})
	if err != nil {
		t.Fatalf("starting first session: %v", err)
	}
	if _, err := eng.StartSession(ctx, []string{"lunges"}); !errors.Is(err, domain.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	first.Close()
	if eng.Active() != nil {
		t.Fatal("closed session still active")
	}

	second, err := eng.StartSession(ctx, []string{"lunges"})
	if err != nil {
		t.Fatalf("starting second session: %v", err)
	}
	second.Close()
}

func TestHistory(t *testing.T) {
	eng, ctx := setupEngine(t)

	records, err := eng.History(ctx, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty history, got %d", len(records))
	}

	ctrl, err := eng.StartSession(ctx, []string{"squats", "plank"})
	if err != nil {
		t.Fatalf("starting session: %v", err)
	}
	defer ctrl.Close()

	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not finish (phase %s)", ctrl.Phase())
	}

	records, err = eng.History(ctx, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	want := []string{"squats", "plank", "squats", "plank"}
	for _, r := range records {
		if r.ExerciseID != want[r.Step] {
			t.Errorf("step %d: expected %s, got %s", r.Step, want[r.Step], r.ExerciseID)
		}
	}

	limited, err := eng.History(ctx, 1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 record, got %d", len(limited))
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	eng := New(catalogue.NewMemorySource(log), Services{Text: &recordingText{}, Speech: echoSynth{}}, log)

	records, err := eng.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records, got %v", records)
	}
}
