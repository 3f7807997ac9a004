package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/logger"
	"github.com/hammamikhairi/ottofit/internal/storage"
)

// ── Fakes ────────────────────────────────────────────────────────

// recordingText returns a line per request and keeps every context it saw.
type recordingText struct {
	mu   sync.Mutex
	seen []domain.CoachingContext
}

func (r *recordingText) GenerateCoachingText(_ context.Context, cc domain.CoachingContext) (string, error) {
	r.mu.Lock()
	r.seen = append(r.seen, cc)
	r.mu.Unlock()
	return fmt.Sprintf("%s %s step %d", cc.Category, cc.ExerciseName, cc.CurrentStep), nil
}

func (r *recordingText) contexts(category domain.CueCategory) []domain.CoachingContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CoachingContext
	for _, cc := range r.seen {
		if cc.Category == category {
			out = append(out, cc)
		}
	}
	return out
}

// blockingText holds every request until its context ends.
type blockingText struct {
	started, running atomic.Int32
}

func (b *blockingText) GenerateCoachingText(ctx context.Context, _ domain.CoachingContext) (string, error) {
	b.started.Add(1)
	b.running.Add(1)
	defer b.running.Add(-1)
	<-ctx.Done()
	return "", ctx.Err()
}

type echoSynth struct{}

func (echoSynth) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	return []byte(text), nil
}

type failingStore struct{}

func (failingStore) SaveCompletions(context.Context, []domain.CompletionRecord) error {
	return errors.New("disk full")
}

func (failingStore) ListCompletions(context.Context, int) ([]domain.CompletionRecord, error) {
	return nil, nil
}

// ── Fixture ──────────────────────────────────────────────────────

const testTick = 10 * time.Millisecond

func sessionExercises(ids ...string) []domain.Exercise {
	out := make([]domain.Exercise, len(ids))
	for i, id := range ids {
		out[i] = domain.Exercise{ID: id, Name: "Ex " + id}
	}
	return out
}

type fixture struct {
	ctrl   *Controller
	text   *recordingText
	store  *storage.MemoryStore
	events chan Event
}

func newFixture(t *testing.T, list []domain.Exercise, opts ...Option) *fixture {
	t.Helper()
	log := logger.New(logger.LevelOff, nil)
	f := &fixture{
		text:   &recordingText{},
		store:  storage.NewMemoryStore(log),
		events: make(chan Event, 4096),
	}
	base := []Option{
		WithTickInterval(testTick),
		WithDurations(time.Second, 3*time.Second, time.Second),
		WithMotivationOffset(time.Second),
		WithAdHocSpacing(0),
	}
	ctrl, err := NewController(list, Services{Text: f.text, Speech: echoSynth{}, Store: f.store}, log, append(base, opts...)...)
	require.NoError(t, err)
	f.ctrl = ctrl
	f.ctrl.Subscribe(f.events)
	t.Cleanup(ctrl.Close)
	return f
}

func (f *fixture) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-f.ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session did not finish (phase %s)", f.ctrl.Phase())
	}
}

func (f *fixture) waitPhase(t *testing.T, phase domain.Phase, step int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s := f.ctrl.Snapshot()
		return s.Phase == phase && s.Step == step
	}, 5*time.Second, time.Millisecond, "waiting for %s step %d", phase, step)
}

// drain returns every event published so far.
func (f *fixture) drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-f.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func workoutOrder(events []Event) []string {
	var ids []string
	for _, ev := range events {
		if ev.Kind == EventPhase && ev.Snapshot.Phase == domain.PhaseWorkout {
			ids = append(ids, ev.Snapshot.Exercise.ID)
		}
	}
	return ids
}

func cueDeliveries(events []Event, category domain.CueCategory) []domain.Delivery {
	var out []domain.Delivery
	for _, ev := range events {
		if ev.Kind == EventCue && ev.Delivery.Key.Category == category && !ev.Delivery.Dropped {
			out = append(out, *ev.Delivery)
		}
	}
	return out
}

// ── Tests ────────────────────────────────────────────────────────

func TestNewControllerRequiresExercises(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	_, err := NewController(nil, Services{Text: &recordingText{}, Speech: echoSynth{}}, log)
	assert.ErrorIs(t, err, domain.ErrNoExercises)

	_, err = NewController(sessionExercises("a"), Services{}, log)
	assert.Error(t, err)
}

func TestFullSessionSequence(t *testing.T) {
	f := newFixture(t, sessionExercises("a", "b", "c"))
	require.Equal(t, domain.PhaseGetReady, f.ctrl.Phase())
	require.NoError(t, f.ctrl.Start(context.Background()))

	f.waitDone(t)
	events := f.drain()

	assert.Equal(t, []string{"a", "b", "a", "b", "c", "c"}, workoutOrder(events))

	var last Event
	for _, ev := range events {
		if ev.Kind == EventCompleted {
			last = ev
		}
	}
	require.Equal(t, EventCompleted, last.Kind)
	assert.NoError(t, last.Err)
	assert.Equal(t, domain.PhaseComplete, last.Snapshot.Phase)
	assert.Zero(t, last.Snapshot.Remaining)
	assert.Nil(t, last.Snapshot.Next)

	records, err := f.store.ListCompletions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 6)
	wantIDs := []string{"a", "b", "a", "b", "c", "c"}
	for _, r := range records {
		assert.Equal(t, f.ctrl.ID(), r.SessionID)
		assert.Equal(t, wantIDs[r.Step], r.ExerciseID, "step %d", r.Step)
		assert.Equal(t, 3*time.Second, r.ActualDuration, "step %d", r.Step)
		assert.NotEmpty(t, r.ID)
	}
}

func TestPhaseOrder(t *testing.T) {
	f := newFixture(t, sessionExercises("a"))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitDone(t)

	var phases []domain.Phase
	for _, ev := range f.drain() {
		if ev.Kind == EventPhase {
			phases = append(phases, ev.Snapshot.Phase)
		}
	}
	assert.Equal(t, []domain.Phase{
		domain.PhaseGetReady,
		domain.PhaseWorkout, domain.PhaseRest,
		domain.PhaseWorkout,
		domain.PhaseComplete,
	}, phases)
}

func TestCuesPerPhase(t *testing.T) {
	f := newFixture(t, sessionExercises("a", "b"))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitDone(t)
	events := f.drain()

	ready := cueDeliveries(events, domain.CueReady)
	require.NotEmpty(t, ready)
	assert.Contains(t, ready[0].Text, "Ex a")

	assert.Len(t, cueDeliveries(events, domain.CueInstruction), 4)
	assert.Len(t, cueDeliveries(events, domain.CueRestAnnouncement), 3)
	assert.Len(t, cueDeliveries(events, domain.CueCompletion), 1)

	// Rest lines name the exercise coming next.
	for _, cc := range f.text.contexts(domain.CueRestAnnouncement) {
		next := []string{"Ex b", "Ex a", "Ex b"}[cc.CurrentStep]
		assert.Equal(t, next, cc.ExerciseName, "rest after step %d", cc.CurrentStep)
		assert.Equal(t, domain.PhaseRest, cc.Phase)
	}
}

func TestScheduledMotivation(t *testing.T) {
	f := newFixture(t, sessionExercises("a"))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitDone(t)

	steps := map[int]bool{}
	for _, d := range cueDeliveries(f.drain(), domain.CueMotivation) {
		steps[d.Key.Step] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, steps)
}

func TestMotivationAfterPhaseEndNeverFires(t *testing.T) {
	f := newFixture(t, sessionExercises("a"), WithMotivationOffset(10*time.Second))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitDone(t)
	assert.Empty(t, cueDeliveries(f.drain(), domain.CueMotivation))
}

func TestPauseDropsScheduledMotivation(t *testing.T) {
	f := newFixture(t, sessionExercises("a"),
		WithDurations(time.Second, 20*time.Second, time.Second),
		WithMotivationOffset(10*time.Second))
	require.NoError(t, f.ctrl.Start(context.Background()))

	f.waitPhase(t, domain.PhaseWorkout, 0)
	require.NoError(t, f.ctrl.Pause())
	require.NoError(t, f.ctrl.Resume())

	f.waitPhase(t, domain.PhaseWorkout, 1)
	require.NoError(t, f.ctrl.Skip())
	f.waitDone(t)

	for _, d := range cueDeliveries(f.drain(), domain.CueMotivation) {
		assert.NotEqual(t, 0, d.Key.Step, "motivation for step 0 fired after resume")
	}
}

func TestPauseFreezesCountdown(t *testing.T) {
	f := newFixture(t, sessionExercises("a"), WithDurations(time.Second, 100*time.Second, time.Second))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitPhase(t, domain.PhaseWorkout, 0)

	require.NoError(t, f.ctrl.Pause())
	assert.True(t, f.ctrl.Paused())
	frozen := f.ctrl.Remaining()
	time.Sleep(20 * testTick)
	assert.Equal(t, frozen, f.ctrl.Remaining())
	assert.Equal(t, domain.PhaseWorkout, f.ctrl.Phase())

	require.NoError(t, f.ctrl.Resume())
	assert.False(t, f.ctrl.Paused())
	require.Eventually(t, func() bool {
		return f.ctrl.Remaining() < frozen
	}, 2*time.Second, time.Millisecond)

	kinds := map[EventKind]int{}
	for _, ev := range f.drain() {
		kinds[ev.Kind]++
	}
	assert.Equal(t, 1, kinds[EventPaused])
	assert.Equal(t, 1, kinds[EventResumed])
}

func TestSkipRecordsElapsedWork(t *testing.T) {
	f := newFixture(t, sessionExercises("a"), WithDurations(100*time.Second, 100*time.Second, 100*time.Second))
	require.NoError(t, f.ctrl.Start(context.Background()))

	require.NoError(t, f.ctrl.Skip())
	f.waitPhase(t, domain.PhaseWorkout, 0)
	require.NoError(t, f.ctrl.Skip())
	f.waitPhase(t, domain.PhaseRest, 0)
	require.NoError(t, f.ctrl.Skip())
	f.waitPhase(t, domain.PhaseWorkout, 1)
	require.NoError(t, f.ctrl.Skip())
	f.waitDone(t)

	records, err := f.store.ListCompletions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Less(t, r.ActualDuration, 100*time.Second)
	}
}

func TestControlErrors(t *testing.T) {
	f := newFixture(t, sessionExercises("a"), WithDurations(100*time.Second, 100*time.Second, 100*time.Second))

	assert.ErrorIs(t, f.ctrl.Pause(), domain.ErrNotStarted)
	assert.ErrorIs(t, f.ctrl.Skip(), domain.ErrNotStarted)
	_, err := f.ctrl.Encourage()
	assert.ErrorIs(t, err, domain.ErrNotStarted)

	require.NoError(t, f.ctrl.Start(context.Background()))
	assert.ErrorIs(t, f.ctrl.Start(context.Background()), domain.ErrAlreadyStarted)
	assert.ErrorIs(t, f.ctrl.Resume(), domain.ErrNotPaused)

	require.NoError(t, f.ctrl.Pause())
	assert.ErrorIs(t, f.ctrl.Pause(), domain.ErrSessionPaused)
	assert.ErrorIs(t, f.ctrl.Skip(), domain.ErrSessionPaused)
	_, err = f.ctrl.RepeatLast()
	assert.ErrorIs(t, err, domain.ErrSessionPaused)

	f.ctrl.Close()
	f.ctrl.Close()
	assert.ErrorIs(t, f.ctrl.Resume(), domain.ErrSessionClosed)
	assert.ErrorIs(t, f.ctrl.Start(context.Background()), domain.ErrSessionClosed)
}

func TestCloseStopsBackgroundGeneration(t *testing.T) {
	text := &blockingText{}
	ctrl, err := NewController(sessionExercises("a", "b"), Services{Text: text, Speech: echoSynth{}},
		logger.New(logger.LevelOff, nil),
		WithTickInterval(testTick), WithDurations(100*time.Second, 0, 0))
	require.NoError(t, err)
	require.NoError(t, ctrl.Start(context.Background()))

	require.Eventually(t, func() bool { return text.started.Load() >= 2 }, 5*time.Second, time.Millisecond,
		"get-ready pre-generates instruction and motivation")

	closed := make(chan struct{})
	go func() {
		ctrl.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, int32(0), text.running.Load(), "no generation outlives Close")
}

func TestCloseMidSession(t *testing.T) {
	f := newFixture(t, sessionExercises("a", "b"), WithDurations(time.Second, 100*time.Second, time.Second))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitPhase(t, domain.PhaseWorkout, 0)

	f.ctrl.Close()
	select {
	case <-f.ctrl.Done():
	default:
		t.Fatal("Done not closed after Close")
	}

	records, err := f.store.ListCompletions(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, records, "an abandoned session writes no records")

	var closed bool
	for _, ev := range f.drain() {
		if ev.Kind == EventClosed {
			closed = true
		}
		assert.NotEqual(t, EventCompleted, ev.Kind)
	}
	assert.True(t, closed)
}

func TestEncourageAndRepeat(t *testing.T) {
	f := newFixture(t, sessionExercises("a"),
		WithDurations(time.Second, 100*time.Second, time.Second),
		WithMotivationOffset(50*time.Second))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitPhase(t, domain.PhaseWorkout, 0)

	require.Eventually(t, func() bool {
		return f.ctrl.Snapshot().LastCue != ""
	}, 2*time.Second, time.Millisecond)

	ok, err := f.ctrl.Encourage()
	require.NoError(t, err)
	assert.True(t, ok)
	require.Eventually(t, func() bool {
		return len(cueDeliveries(f.drain(), domain.CueMotivation)) > 0
	}, 2*time.Second, time.Millisecond)

	ok, err = f.ctrl.RepeatLast()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdHocSpacing(t *testing.T) {
	f := newFixture(t, sessionExercises("a"),
		WithDurations(time.Second, 100*time.Second, time.Second),
		WithAdHocSpacing(time.Hour))
	require.NoError(t, f.ctrl.Start(context.Background()))
	f.waitPhase(t, domain.PhaseWorkout, 0)

	ok, err := f.ctrl.Encourage()
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ctrl.Encourage()
	require.NoError(t, err)
	assert.False(t, ok, "second ad-hoc cue inside the spacing window")
}

func TestSaveFailureIsReported(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	ctrl, err := NewController(sessionExercises("a"), Services{Text: &recordingText{}, Speech: echoSynth{}, Store: failingStore{}}, log,
		WithTickInterval(testTick), WithDurations(time.Second, time.Second, time.Second))
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)

	events := make(chan Event, 1024)
	ctrl.Subscribe(events)
	require.NoError(t, ctrl.Start(context.Background()))

	select {
	case <-ctrl.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not finish")
	}
	var completed *Event
	for len(events) > 0 {
		ev := <-events
		if ev.Kind == EventCompleted {
			completed = &ev
		}
	}
	require.NotNil(t, completed)
	assert.ErrorContains(t, completed.Err, "disk full")
}

func TestSnapshotNext(t *testing.T) {
	f := newFixture(t, sessionExercises("a", "b"), WithDurations(100*time.Second, time.Second, time.Second))

	s := f.ctrl.Snapshot()
	assert.Equal(t, "a", s.Exercise.ID)
	require.NotNil(t, s.Next)
	assert.Equal(t, "b", s.Next.ID)
	assert.Equal(t, 4, s.TotalSteps)
	assert.Equal(t, "a", f.ctrl.CurrentExercise().ID)
}

func TestUnsubscribe(t *testing.T) {
	f := newFixture(t, sessionExercises("a"), WithDurations(100*time.Second, time.Second, time.Second))
	ch := make(chan Event, 16)
	unsubscribe := f.ctrl.Subscribe(ch)
	unsubscribe()
	unsubscribe()

	require.NoError(t, f.ctrl.Start(context.Background()))
	time.Sleep(5 * testTick)
	assert.Empty(t, ch)
}
