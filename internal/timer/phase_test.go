package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/ottofit/internal/logger"
)

const tick = 10 * time.Millisecond

func newTestTimer(t *testing.T) *PhaseTimer {
	t.Helper()
	pt := New(logger.New(logger.LevelOff, nil), WithTickInterval(tick))
	t.Cleanup(pt.Close)
	return pt
}

// waitExpired drains events until an expiry for run arrives.
func waitExpired(t *testing.T, pt *PhaseTimer, run uint64, within time.Duration) []Event {
	t.Helper()
	var seen []Event
	deadline := time.After(within)
	for {
		select {
		case ev := <-pt.Events():
			if ev.Run != run {
				continue
			}
			seen = append(seen, ev)
			if ev.Kind == EventExpired {
				return seen
			}
		case <-deadline:
			t.Fatalf("run %d did not expire within %s (saw %d events)", run, within, len(seen))
		}
	}
}

func TestPhaseTimerCountsDownAndExpiresOnce(t *testing.T) {
	pt := newTestTimer(t)
	run := pt.Start(3 * time.Second)

	events := waitExpired(t, pt, run, time.Second)
	require.Len(t, events, 3)
	assert.Equal(t, EventTick, events[0].Kind)
	assert.Equal(t, 2*time.Second, events[0].Remaining)
	assert.Equal(t, time.Second, events[0].Elapsed)
	assert.Equal(t, EventExpired, events[2].Kind)
	assert.Equal(t, time.Duration(0), pt.Remaining())

	// No second expiry for the same run.
	select {
	case ev := <-pt.Events():
		t.Fatalf("unexpected event after expiry: %+v", ev)
	case <-time.After(5 * tick):
	}
	assert.False(t, pt.Resume(), "resume after expiry must be a no-op")
}

func TestPhaseTimerPauseFreezesRemaining(t *testing.T) {
	pt := newTestTimer(t)
	pt.Start(50 * time.Second)

	time.Sleep(5 * tick)
	require.True(t, pt.Pause())
	frozen := pt.Remaining()

	time.Sleep(10 * tick)
	assert.Equal(t, frozen, pt.Remaining(), "remaining must not move while paused")

	require.True(t, pt.Resume())
	require.True(t, pt.Pause())
	assert.LessOrEqual(t, pt.Remaining(), frozen)
}

func TestPhaseTimerPauseResumeWithoutElapsedTime(t *testing.T) {
	pt := newTestTimer(t)
	pt.Start(20 * time.Second)
	require.True(t, pt.Pause())
	r := pt.Remaining()

	require.True(t, pt.Resume())
	require.True(t, pt.Pause())
	assert.Equal(t, r, pt.Remaining())
	assert.Equal(t, 20*time.Second, r)
}

func TestPhaseTimerRestartIgnoresOldRun(t *testing.T) {
	pt := newTestTimer(t)
	first := pt.Start(100 * time.Second)
	time.Sleep(3 * tick)
	second := pt.Start(2 * time.Second)
	require.NotEqual(t, first, second)

	events := waitExpired(t, pt, second, time.Second)
	assert.Equal(t, EventExpired, events[len(events)-1].Kind)
	assert.Equal(t, 2*time.Second, pt.Total())
}

func TestPhaseTimerExpireEarly(t *testing.T) {
	pt := newTestTimer(t)
	run := pt.Start(30 * time.Second)
	require.True(t, pt.Expire())
	require.False(t, pt.Expire())

	events := waitExpired(t, pt, run, time.Second)
	assert.Equal(t, EventExpired, events[len(events)-1].Kind)
	assert.False(t, pt.Running())
}

func TestPhaseTimerZeroDurationExpiresImmediately(t *testing.T) {
	pt := newTestTimer(t)
	run := pt.Start(0)
	waitExpired(t, pt, run, 5*tick)
}

func TestPhaseTimerPauseWhenIdle(t *testing.T) {
	pt := newTestTimer(t)
	assert.False(t, pt.Pause())
	assert.False(t, pt.Resume())
}
