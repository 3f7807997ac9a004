// Package timer implements the pausable countdown that drives each
// workout phase.
package timer

import (
	"sync"
	"time"

	"github.com/hammamikhairi/ottofit/internal/logger"
)

// EventKind distinguishes tick and expiry events.
type EventKind int

const (
	EventTick EventKind = iota
	EventExpired
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	if k == EventExpired {
		return "expired"
	}
	return "tick"
}

// Event is emitted on every countdown step. Run identifies the Start call
// that produced it so consumers can ignore events from a previous phase.
type Event struct {
	Kind      EventKind
	Run       uint64
	Remaining time.Duration
	Elapsed   time.Duration
}

// Option configures the timer.
type Option func(*PhaseTimer)

// WithTickInterval sets the wall-clock length of one countdown second.
// Tests shrink it to milliseconds; production uses one second.
func WithTickInterval(d time.Duration) Option {
	return func(t *PhaseTimer) {
		t.interval = d
	}
}

// WithBuffer sets the capacity of the event channel.
func WithBuffer(n int) Option {
	return func(t *PhaseTimer) {
		t.buffer = n
	}
}

// PhaseTimer is a countdown with 1-second granularity. It counts whole
// seconds; the tick interval only decides how long a second lasts. Pause
// freezes the remaining value exactly and Resume continues from it.
type PhaseTimer struct {
	log      *logger.Logger
	interval time.Duration
	buffer   int
	events   chan Event
	closed   chan struct{}

	mu        sync.Mutex
	total     int // seconds
	remaining int // seconds
	run       uint64
	token     uint64 // invalidates a ticking goroutine when bumped
	running   bool
	expired   bool
	isClosed  bool
	stop      chan struct{}
}

// New creates an idle timer. Call Start to begin a countdown.
func New(log *logger.Logger, opts ...Option) *PhaseTimer {
	t := &PhaseTimer{
		log:      log,
		interval: time.Second,
		buffer:   64,
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.events = make(chan Event, t.buffer)
	return t
}

// Events returns the channel carrying tick and expiry events.
func (t *PhaseTimer) Events() <-chan Event { return t.events }

// Start begins a new countdown of d, rounded up to whole seconds, replacing
// any countdown in progress. It returns the run ID carried by the events.
// A non-positive duration expires immediately.
func (t *PhaseTimer) Start(d time.Duration) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.haltLocked()
	t.run++
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 0 {
		secs = 0
	}
	t.total = secs
	t.remaining = secs
	t.expired = false

	if t.isClosed {
		return t.run
	}
	if secs == 0 {
		t.expired = true
		ev := Event{Kind: EventExpired, Run: t.run}
		go t.deliver(ev)
		return t.run
	}

	t.launchLocked()
	t.log.Debug("timer: run %d started (%ds, tick=%s)", t.run, secs, t.interval)
	return t.run
}

// Pause suspends the countdown. It returns false when nothing was running.
func (t *PhaseTimer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return false
	}
	t.haltLocked()
	t.log.Debug("timer: run %d paused at %ds", t.run, t.remaining)
	return true
}

// Resume continues a paused countdown from its frozen value.
func (t *PhaseTimer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running || t.expired || t.isClosed || t.remaining <= 0 {
		return false
	}
	t.launchLocked()
	t.log.Debug("timer: run %d resumed at %ds", t.run, t.remaining)
	return true
}

// Expire ends the current countdown now and emits its expiry event, unless
// it already expired.
func (t *PhaseTimer) Expire() bool {
	t.mu.Lock()
	if t.expired || t.isClosed {
		t.mu.Unlock()
		return false
	}
	t.haltLocked()
	t.remaining = 0
	t.expired = true
	ev := Event{Kind: EventExpired, Run: t.run, Elapsed: time.Duration(t.total) * time.Second}
	t.mu.Unlock()

	go t.deliver(ev)
	return true
}

// Remaining returns the time left in the current countdown.
func (t *PhaseTimer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.remaining) * time.Second
}

// Elapsed returns the counted time of the current countdown.
func (t *PhaseTimer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.total-t.remaining) * time.Second
}

// Total returns the length of the current countdown.
func (t *PhaseTimer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.total) * time.Second
}

// Running reports whether the countdown is ticking.
func (t *PhaseTimer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Close stops the timer for good and releases its goroutine.
func (t *PhaseTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isClosed {
		return
	}
	t.haltLocked()
	t.isClosed = true
	close(t.closed)
}

// launchLocked starts a ticking goroutine. Must be called with t.mu held.
func (t *PhaseTimer) launchLocked() {
	t.token++
	t.running = true
	t.stop = make(chan struct{})
	go t.loop(t.token, t.stop)
}

// haltLocked stops the ticking goroutine, if any. Must be called with
// t.mu held.
func (t *PhaseTimer) haltLocked() {
	if !t.running {
		return
	}
	t.token++
	t.running = false
	close(t.stop)
}

func (t *PhaseTimer) loop(token uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ev, ok := t.tick(token)
			if !ok {
				return
			}
			t.deliver(ev)
			if ev.Kind == EventExpired {
				return
			}
		}
	}
}

// tick decrements the countdown by one second. It returns false when the
// goroutine calling it has been superseded by Pause, Start or Close.
func (t *PhaseTimer) tick(token uint64) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if token != t.token || !t.running {
		return Event{}, false
	}
	t.remaining--
	ev := Event{
		Kind:      EventTick,
		Run:       t.run,
		Remaining: time.Duration(t.remaining) * time.Second,
		Elapsed:   time.Duration(t.total-t.remaining) * time.Second,
	}
	if t.remaining <= 0 {
		t.remaining = 0
		t.expired = true
		t.running = false
		t.token++
		ev.Kind = EventExpired
		t.log.Debug("timer: run %d expired", t.run)
	}
	return ev, true
}

// deliver hands an event to the consumer. Ticks are dropped when the
// consumer lags; expiry always waits for room unless the timer is closed.
func (t *PhaseTimer) deliver(ev Event) {
	if ev.Kind == EventTick {
		select {
		case t.events <- ev:
		default:
			t.log.Warn("timer: consumer lagging, dropped tick (run %d, %s left)", ev.Run, ev.Remaining)
		}
		return
	}
	select {
	case t.events <- ev:
	case <-t.closed:
	}
}
