package engine

import (
	"sync"
	"sync/atomic"

	"github.com/hammamikhairi/ottofit/internal/domain"
)

// EventKind identifies a session event.
type EventKind int

const (
	// EventPhase fires on every phase entry, including Complete.
	EventPhase EventKind = iota
	// EventTick fires once per counted second.
	EventTick
	// EventCue fires after each cue request is resolved (or dropped).
	EventCue
	EventPaused
	EventResumed
	// EventCompleted fires once the completion records were handed to the
	// store.
	EventCompleted
	EventClosed
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventPhase:
		return "phase"
	case EventTick:
		return "tick"
	case EventCue:
		return "cue"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventCompleted:
		return "completed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a state change published to subscribers.
type Event struct {
	Kind     EventKind
	Snapshot domain.Snapshot
	Delivery *domain.Delivery // set for EventCue
	Err      error            // set for EventCompleted when saving failed
}

// observers fans events out to subscriber channels. Sends never block:
// a full channel drops the event for that subscriber. Subscribers own
// their channels; they are never closed here.
type observers struct {
	mu      sync.RWMutex
	next    int
	subs    map[int]chan<- Event
	dropped atomic.Int64
}

func (o *observers) add(ch chan<- Event) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]chan<- Event)
	}
	id := o.next
	o.next++
	o.subs[id] = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

func (o *observers) publish(ev Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			o.dropped.Add(1)
		}
	}
}

// clear removes every subscriber.
func (o *observers) clear() {
	o.mu.Lock()
	o.subs = nil
	o.mu.Unlock()
}
