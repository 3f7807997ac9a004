package conversation

import (
	"fmt"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/engine"
	"github.com/hammamikhairi/ottofit/internal/logger"
)

// ANSI escape codes for terminal formatting.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// PrintFunc is a function used to print formatted output.
// Matches the signature of fmt.Printf.
type PrintFunc func(format string, a ...interface{})

// Narrator prints session events as lines of text, for terminals without
// the full-screen UI. Ticks are printed only every tickEvery seconds.
type Narrator struct {
	log       *logger.Logger
	printFn   PrintFunc
	color     bool
	tickEvery int
}

// NewNarrator creates a text narrator. If printFn is nil, fmt.Printf is
// used.
func NewNarrator(log *logger.Logger, printFn PrintFunc, color bool) *Narrator {
	if printFn == nil {
		printFn = func(format string, a ...interface{}) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &Narrator{log: log, printFn: printFn, color: color, tickEvery: 5}
}

// Narrate prints one event.
func (n *Narrator) Narrate(ev engine.Event) {
	s := ev.Snapshot
	switch ev.Kind {
	case engine.EventPhase:
		if s.Phase == domain.PhaseComplete {
			n.print(green+bold, "Workout complete!")
			return
		}
		n.print(cyan+bold, "%s  %d/%d  %s (%s)",
			PhaseLabel(s.Phase), s.Step+1, s.TotalSteps, s.Exercise.Name, FormatDuration(s.PhaseTotal))

	case engine.EventTick:
		secs := int(s.Remaining.Seconds())
		if secs > 0 && (secs <= 3 || secs%n.tickEvery == 0) {
			n.print(dim, "  %s", FormatDuration(s.Remaining))
		}

	case engine.EventCue:
		d := ev.Delivery
		if d == nil || d.Dropped || d.Text == "" {
			return
		}
		n.print(yellow, "  \"%s\"", d.Text)

	case engine.EventPaused:
		n.print(bold, "Paused at %s.", FormatDuration(s.Remaining))

	case engine.EventResumed:
		n.print(bold, "Resumed.")

	case engine.EventCompleted:
		if ev.Err != nil {
			n.print(red+bold, "Could not save your workout: %v", ev.Err)
			return
		}
		n.print(green, "Saved %d steps.", s.TotalSteps)

	case engine.EventClosed:
		n.log.Debug("narrator: session closed")
	}
}

// Say prints a feedback line.
func (n *Narrator) Say(text string) {
	if text != "" {
		n.print("", "%s", text)
	}
}

func (n *Narrator) print(style, format string, a ...interface{}) {
	if !n.color || style == "" {
		n.printFn(format, a...)
		return
	}
	n.printFn(style+format+reset, a...)
}
