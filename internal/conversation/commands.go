package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/ottofit/internal/domain"
	"github.com/hammamikhairi/ottofit/internal/speech"
)

// Session is the part of the session controller commands act on.
type Session interface {
	Pause() error
	Resume() error
	Skip() error
	Encourage() (bool, error)
	RepeatLast() (bool, error)
	Snapshot() domain.Snapshot
}

// Help lists the commands, one per line.
var Help = []string{
	"pause / brb        Pause the countdown and audio",
	"resume / back      Continue a paused session",
	"<enter>            Toggle pause",
	"skip / next        End the current phase now",
	"more / push me     Ask for a motivation line",
	"repeat / again     Say the last line again",
	"status / where     Show progress",
	"quit / exit        End the session",
}

// Apply runs cmd against s and returns a short line of feedback for the
// user. CommandQuit is left to the caller.
func Apply(cmd Command, s Session) (string, error) {
	switch cmd {
	case CommandToggle:
		if s.Snapshot().Paused {
			return Apply(CommandResume, s)
		}
		return Apply(CommandPause, s)

	case CommandPause:
		if err := s.Pause(); err != nil {
			return describe(err)
		}
		return speech.LinePaused(), nil

	case CommandResume:
		if err := s.Resume(); err != nil {
			return describe(err)
		}
		return speech.LineResumed(), nil

	case CommandSkip:
		if err := s.Skip(); err != nil {
			return describe(err)
		}
		return "Skipped.", nil

	case CommandEncourage:
		ok, err := s.Encourage()
		if err != nil {
			return describe(err)
		}
		if !ok {
			return "Just said something. Give it a moment.", nil
		}
		return "", nil

	case CommandRepeat:
		ok, err := s.RepeatLast()
		if err != nil {
			return describe(err)
		}
		if !ok {
			return "Nothing to repeat right now.", nil
		}
		return "", nil

	case CommandStatus:
		return FormatStatus(s.Snapshot()), nil

	case CommandHelp:
		return strings.Join(Help, "\n"), nil

	case CommandQuit:
		return "", nil
	}
	return "Didn't catch that. Type 'help' for commands.", nil
}

// describe turns an expected control error into feedback. Anything else
// is returned as an error.
func describe(err error) (string, error) {
	switch {
	case errors.Is(err, domain.ErrSessionPaused):
		return "The session is paused. Resume first.", nil
	case errors.Is(err, domain.ErrNotPaused):
		return "The session is not paused.", nil
	case errors.Is(err, domain.ErrSessionClosed):
		return "The session is over.", nil
	case errors.Is(err, domain.ErrNotStarted):
		return "The session has not started yet.", nil
	}
	return "", err
}

// FormatStatus renders a one-line progress summary.
func FormatStatus(s domain.Snapshot) string {
	if s.Phase == domain.PhaseComplete {
		return fmt.Sprintf("Workout complete: %d steps.", s.TotalSteps)
	}
	line := fmt.Sprintf("%s, step %d/%d: %s, %s left",
		PhaseLabel(s.Phase), s.Step+1, s.TotalSteps, s.Exercise.Name, FormatDuration(s.Remaining))
	if s.Next != nil && s.Phase != domain.PhaseGetReady {
		line += ". Next: " + s.Next.Name
	}
	if s.Paused {
		line += " (paused)"
	}
	return line
}

// PhaseLabel returns the display name of a phase.
func PhaseLabel(p domain.Phase) string {
	switch p {
	case domain.PhaseGetReady:
		return "Get ready"
	case domain.PhaseWorkout:
		return "Workout"
	case domain.PhaseRest:
		return "Rest"
	case domain.PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// FormatDuration renders d as "45s" or "1m05s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m == 0 {
		return fmt.Sprintf("%ds", s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
