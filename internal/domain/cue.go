package domain

import (
	"fmt"
	"time"
)

// CueCategory tags the kind of coaching line. Each category has its own
// static phrase table.
type CueCategory int

const (
	CueReady CueCategory = iota
	CueInstruction
	CueMotivation
	CueRestAnnouncement
	CueCompletion
)

// String returns the snake_case category name.
func (c CueCategory) String() string {
	switch c {
	case CueReady:
		return "ready"
	case CueInstruction:
		return "instruction"
	case CueMotivation:
		return "motivation"
	case CueRestAnnouncement:
		return "rest_announcement"
	case CueCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// CueKey identifies one coaching line's cache slot.
type CueKey struct {
	ExerciseID string
	Step       int
	Category   CueCategory
}

// String returns a stable key usable for maps and singleflight groups.
func (k CueKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.ExerciseID, k.Step, k.Category)
}

// CachedCue is a generated coaching line. It is never mutated after creation.
type CachedCue struct {
	Key       CueKey
	Text      string
	Audio     []byte
	CreatedAt time.Time
}

// CoachingContext is everything the text service gets to write a line.
type CoachingContext struct {
	ExerciseName  string
	TimeRemaining time.Duration
	CurrentStep   int
	TotalSteps    int
	UserName      string
	Phase         Phase
	Category      CueCategory
}

// CueSource records how a delivered cue was resolved.
type CueSource int

const (
	SourceCached CueSource = iota
	SourceGenerated
	SourceStatic
	SourceSilent
)

// String returns a human-readable source.
func (s CueSource) String() string {
	switch s {
	case SourceCached:
		return "cached"
	case SourceGenerated:
		return "generated"
	case SourceStatic:
		return "static"
	case SourceSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// Delivery describes the outcome of one spoken cue request.
type Delivery struct {
	Key     CueKey
	Text    string
	Source  CueSource
	Played  bool
	Dropped bool // superseded by a newer request before playback started
}
