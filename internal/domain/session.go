package domain

import "time"

// Session is the mutable state of one workout. Only the session controller
// writes to it; readers get copies through Snapshot.
type Session struct {
	ID        string
	UserName  string
	Exercises []Exercise
	StepIndex int
	Phase     Phase
	Paused    bool
	StartedAt time.Time
	UpdatedAt time.Time
}

// TotalSteps returns the number of work steps: two per selected exercise.
func (s *Session) TotalSteps() int {
	return 2 * len(s.Exercises)
}

// Phase is the active segment of a session. Exactly one is active at a time.
type Phase int

const (
	PhaseGetReady Phase = iota
	PhaseWorkout
	PhaseRest
	PhaseComplete
)

// String returns a human-readable phase.
func (p Phase) String() string {
	switch p {
	case PhaseGetReady:
		return "get_ready"
	case PhaseWorkout:
		return "workout"
	case PhaseRest:
		return "rest"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the four phases.
func (p Phase) Valid() bool {
	return p >= PhaseGetReady && p <= PhaseComplete
}

// Snapshot is a read-only view of a session for the UI layer.
type Snapshot struct {
	SessionID  string
	Exercise   Exercise
	Next       *Exercise // exercise of the following step, nil on the last
	Phase      Phase
	Step       int
	TotalSteps int
	Remaining  time.Duration
	PhaseTotal time.Duration
	Paused     bool
	LastCue    string
}

// CompletionRecord is emitted once per step when a session completes.
type CompletionRecord struct {
	ID             string
	SessionID      string
	Date           time.Time
	ExerciseID     string
	Step           int
	ActualDuration time.Duration
}
