// Package domain defines the core types and interfaces for the workout coach.
// All other packages depend on domain; domain depends on nothing.
package domain

import "time"

// Exercise is a single catalogue entry. The session core only reads it.
type Exercise struct {
	ID           string
	Name         string
	MediaRef     string        // target-phase media (gif, video id)
	WorkDuration time.Duration // nominal, informational only
	Difficulty   Difficulty
	Tags         []string
}

// ExerciseSummary is a lightweight view of an exercise for listing.
type ExerciseSummary struct {
	ID         string
	Name       string
	Difficulty Difficulty
}

// Difficulty tags an exercise's intensity.
type Difficulty int

const (
	DifficultyEasy Difficulty = iota
	DifficultyMedium
	DifficultyHard
)

// String returns a human-readable difficulty.
func (d Difficulty) String() string {
	switch d {
	case DifficultyEasy:
		return "easy"
	case DifficultyMedium:
		return "medium"
	case DifficultyHard:
		return "hard"
	default:
		return "unknown"
	}
}

// ParseDifficulty converts a lower-case name to a Difficulty. Unknown names
// map to DifficultyMedium.
func ParseDifficulty(s string) Difficulty {
	switch s {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}
