package engine

import (
	"fmt"

	"github.com/hammamikhairi/ottofit/internal/domain"
)

// StepsPerExercise is how many work intervals each selected exercise gets.
const StepsPerExercise = 2

// TotalSteps returns the number of work steps for n exercises.
func TotalSteps(n int) int {
	return StepsPerExercise * n
}

// ExerciseIndex maps step i to an index into a list of n exercises.
//
// Consecutive exercises form pairs (0,1), (2,3), ... and each pair covers
// four steps in the order first, second, first, second. When the last pair
// has no second exercise, the first one fills all of its steps:
//
//	[A B C] -> A B A B C C
//
// i must be in [0, 2n).
func ExerciseIndex(n, i int) int {
	base := 2 * (i / 4)
	if i%2 == 1 && base+1 < n {
		return base + 1
	}
	return base
}

// ClampStep forces i into [0, total). It returns an ErrInvariant error
// describing the correction when i was out of range.
func ClampStep(i, total int) (int, error) {
	switch {
	case total <= 0:
		return 0, fmt.Errorf("%w: step %d with no steps", domain.ErrInvariant, i)
	case i < 0:
		return 0, fmt.Errorf("%w: step %d clamped to 0", domain.ErrInvariant, i)
	case i >= total:
		return total - 1, fmt.Errorf("%w: step %d clamped to %d", domain.ErrInvariant, i, total-1)
	}
	return i, nil
}

// ExerciseForStep returns the exercise performed at step i. An
// out-of-range step is clamped, and the returned error (wrapping
// ErrInvariant) says so; the exercise is still valid.
func ExerciseForStep(exercises []domain.Exercise, i int) (domain.Exercise, error) {
	if len(exercises) == 0 {
		return domain.Exercise{}, domain.ErrNoExercises
	}
	step, err := ClampStep(i, TotalSteps(len(exercises)))
	return exercises[ExerciseIndex(len(exercises), step)], err
}

// Sequence lists the exercise of every step, in order.
func Sequence(exercises []domain.Exercise) []domain.Exercise {
	out := make([]domain.Exercise, TotalSteps(len(exercises)))
	for i := range out {
		out[i] = exercises[ExerciseIndex(len(exercises), i)]
	}
	return out
}
