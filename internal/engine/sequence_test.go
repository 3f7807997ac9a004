package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/ottofit/internal/domain"
)

func exercises(ids ...string) []domain.Exercise {
	out := make([]domain.Exercise, len(ids))
	for i, id := range ids {
		out[i] = domain.Exercise{ID: id, Name: strings.ToUpper(id)}
	}
	return out
}

func ids(seq []domain.Exercise) string {
	parts := make([]string, len(seq))
	for i, e := range seq {
		parts[i] = e.ID
	}
	return strings.Join(parts, ",")
}

func TestSequence(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"a"}, "a,a"},
		{[]string{"a", "b"}, "a,b,a,b"},
		{[]string{"a", "b", "c"}, "a,b,a,b,c,c"},
		{[]string{"a", "b", "c", "d"}, "a,b,a,b,c,d,c,d"},
		{[]string{"a", "b", "c", "d", "e"}, "a,b,a,b,c,d,c,d,e,e"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.in, ""), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Sequence(exercises(tt.in...))))
		})
	}
}

// Checks the pairing rule directly for every N and step.
func TestExerciseIndexMatchesPairing(t *testing.T) {
	for n := 1; n <= 9; n++ {
		for i := 0; i < TotalSteps(n); i++ {
			pair := i / 4
			first, second := 2*pair, 2*pair+1
			want := first
			if i%2 == 1 && second < n {
				want = second
			}
			require.Equal(t, want, ExerciseIndex(n, i), fmt.Sprintf("n=%d i=%d", n, i))
			require.Less(t, ExerciseIndex(n, i), n)
		}
	}
}

func TestEveryExerciseRunsTwice(t *testing.T) {
	for n := 1; n <= 7; n++ {
		counts := map[int]int{}
		for i := 0; i < TotalSteps(n); i++ {
			counts[ExerciseIndex(n, i)]++
		}
		// Orphans included: two steps each.
		for e := 0; e < n; e++ {
			assert.Equal(t, 2, counts[e], "n=%d e=%d", n, e)
		}
	}
}

func TestExerciseForStepClamps(t *testing.T) {
	ex := exercises("a", "b", "c")

	e, err := ExerciseForStep(ex, 7)
	assert.ErrorIs(t, err, domain.ErrInvariant)
	assert.Equal(t, "c", e.ID)

	e, err = ExerciseForStep(ex, -1)
	assert.ErrorIs(t, err, domain.ErrInvariant)
	assert.Equal(t, "a", e.ID)

	e, err = ExerciseForStep(ex, 3)
	require.NoError(t, err)
	assert.Equal(t, "b", e.ID)

	_, err = ExerciseForStep(nil, 0)
	assert.ErrorIs(t, err, domain.ErrNoExercises)
}
