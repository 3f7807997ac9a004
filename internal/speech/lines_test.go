package speech

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hammamikhairi/ottofit/internal/domain"
)

var allCategories = []domain.CueCategory{
	domain.CueReady,
	domain.CueInstruction,
	domain.CueMotivation,
	domain.CueRestAnnouncement,
	domain.CueCompletion,
}

func TestEveryCategoryHasPhrases(t *testing.T) {
	for _, cat := range allCategories {
		assert.NotEmpty(t, Phrases(cat), cat.String())
	}
}

func TestPickPhraseNeverLeavesPlaceholders(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, cat := range allCategories {
		for range 50 {
			p := PickPhrase(rng, cat, "Jumping Jacks", "")
			assert.NotContains(t, p, "{")
			assert.NotContains(t, p, "}")
			assert.NotEmpty(t, p)
		}
	}
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name, phrase, exercise, user, want string
	}{
		{"both", "{exerciseName} now, {userName}.", "Squats", "Sam", "Squats now, Sam."},
		{"default user", "Go {userName}!", "Squats", "", "Go friend!"},
		{"missing exercise", "Time for {exerciseName}.", "", "Sam", "Time for this one."},
		{"unknown token", "Nice {reps} reps, {userName}.", "Squats", "Sam", "Nice reps, Sam."},
		{"no tokens", "Rest.", "Squats", "Sam", "Rest."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.phrase, tt.exercise, tt.user))
		})
	}
}

func TestLineReadyIsDeterministic(t *testing.T) {
	assert.Equal(t, LineReady("Plank"), LineReady("Plank"))
	assert.Contains(t, LineReady("Plank"), "Plank")
}

func TestStaticLinesAreUnique(t *testing.T) {
	lines := StaticLines([]string{"Squats", "Plank", "Squats"}, "Sam")
	seen := map[string]bool{}
	for _, l := range lines {
		assert.False(t, seen[l], "duplicate line %q", l)
		seen[l] = true
		assert.False(t, strings.Contains(l, "{"), l)
	}
	assert.True(t, seen[LineReady("Plank")])
	assert.False(t, seen[LinePaused()], "feedback-only lines are not synthesized")
	assert.False(t, seen[LineResumed()])
}

func TestCleanForSpeech(t *testing.T) {
	assert.Equal(t, "Keep going, you got this.", CleanForSpeech("  **\"Keep going,   you got this.\"** \n"))
	assert.Equal(t, "Breathe.", CleanForSpeech("[Coach] Breathe."))
	assert.Equal(t, "", CleanForSpeech("  ``  "))
}
