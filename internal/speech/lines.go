package speech

// This file centralises every static spoken string. Edit it to change the
// coach's personality. Keep lines short; the TTS engine handles inflection.

import (
	"math/rand"
	"regexp"
	"strings"

	"github.com/hammamikhairi/ottofit/internal/domain"
)

// Placeholders understood by Substitute.
const (
	PlaceholderExercise = "{exerciseName}"
	PlaceholderUser     = "{userName}"
)

// DefaultUserName stands in when the user did not give a name.
const DefaultUserName = "friend"

// ── Deterministic lines ──────────────────────────────────────────

// LineReady is spoken the instant a session enters get-ready. It is never
// generated so it can be synthesized ahead of time.
func LineReady(exerciseName string) string {
	return Substitute("Get ready. First up: {exerciseName}.", exerciseName, "")
}

// LinePaused and LineResumed are shown as feedback only. Pausing stops
// audio, so they are never synthesized.
func LinePaused() string {
	return "Paused."
}

func LineResumed() string {
	return "Let's go."
}

// ── Fallback phrase tables ───────────────────────────────────────
// Used when no generated cue is available. Randomized to avoid repetition.

var phraseTable = map[domain.CueCategory][]string{
	domain.CueReady: {
		"Get ready, {userName}. {exerciseName} is up first.",
		"Shake it out. {exerciseName} starts in a moment.",
		"Find your spot, {userName}. {exerciseName} is next.",
	},
	domain.CueInstruction: {
		"{exerciseName}. Go!",
		"Time for {exerciseName}. Keep your form tight.",
		"{exerciseName} now, {userName}. Steady pace.",
		"Here we go: {exerciseName}. Breathe and move.",
	},
	domain.CueMotivation: {
		"Halfway there, {userName}. Keep pushing.",
		"Strong {exerciseName}. Don't stop now.",
		"You've got this, {userName}.",
		"Keep it up. {exerciseName} is almost done.",
		"Dig deep, {userName}. Finish this {exerciseName}.",
	},
	domain.CueRestAnnouncement: {
		"Rest. {exerciseName} is next.",
		"Nice work, {userName}. Breathe. Next up: {exerciseName}.",
		"Take a breather. {exerciseName} coming up.",
	},
	domain.CueCompletion: {
		"Workout complete. Great job, {userName}.",
		"That's it, {userName}. You finished strong.",
		"All done. Well earned, {userName}.",
	},
}

// Phrases returns the static table for a category. The slice is shared;
// do not modify it.
func Phrases(category domain.CueCategory) []string {
	return phraseTable[category]
}

// PickPhrase selects a random phrase for the category and substitutes its
// placeholders. It returns "" when the category has no table.
func PickPhrase(rng *rand.Rand, category domain.CueCategory, exerciseName, userName string) string {
	table := phraseTable[category]
	if len(table) == 0 {
		return ""
	}
	var i int
	if rng != nil {
		i = rng.Intn(len(table))
	} else {
		i = rand.Intn(len(table))
	}
	return Substitute(table[i], exerciseName, userName)
}

// leftoverPlaceholder matches any {word} a phrase may still carry.
var leftoverPlaceholder = regexp.MustCompile(`\{[A-Za-z_]+\}`)

// multiSpace collapses runs of spaces left by removed placeholders.
var multiSpace = regexp.MustCompile(`\s{2,}`)

// Substitute replaces the exercise and user placeholders. Unknown
// placeholders are removed so no literal {token} ever reaches the speaker.
func Substitute(phrase, exerciseName, userName string) string {
	if exerciseName == "" {
		exerciseName = "this one"
	}
	if userName == "" {
		userName = DefaultUserName
	}
	out := strings.ReplaceAll(phrase, PlaceholderExercise, exerciseName)
	out = strings.ReplaceAll(out, PlaceholderUser, userName)
	out = leftoverPlaceholder.ReplaceAllString(out, "")
	out = multiSpace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// StaticLines returns every fully substituted static line for the given
// names, so they can be synthesized into the phrase cache ahead of time.
func StaticLines(exerciseNames []string, userName string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, name := range exerciseNames {
		add(LineReady(name))
		for _, table := range phraseTable {
			for _, p := range table {
				add(Substitute(p, name, userName))
			}
		}
	}
	return out
}
