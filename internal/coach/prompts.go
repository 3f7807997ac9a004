package coach

import (
	"fmt"
	"strings"
	"time"

	"github.com/hammamikhairi/ottofit/internal/domain"
)

// System prompt lives here so personality changes are a single-file edit.
// Keep it concise. Every token costs latency, and cues are generated while
// the user is mid-rep.

// PromptCoach is the system prompt for every coaching line.
const PromptCoach = `You are OttoFit, an upbeat but no-nonsense workout coach speaking into the user's earbuds.

Rules:
- Reply with ONE spoken line, at most 20 words.
- Never use markdown, emojis, lists, quotes, or stage directions. Your line is read aloud by a TTS engine.
- Use the exercise name exactly as given.
- Address the user by name at most once.
- Do not count down seconds or mention exact timings unless asked to.
- Vary your wording; the user hears you many times per session.`

// categoryBrief tells the model what kind of line each cue is.
var categoryBrief = map[domain.CueCategory]string{
	domain.CueReady:            "The session is about to start. Tell them to get ready and name the first exercise.",
	domain.CueInstruction:      "The work interval just started. Name the exercise and give one short form tip.",
	domain.CueMotivation:       "They are in the middle of the work interval. Push them to keep going.",
	domain.CueRestAnnouncement: "The work interval just ended. Tell them to rest and name the exercise coming up next.",
	domain.CueCompletion:       "The whole workout is finished. Congratulate them briefly.",
}

// BuildUserPrompt renders the coaching context as the user message.
func BuildUserPrompt(cc domain.CoachingContext) string {
	var b strings.Builder

	brief, ok := categoryBrief[cc.Category]
	if !ok {
		brief = "Say something encouraging."
	}
	b.WriteString(brief)
	b.WriteString("\n\n")

	name := cc.UserName
	if name == "" {
		name = "unknown (do not use a name)"
	}
	fmt.Fprintf(&b, "User: %s\n", name)
	if cc.ExerciseName != "" {
		fmt.Fprintf(&b, "Exercise: %s\n", cc.ExerciseName)
	}
	if cc.TotalSteps > 0 {
		fmt.Fprintf(&b, "Progress: step %d of %d\n", cc.CurrentStep+1, cc.TotalSteps)
	}
	if cc.TimeRemaining > 0 {
		fmt.Fprintf(&b, "Time left in this interval: %s\n", cc.TimeRemaining.Round(time.Second))
	}
	fmt.Fprintf(&b, "Phase: %s\n", cc.Phase)
	return b.String()
}
