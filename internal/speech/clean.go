package speech

import (
	"regexp"
	"strings"
)

// Formatting artifacts a language model likes to add that shouldn't be spoken.
var (
	bracketPrefix = regexp.MustCompile(`^\[[A-Za-z]+\]\s*`)
	ansiCodes     = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	markdownMarks = regexp.MustCompile("[*_`#]+")
)

// CleanForSpeech strips markup, wrapping quotes and stray whitespace from a
// generated line.
func CleanForSpeech(msg string) string {
	cleaned := ansiCodes.ReplaceAllString(msg, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = bracketPrefix.ReplaceAllString(cleaned, "")
	cleaned = markdownMarks.ReplaceAllString(cleaned, "")
	cleaned = strings.Trim(cleaned, "\"'“” \n\t")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return cleaned
}
