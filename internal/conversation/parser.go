// Package conversation turns typed or pressed commands into session
// actions and narrates session events as plain text.
package conversation

import (
	"regexp"
	"strings"

	"github.com/hammamikhairi/ottofit/internal/logger"
)

// Command is a user request during a session.
type Command int

const (
	CommandUnknown Command = iota
	CommandPause
	CommandResume
	CommandToggle // pause when running, resume when paused
	CommandSkip
	CommandEncourage
	CommandRepeat
	CommandStatus
	CommandHelp
	CommandQuit
)

// String returns a human-readable command.
func (c Command) String() string {
	switch c {
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandToggle:
		return "toggle"
	case CommandSkip:
		return "skip"
	case CommandEncourage:
		return "encourage"
	case CommandRepeat:
		return "repeat"
	case CommandStatus:
		return "status"
	case CommandHelp:
		return "help"
	case CommandQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// KeywordParser matches user input to commands using keywords and simple
// patterns.
type KeywordParser struct {
	log      *logger.Logger
	patterns []patternRule
}

type patternRule struct {
	regex   *regexp.Regexp
	command Command
}

// NewKeywordParser creates a keyword-based command parser.
func NewKeywordParser(log *logger.Logger) *KeywordParser {
	p := &KeywordParser{log: log}
	p.patterns = []patternRule{
		{regexp.MustCompile(`(?i)^(pause|brb|wait|hold on|p)$`), CommandPause},
		{regexp.MustCompile(`(?i)^(resume|back|continue|unpause|go)$`), CommandResume},
		{regexp.MustCompile(`(?i)^(skip|next|s|n)$`), CommandSkip},
		{regexp.MustCompile(`(?i)^(more|motivate|push me|encourage|m)$`), CommandEncourage},
		{regexp.MustCompile(`(?i)^(repeat|again|what\??|say that again|come again|r)$`), CommandRepeat},
		{regexp.MustCompile(`(?i)^(status|where|progress|info)$`), CommandStatus},
		{regexp.MustCompile(`(?i)^(help|h|\?)$`), CommandHelp},
		{regexp.MustCompile(`(?i)^(quit|exit|stop|q|abandon)$`), CommandQuit},
	}
	return p
}

// Parse converts user input into a command.
func (p *KeywordParser) Parse(input string) Command {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return CommandToggle
	}

	for _, rule := range p.patterns {
		if rule.regex.MatchString(trimmed) {
			p.log.Debug("matched command: %s", rule.command)
			return rule.command
		}
	}

	p.log.Debug("no match for %q", trimmed)
	return CommandUnknown
}
