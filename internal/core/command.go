package core

import (
	"slices"
	"strings"
	"unicode"
)

// QuitCommand ends the session when sent as a whole line.
const QuitCommand = "/quit"

// WhisperPrefixes are the command tokens that start a private message.
// The first one is shown in usage notices.
var WhisperPrefixes = []string{"/w", "/whisper"}

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandIgnore is an empty line.
	CommandIgnore CommandKind = iota
	// CommandBroadcast delivers a line to every other session.
	CommandBroadcast
	// CommandWhisper delivers a line to one named session.
	CommandWhisper
	// CommandWhisperUsage is a whisper with too few tokens.
	CommandWhisperUsage
	// CommandQuit terminates the session.
	CommandQuit
)

func (k CommandKind) String() string {
	switch k {
	case CommandBroadcast:
		return "broadcast"
	case CommandWhisper:
		return "whisper"
	case CommandWhisperUsage:
		return "whisper_usage"
	case CommandQuit:
		return "quit"
	default:
		return "ignore"
	}
}

// Command is a classified input line.
type Command struct {
	Kind   CommandKind
	Target string
	Text   string
}

// ParseLine classifies one input line of an active session.
func ParseLine(line string) Command {
	text := strings.TrimSpace(line)
	if text == "" {
		return Command{Kind: CommandIgnore}
	}
	if text == QuitCommand {
		return Command{Kind: CommandQuit}
	}

	tokens := splitFields(text, 3)
	if slices.Contains(WhisperPrefixes, tokens[0]) {
		if len(tokens) < 3 {
			return Command{Kind: CommandWhisperUsage}
		}
		return Command{Kind: CommandWhisper, Target: tokens[1], Text: tokens[2]}
	}

	return Command{Kind: CommandBroadcast, Text: text}
}

// splitFields splits s around runs of whitespace into at most n fields.
// The last field keeps its internal whitespace.
func splitFields(s string, n int) []string {
	fields := make([]string, 0, n)
	for len(fields) < n-1 {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return fields
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			return append(fields, s)
		}
		fields = append(fields, s[:end])
		s = s[end:]
	}
	if s = strings.TrimSpace(s); s != "" {
		fields = append(fields, s)
	}
	return fields
}
