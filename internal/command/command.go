package command

import (
	"strings"
	"unicode/utf8"
)

// Command is the action requested by a payload.
type Command int

const (
	// Unknown is any payload outside the vocabulary.
	Unknown Command = iota
	// Wake brings the display out of sleep.
	Wake
	// Lock locks the session.
	Lock
)

// String returns the command name used in logs, history and metrics.
func (c Command) String() string {
	switch c {
	case Wake:
		return "wake"
	case Lock:
		return "lock"
	default:
		return "unknown"
	}
}

// Resolve decodes payload as UTF-8 text, trims surrounding whitespace,
// lower-cases it and matches the vocabulary. Invalid UTF-8 is Unknown.
func Resolve(payload []byte) Command {
	if !utf8.Valid(payload) {
		return Unknown
	}

	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on":
		return Wake
	case "off":
		return Lock
	default:
		return Unknown
	}
}
