// Package parser converts raw transport lines into Messages.
// Intentionally dumb: no NLP, just the "sender: text" convention.
package parser

import (
	"strings"

	"github.com/nathoo/petcore/types"
)

// DefaultSender is used for lines that carry no sender prefix.
const DefaultSender = "owner"

// ParseLine converts one raw line into a Message. A line of the form
// "sender: text" is attributed to sender; anything else is attributed to
// defaultSender (DefaultSender when empty). Whitespace inside the text is
// collapsed. The bool is false for a line with no text.
func ParseLine(line, defaultSender string) (types.Message, bool) {
	if defaultSender == "" {
		defaultSender = DefaultSender
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return types.Message{}, false
	}

	sender := defaultSender
	text := line
	if i := strings.Index(line, ":"); i > 0 {
		candidate := strings.TrimSpace(line[:i])
		if isSenderName(candidate) {
			sender = candidate
			text = line[i+1:]
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return types.Message{}, false
	}
	return types.Message{Sender: sender, Text: text}, true
}

// isSenderName accepts a single token of letters, digits, '_', '-' or '.'.
func isSenderName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}
