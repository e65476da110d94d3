package irc

import (
	"fmt"
	"strings"
)

// Message represents an IRC message
type Message struct {
	Prefix  string
	Command string
	Params  []string
	// Trailing writes the last parameter after a ':' even when it would
	// parse without one
	Trailing bool
}

// NewMessage builds a message whose last parameter is written as trailing
func NewMessage(prefix, command string, params ...string) *Message {
	return &Message{
		Prefix:   prefix,
		Command:  command,
		Params:   params,
		Trailing: true,
	}
}

// Tokenize splits a line into its verb and parameters. Everything after the
// first ':' becomes a single trailing token, trimmed of outer whitespace.
func Tokenize(line string) []string {
	head, trailing, hasTrailing := strings.Cut(line, ":")

	tokens := strings.Fields(head)
	if hasTrailing {
		tokens = append(tokens, strings.TrimSpace(trailing))
	}
	return tokens
}

// ParseMessage parses one protocol line. It returns nil when the line holds
// no command.
func ParseMessage(line string) *Message {
	var prefix string
	if strings.HasPrefix(line, ":") {
		sp := strings.IndexByte(line, ' ')
		if sp < 0 {
			return nil
		}
		prefix, line = line[1:sp], line[sp+1:]
	}

	tokens := Tokenize(line)
	if len(tokens) == 0 || tokens[0] == "" {
		return nil
	}

	return &Message{
		Prefix:   prefix,
		Command:  tokens[0],
		Params:   tokens[1:],
		Trailing: len(tokens) > 1 && strings.Contains(line, ":"),
	}
}

// Param returns the i'th parameter or "" when absent.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// String returns the wire form of the message without the CRLF terminator
func (m *Message) String() string {
	var builder strings.Builder

	if m.Prefix != "" {
		builder.WriteString(":")
		builder.WriteString(m.Prefix)
		builder.WriteString(" ")
	}

	builder.WriteString(m.Command)

	for i, param := range m.Params {
		builder.WriteString(" ")

		last := i == len(m.Params)-1
		if last && (m.Trailing || param == "" || strings.Contains(param, " ") || strings.HasPrefix(param, ":")) {
			builder.WriteString(":")
		}
		builder.WriteString(param)
	}

	return builder.String()
}

// FormatHostmask formats a hostmask
func FormatHostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}
