package irc_test

import (
	"testing"

	"github.com/presbrey/ircd/irc"
	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"PRIVMSG #chan :hello  world", []string{"PRIVMSG", "#chan", "hello  world"}},
		{"JOIN #a,#b", []string{"JOIN", "#a,#b"}},
		{"QUIT", []string{"QUIT"}},
		{"  NICK   alice  ", []string{"NICK", "alice"}},
		{"TOPIC #c :", []string{"TOPIC", "#c", ""}},
		{"TOPIC #c :  spaced out  ", []string{"TOPIC", "#c", "spaced out"}},
		{"PRIVMSG #c :a:b :c", []string{"PRIVMSG", "#c", "a:b :c"}},
		{"MODE #c +kl key 5", []string{"MODE", "#c", "+kl", "key", "5"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, irc.Tokenize(tt.line), "Tokenize(%q)", tt.line)
	}

	assert.Empty(t, irc.Tokenize(""), "Empty line should yield no tokens")
}

func TestMessageParsing(t *testing.T) {
	msg := irc.ParseMessage("PING :server1")
	assert.NotNil(t, msg, "Should parse the message")
	assert.Equal(t, "PING", msg.Command, "Should parse the command")
	assert.Equal(t, []string{"server1"}, msg.Params, "Should parse the parameters")

	msg = irc.ParseMessage(":nick!user@host PRIVMSG #channel :Hello, world!")
	assert.NotNil(t, msg, "Should parse the message")
	assert.Equal(t, "nick!user@host", msg.Prefix, "Should parse the prefix")
	assert.Equal(t, "PRIVMSG", msg.Command, "Should parse the command")
	assert.Equal(t, []string{"#channel", "Hello, world!"}, msg.Params, "Should parse the parameters")

	msg = irc.ParseMessage("MODE #channel +o-l user1")
	assert.NotNil(t, msg, "Should parse the message")
	assert.Equal(t, 3, len(msg.Params), "Should parse the parameters")
	assert.Equal(t, "user1", msg.Param(2), "Should return a positional parameter")
	assert.Equal(t, "", msg.Param(3), "Missing parameters should be empty")

	// verbs are case-sensitive
	msg = irc.ParseMessage("join #a")
	assert.Equal(t, "join", msg.Command)

	assert.Nil(t, irc.ParseMessage(""), "Empty line has no command")
	assert.Nil(t, irc.ParseMessage(":prefixonly"), "Bare prefix has no command")
	assert.Nil(t, irc.ParseMessage("   "), "Blank line has no command")
}

func TestMessageString(t *testing.T) {
	msg := &irc.Message{Prefix: "alice!a@host", Command: "PRIVMSG", Params: []string{"#chan", "hello world"}}
	assert.Equal(t, ":alice!a@host PRIVMSG #chan :hello world", msg.String())

	msg = &irc.Message{Command: "MODE", Params: []string{"#chan", "+o", "bob"}}
	assert.Equal(t, "MODE #chan +o bob", msg.String())

	msg = &irc.Message{Command: "TOPIC", Params: []string{"#chan", ""}}
	assert.Equal(t, "TOPIC #chan :", msg.String(), "Empty trailing keeps its colon")

	msg = &irc.Message{Command: "PRIVMSG", Params: []string{"bob", ":)"}}
	assert.Equal(t, "PRIVMSG bob ::)", msg.String())

	msg = irc.NewMessage("test.irc", "PONG", "test.irc", "token")
	assert.Equal(t, ":test.irc PONG test.irc :token", msg.String(), "NewMessage always writes a trailing parameter")

	msg = irc.NewMessage("alice!a@host", "QUIT")
	assert.Equal(t, ":alice!a@host QUIT", msg.String())

	// parsed messages keep the colon they arrived with
	for _, line := range []string{"PING :server1", "PING server1", "PRIVMSG #c :hi", "MODE #c +k key"} {
		assert.Equal(t, line, irc.ParseMessage(line).String())
	}
}

func TestHostmask(t *testing.T) {
	assert.Equal(t, "alice!al@example.org", irc.FormatHostmask("alice", "al", "example.org"))
}
