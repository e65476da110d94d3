package server

import (
	"errors"
	"fmt"

	"github.com/presbrey/ircd/irc"
)

// Bot is an optional pseudo-client that observes traffic. Hooks run on the
// event loop while a command is being handled, so a Bot may call back into
// the Server directly. A server with no Bot behaves the same minus the
// hooks.
type Bot interface {
	// Nickname is the identity the bot answers to
	Nickname() string
	// Join asks the bot to join a channel on its own behalf
	Join(channel string)

	OnChannelMessage(channel *Channel, from *Client, text string)
	OnDirectMessage(from *Client, text string)
	OnUserJoined(channel *Channel, who *Client)
}

// AttachBot installs b. Call before Run, or from within Do.
func (s *Server) AttachBot(b Bot) {
	s.bot = b
}

func (s *Server) isBot(c *Client) bool {
	return s.bot != nil && c != nil && c.Synthetic() && c.Nickname == s.bot.Nickname()
}

// AddSyntheticClient registers a registered client with no transport.
// Its host is the server name.
func (s *Server) AddSyntheticClient(nick, user string) (*Client, error) {
	if !validNickname(nick) {
		return nil, fmt.Errorf("invalid nickname %q", nick)
	}
	if s.clients.nickInUse(nick) {
		return nil, fmt.Errorf("nickname %q is already in use", nick)
	}

	c := newClient(s, "", nil)
	c.Nickname = nick
	c.Username = user
	c.Hostname = s.config.Server.Name
	c.PasswordAccepted = true
	c.Registered = true

	s.clients.add(c)
	s.clients.bind(c)
	c.logger().Info("synthetic client added")
	return c, nil
}

// JoinChannel joins c to the named channel, creating it if needed and
// skipping invite, key and limit checks.
func (s *Server) JoinChannel(c *Client, name string) error {
	if !validChannelName(name) {
		return fmt.Errorf("invalid channel name %q", name)
	}

	channel := s.channels.create(name)
	if channel.IsMember(c) {
		return nil
	}
	s.joinChannel(c, channel)
	return nil
}

// GetChannel returns the named channel or nil. Like every Host method it
// must run on the event loop.
func (s *Server) GetChannel(name string) *Channel {
	return s.channels.get(name)
}

// SendChannel relays a PRIVMSG from a member to the rest of a channel
func (s *Server) SendChannel(from *Client, name, text string) error {
	channel := s.channels.get(name)
	if channel == nil {
		return ErrNoSuchChannel
	}
	if !channel.IsMember(from) {
		return ErrNotOnChannel
	}
	s.broadcast(channel, irc.NewMessage(from.Prefix(), "PRIVMSG", channel.Name, text), from)
	return nil
}

// SendNotice delivers a NOTICE from c to a registered nickname
func (s *Server) SendNotice(from *Client, to, text string) error {
	target := s.clients.lookup(to)
	if target == nil {
		return ErrNoSuchNick
	}
	target.SendMessage(irc.NewMessage(from.Prefix(), "NOTICE", target.Nickname, text))
	return nil
}

var (
	// ErrNoSuchChannel is returned when a named channel does not exist
	ErrNoSuchChannel = errors.New("no such channel")
	// ErrNoSuchNick is returned when a nickname is not registered
	ErrNoSuchNick = errors.New("no such nick")
	// ErrNotOnChannel is returned when the sender is not a channel member
	ErrNotOnChannel = errors.New("not on channel")
)
