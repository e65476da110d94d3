package server

import (
	"github.com/presbrey/ircd/irc"
)

// Hook handles one command for one client
type Hook func(params *HookParams) error

// HookParams contains context information for hooks
type HookParams struct {
	Server  *Server
	Client  *Client
	Message *irc.Message
}

type command struct {
	hook Hook
	// allowed before registration completes
	preRegistration bool
}

// commands is built once at package initialization and never modified
var commands = map[string]command{
	"PASS":    {hook: handlePass, preRegistration: true},
	"NICK":    {hook: handleNick, preRegistration: true},
	"USER":    {hook: handleUser, preRegistration: true},
	"QUIT":    {hook: handleQuit, preRegistration: true},
	"PING":    {hook: handlePing, preRegistration: true},
	"PRIVMSG": {hook: handlePrivmsg},
	"NOTICE":  {hook: handleNotice},
	"JOIN":    {hook: handleJoin},
	"PART":    {hook: handlePart},
	"KICK":    {hook: handleKick},
	"INVITE":  {hook: handleInvite},
	"TOPIC":   {hook: handleTopic},
	"MODE":    {hook: handleMode},
}

// ignoredCommands are dropped silently in any state. Mainstream clients
// send them unprompted.
var ignoredCommands = map[string]bool{
	"CAP":  true,
	"WHO":  true,
	"PONG": true,
}

// dispatch routes one parsed message to its hook
func (s *Server) dispatch(c *Client, msg *irc.Message) {
	if ignoredCommands[msg.Command] {
		s.metrics.Command(msg.Command)
		return
	}

	cmd, ok := commands[msg.Command]
	if ok {
		s.metrics.Command(msg.Command)
	} else {
		s.metrics.Command("unknown")
	}

	// unregistered clients only learn that they must register
	if !c.Registered && !cmd.preRegistration {
		c.SendNumeric(irc.ERR_NOTREGISTERED, "You have not registered")
		return
	}
	if !ok {
		c.SendNumeric(irc.ERR_UNKNOWNCOMMAND, msg.Command, "Unknown command")
		return
	}

	params := &HookParams{
		Server:  s,
		Client:  c,
		Message: msg,
	}
	if err := cmd.hook(params); err != nil {
		c.logger().WithField("command", msg.Command).Warnf("hook failed: %v", err)
	}
}
