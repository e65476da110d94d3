package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/presbrey/ircd/irc"
)

// handlePass handles the PASS command
func handlePass(params *HookParams) error {
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 {
		client.needMoreParams("PASS")
		return nil
	}
	if client.PasswordAccepted {
		return nil
	}
	// only reachable when the server has no password
	if client.Registered {
		client.SendNumeric(irc.ERR_ALREADYREGISTRED, "You may not reregister")
		return nil
	}

	if !params.Server.checkPassword(message.Params[0]) {
		client.SendNumeric(irc.ERR_PASSWDMISMATCH, "Password incorrect")
		params.Server.disconnect(client, "Password incorrect", "password")
		return nil
	}

	client.PasswordAccepted = true
	params.Server.tryRegister(client)
	return nil
}

// handleNick handles the NICK command
func handleNick(params *HookParams) error {
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 || message.Params[0] == "" {
		client.SendNumeric(irc.ERR_NONICKNAMEGIVEN, "No nickname given")
		return nil
	}

	// Nicknames are fixed once chosen
	if client.Nickname != "" {
		client.SendNumeric(irc.ERR_ALREADYREGISTRED, "You may not reregister")
		return nil
	}

	nick := message.Params[0]
	if !validNickname(nick) {
		client.SendNumeric(irc.ERR_ERRONEUSNICKNAME, nick, "Erroneous nickname")
		return nil
	}
	if params.Server.clients.nickInUse(nick) {
		client.SendNumeric(irc.ERR_NICKNAMEINUSE, nick, "Nickname is already in use")
		return nil
	}

	client.Nickname = nick
	params.Server.tryRegister(client)
	return nil
}

// handleUser handles the USER command
func handleUser(params *HookParams) error {
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 || message.Params[0] == "" {
		client.needMoreParams("USER")
		return nil
	}
	if client.Username != "" {
		client.SendNumeric(irc.ERR_ALREADYREGISTRED, "You may not reregister")
		return nil
	}

	client.Username = message.Params[0]
	client.Hostname = "*"
	if host := message.Param(1); host != "" {
		client.Hostname = host
	}
	client.Realname = message.Param(3)

	params.Server.tryRegister(client)
	return nil
}

// tryRegister completes registration the first time every condition holds
func (s *Server) tryRegister(c *Client) {
	if !c.canRegister() {
		return
	}

	c.Registered = true
	s.clients.bind(c)

	name := s.config.Server.Name
	c.SendNumeric(irc.RPL_WELCOME, fmt.Sprintf("Welcome to %s %s", name, c.Nickname))
	c.SendNumeric(irc.RPL_YOURHOST, fmt.Sprintf("Your host is %s, running %s", name, s.config.Server.Network))
	c.SendNumeric(irc.RPL_CREATED, "This server was created "+s.startTime.Format(time.RFC1123))
	c.SendNumeric(irc.RPL_MYINFO, name, s.config.Server.Network, "i", "iklot")

	c.logger().Info("client registered")
}

// handleQuit handles the QUIT command
func handleQuit(params *HookParams) error {
	reason := "Client Quit"
	if text := params.Message.Param(0); text != "" {
		reason = "Quit: " + text
	}

	params.Server.disconnect(params.Client, reason, "quit")
	return nil
}

// handlePing handles the PING command
func handlePing(params *HookParams) error {
	client := params.Client

	if len(params.Message.Params) < 1 {
		client.needMoreParams("PING")
		return nil
	}

	name := params.Server.config.Server.Name
	client.SendMessage(irc.NewMessage(name, "PONG", name, params.Message.Params[0]))
	return nil
}

// handlePrivmsg handles the PRIVMSG command
func handlePrivmsg(params *HookParams) error {
	return relayMessage(params, "PRIVMSG")
}

// handleNotice handles the NOTICE command. NOTICE never produces error
// replies and is not shown to the bot, which keeps bots from looping.
func handleNotice(params *HookParams) error {
	return relayMessage(params, "NOTICE")
}

func relayMessage(params *HookParams, verb string) error {
	s := params.Server
	client := params.Client
	message := params.Message
	quiet := verb == "NOTICE"

	if len(message.Params) < 2 {
		if !quiet {
			client.needMoreParams(verb)
		}
		return nil
	}

	target, text := message.Params[0], message.Params[1]

	if strings.HasPrefix(target, "#") {
		channel := s.channels.get(target)
		if channel == nil {
			if !quiet {
				client.SendNumeric(irc.ERR_NOSUCHCHANNEL, target, "No such channel")
			}
			return nil
		}
		if !channel.IsMember(client) {
			if !quiet {
				client.SendNumeric(irc.ERR_CANNOTSENDTOCHAN, target, "Cannot send to channel (not on channel)")
			}
			return nil
		}

		s.broadcast(channel, irc.NewMessage(client.Prefix(), verb, channel.Name, text), client)
		if !quiet && s.bot != nil {
			s.bot.OnChannelMessage(channel, client, text)
		}
		return nil
	}

	recipient := s.clients.lookup(target)
	if recipient == nil {
		if !quiet {
			client.SendNumeric(irc.ERR_NOSUCHNICK, target, "No such nick/channel")
		}
		return nil
	}

	recipient.SendMessage(irc.NewMessage(client.Prefix(), verb, recipient.Nickname, text))
	if !quiet && s.isBot(recipient) {
		s.bot.OnDirectMessage(client, text)
	}
	return nil
}

// handleJoin handles the JOIN command
func handleJoin(params *HookParams) error {
	s := params.Server
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 {
		client.needMoreParams("JOIN")
		return nil
	}

	channels := strings.Split(message.Params[0], ",")
	var keys []string
	if len(message.Params) > 1 {
		keys = strings.Split(message.Params[1], ",")
	}

	for i, channelName := range channels {
		var key string
		if i < len(keys) {
			key = keys[i]
		}

		channel := s.channels.get(channelName)
		if channel != nil && channel.IsMember(client) {
			continue
		}

		if channel == nil {
			if !s.config.Channels.AutoCreate || !validChannelName(channelName) {
				client.SendNumeric(irc.ERR_NOSUCHCHANNEL, channelName, "No such channel")
				continue
			}
			channel = s.channels.create(channelName)
			client.logger().WithField("channel", channelName).Info("channel created")
		}

		if channel.Modes.InviteOnly && !channel.IsInvited(client) {
			client.SendNumeric(irc.ERR_INVITEONLYCHAN, channelName, "Cannot join channel (+i)")
			continue
		}
		if channel.Modes.Key != "" && channel.Modes.Key != key {
			client.SendNumeric(irc.ERR_BADCHANNELKEY, channelName, "Cannot join channel (+k)")
			continue
		}
		if channel.full() {
			client.SendNumeric(irc.ERR_CHANNELISFULL, channelName, "Cannot join channel (+l)")
			continue
		}

		s.joinChannel(client, channel)
	}

	return nil
}

// joinChannel adds c to channel with no restriction checks and announces it
func (s *Server) joinChannel(c *Client, channel *Channel) {
	channel.add(c)

	s.broadcast(channel, &irc.Message{Prefix: c.Prefix(), Command: "JOIN", Params: []string{channel.Name}}, nil)
	if channel.Topic != "" {
		c.SendNumeric(irc.RPL_TOPIC, channel.Name, channel.Topic)
	}
	s.sendNames(c, channel)

	if s.bot != nil && !s.isBot(c) {
		s.bot.OnUserJoined(channel, c)
	}
}

func (s *Server) sendNames(c *Client, channel *Channel) {
	c.SendNumeric(irc.RPL_NAMREPLY, "=", channel.Name, channel.NamesList())
	c.SendNumeric(irc.RPL_ENDOFNAMES, channel.Name, "End of NAMES list")
}

// broadcast sends msg to every member except skip, in nickname order
func (s *Server) broadcast(channel *Channel, msg *irc.Message, skip *Client) {
	line := msg.String()
	for _, id := range channel.memberIDs() {
		if skip != nil && id == skip.ID {
			continue
		}
		if member := s.clients.get(id); member != nil {
			member.SendRaw(line)
		}
	}
}

// handlePart handles the PART command
func handlePart(params *HookParams) error {
	s := params.Server
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 {
		client.needMoreParams("PART")
		return nil
	}

	reason := message.Param(1)

	for _, channelName := range strings.Split(message.Params[0], ",") {
		channel := s.channels.get(channelName)
		if channel == nil {
			client.SendNumeric(irc.ERR_NOSUCHCHANNEL, channelName, "No such channel")
			continue
		}
		if !channel.IsMember(client) {
			client.SendNumeric(irc.ERR_NOTONCHANNEL, channelName, "You're not on that channel")
			continue
		}

		part := &irc.Message{Prefix: client.Prefix(), Command: "PART", Params: []string{channel.Name}}
		if reason != "" {
			part = irc.NewMessage(client.Prefix(), "PART", channel.Name, reason)
		}
		s.broadcast(channel, part, nil)
		channel.remove(client)
	}

	return nil
}

// handleKick handles the KICK command
func handleKick(params *HookParams) error {
	s := params.Server
	client := params.Client
	message := params.Message

	if len(message.Params) < 2 {
		client.needMoreParams("KICK")
		return nil
	}

	channelName, nick := message.Params[0], message.Params[1]
	channel := s.channels.get(channelName)
	if channel == nil {
		client.SendNumeric(irc.ERR_NOSUCHCHANNEL, channelName, "No such channel")
		return nil
	}
	if !channel.IsMember(client) {
		client.SendNumeric(irc.ERR_NOTONCHANNEL, channelName, "You're not on that channel")
		return nil
	}
	if !channel.IsOperator(client) {
		client.SendNumeric(irc.ERR_CHANOPRIVSNEEDED, channelName, "You're not channel operator")
		return nil
	}

	id, ok := channel.members[nick]
	target := s.clients.get(id)
	if !ok || target == nil {
		client.SendNumeric(irc.ERR_USERNOTINCHANNEL, nick, channelName, "They aren't on that channel")
		return nil
	}

	reason := client.Nickname
	if text := message.Param(2); text != "" {
		reason = text
	}

	s.broadcast(channel, irc.NewMessage(client.Prefix(), "KICK", channel.Name, target.Nickname, reason), nil)
	channel.remove(target)
	return nil
}

// handleInvite handles the INVITE command
func handleInvite(params *HookParams) error {
	s := params.Server
	client := params.Client
	message := params.Message

	if len(message.Params) < 2 {
		client.needMoreParams("INVITE")
		return nil
	}

	nick, channelName := message.Params[0], message.Params[1]
	channel := s.channels.get(channelName)
	if channel == nil {
		client.SendNumeric(irc.ERR_NOSUCHCHANNEL, channelName, "No such channel")
		return nil
	}
	if !channel.IsMember(client) {
		client.SendNumeric(irc.ERR_NOTONCHANNEL, channelName, "You're not on that channel")
		return nil
	}
	if channel.Modes.InviteOnly && !channel.IsOperator(client) {
		client.SendNumeric(irc.ERR_CHANOPRIVSNEEDED, channelName, "You're not channel operator")
		return nil
	}

	target := s.clients.lookup(nick)
	if target == nil {
		client.SendNumeric(irc.ERR_NOSUCHNICK, nick, "No such nick/channel")
		return nil
	}
	if channel.IsMember(target) {
		client.SendNumeric(irc.ERR_USERONCHANNEL, nick, channelName, "is already on channel")
		return nil
	}

	client.SendNumeric(irc.RPL_INVITING, target.Nickname, channel.Name)

	// The bot takes the invitation as a request to join
	if s.isBot(target) {
		s.bot.Join(channel.Name)
		return nil
	}

	target.SendMessage(irc.NewMessage(client.Prefix(), "INVITE", target.Nickname, channel.Name))
	if channel.Modes.InviteOnly {
		channel.invite(target)
	}
	return nil
}

// handleTopic handles the TOPIC command
func handleTopic(params *HookParams) error {
	s := params.Server
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 {
		client.needMoreParams("TOPIC")
		return nil
	}

	channelName := message.Params[0]
	channel := s.channels.get(channelName)
	if channel == nil {
		client.SendNumeric(irc.ERR_NOSUCHCHANNEL, channelName, "No such channel")
		return nil
	}
	if !channel.IsMember(client) {
		client.SendNumeric(irc.ERR_NOTONCHANNEL, channelName, "You're not on that channel")
		return nil
	}

	if len(message.Params) < 2 {
		if channel.Topic == "" {
			client.SendNumeric(irc.RPL_NOTOPIC, channel.Name, "No topic is set")
		} else {
			client.SendNumeric(irc.RPL_TOPIC, channel.Name, channel.Topic)
		}
		return nil
	}

	if channel.Modes.TopicRestricted && !channel.IsOperator(client) {
		client.SendNumeric(irc.ERR_CHANOPRIVSNEEDED, channelName, "You're not channel operator")
		return nil
	}

	channel.SetTopic(message.Params[1], client.Nickname)
	s.broadcast(channel, irc.NewMessage(client.Prefix(), "TOPIC", channel.Name, channel.Topic), nil)
	return nil
}

// validNickname rejects names that would break prefixes or look like channels
func validNickname(nick string) bool {
	return nick != "" && nick[0] != '#' && !strings.ContainsAny(nick, " ,*?!@:\r\n\a")
}
