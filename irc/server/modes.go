package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/presbrey/ircd/irc"
)

// modeCursor carries the scan state of a mode string: the current sign and
// the position in the parameter list.
type modeCursor struct {
	sign byte
	args []string
	next int
}

// take consumes the next parameter
func (m *modeCursor) take() (string, bool) {
	if m.next >= len(m.args) {
		return "", false
	}
	arg := m.args[m.next]
	m.next++
	return arg, true
}

// numericReply is an error reply produced while applying a flag
type numericReply struct {
	code   int
	params []string
}

// modeChange is one applied flag, broadcast as "<sign><flag> [param]"
type modeChange struct {
	sign  byte
	flag  byte
	param string
}

// message renders the change as a MODE line on a channel
func (mc modeChange) message(prefix, channel string) *irc.Message {
	params := []string{channel, string([]byte{mc.sign, mc.flag})}
	if mc.param != "" {
		params = append(params, mc.param)
	}
	return &irc.Message{Prefix: prefix, Command: "MODE", Params: params}
}

// applyChannelMode applies one flag at the cursor's sign. At most one of
// the results is set; both nil means the flag changed nothing.
func applyChannelMode(ch *Channel, flag byte, cur *modeCursor) (*modeChange, *numericReply) {
	plus := cur.sign == '+'
	changed := &modeChange{sign: cur.sign, flag: flag}
	missing := &numericReply{irc.ERR_NEEDMOREPARAMS, []string{"MODE", fmt.Sprintf("Not enough parameters for %c%c", cur.sign, flag)}}

	switch flag {
	case 'i':
		if ch.Modes.InviteOnly == plus {
			return nil, nil
		}
		ch.Modes.InviteOnly = plus
		if !plus {
			// invitations only mean something while +i is set
			clear(ch.invited)
		}
		return changed, nil

	case 't':
		if ch.Modes.TopicRestricted == plus {
			return nil, nil
		}
		ch.Modes.TopicRestricted = plus
		return changed, nil

	case 'k':
		key, ok := cur.take()
		if !ok || key == "" {
			return nil, missing
		}
		if plus {
			if ch.Modes.Key != "" {
				return nil, &numericReply{irc.ERR_KEYSET, []string{ch.Name, "Channel key already set"}}
			}
			ch.Modes.Key = key
		} else {
			if ch.Modes.Key == "" {
				return nil, nil
			}
			if ch.Modes.Key != key {
				return nil, &numericReply{irc.ERR_BADCHANNELKEY, []string{ch.Name, "Cannot remove channel key (+k)"}}
			}
			ch.Modes.Key = ""
		}
		changed.param = key
		return changed, nil

	case 'o':
		nick, ok := cur.take()
		if !ok || nick == "" {
			return nil, missing
		}
		id, member := ch.members[nick]
		if !member {
			return nil, &numericReply{irc.ERR_USERNOTINCHANNEL, []string{nick, ch.Name, "They aren't on that channel"}}
		}
		if ch.operators[id] == plus {
			return nil, nil
		}
		if plus {
			ch.operators[id] = true
		} else {
			delete(ch.operators, id)
		}
		changed.param = nick
		return changed, nil

	case 'l':
		// clearing a limit takes no parameter
		if !plus {
			if ch.Modes.UserLimit == 0 {
				return nil, nil
			}
			ch.Modes.UserLimit = 0
			return changed, nil
		}
		arg, ok := cur.take()
		if !ok {
			return nil, missing
		}
		limit, err := strconv.Atoi(arg)
		if err != nil || limit <= 0 {
			return nil, &numericReply{irc.ERR_NEEDMOREPARAMS, []string{"MODE", "Invalid user limit " + arg}}
		}
		if ch.Modes.UserLimit == limit {
			return nil, nil
		}
		ch.Modes.UserLimit = limit
		changed.param = arg
		return changed, nil
	}

	return nil, &numericReply{irc.ERR_UNKNOWNMODE, []string{string(flag), "is unknown mode char to me"}}
}

// handleMode handles the MODE command for channels and for the caller's
// own user modes.
func handleMode(params *HookParams) error {
	client := params.Client
	message := params.Message

	if len(message.Params) < 1 {
		client.needMoreParams("MODE")
		return nil
	}

	if strings.HasPrefix(message.Params[0], "#") {
		return handleChannelMode(params)
	}
	return handleUserMode(params)
}

func handleChannelMode(params *HookParams) error {
	s := params.Server
	client := params.Client
	message := params.Message

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
		client.SendNumeric(irc.RPL_CHANNELMODEIS, channel.Name, channel.GetModeString())
		return nil
	}

	if !channel.IsOperator(client) {
		client.SendNumeric(irc.ERR_CHANOPRIVSNEEDED, channelName, "You're not channel operator")
		return nil
	}

	cur := &modeCursor{sign: '+', args: message.Params[2:]}
	flags := message.Params[1]
	for i := 0; i < len(flags); i++ {
		flag := flags[i]
		if flag == '+' || flag == '-' {
			cur.sign = flag
			continue
		}

		change, reply := applyChannelMode(channel, flag, cur)
		if reply != nil {
			client.SendNumeric(reply.code, reply.params...)
			continue
		}
		if change != nil {
			s.broadcast(channel, change.message(client.Prefix(), channel.Name), nil)
		}
	}

	return nil
}

func handleUserMode(params *HookParams) error {
	client := params.Client
	message := params.Message

	if message.Params[0] != client.Nickname {
		client.SendNumeric(irc.ERR_USERSDONTMATCH, "Cant change mode for other users")
		return nil
	}

	if len(message.Params) < 2 {
		modes := "+"
		if client.Invisible {
			modes += "i"
		}
		client.SendNumeric(irc.RPL_UMODEIS, modes)
		return nil
	}

	flags := message.Params[1]
	if flags == "" || (flags[0] != '+' && flags[0] != '-') {
		client.SendNumeric(irc.ERR_UMODEUNKNOWNFLAG, "Unknown MODE flag")
		return nil
	}

	sign := flags[0]
	for i := 0; i < len(flags); i++ {
		switch flag := flags[i]; flag {
		case '+', '-':
			sign = flag
		case 'i':
			if client.Invisible == (sign == '+') {
				continue
			}
			client.Invisible = sign == '+'
			client.SendMessage(&irc.Message{
				Prefix:  client.Prefix(),
				Command: "MODE",
				Params:  []string{client.Nickname, string([]byte{sign, 'i'})},
			})
		default:
			client.SendNumeric(irc.ERR_UMODEUNKNOWNFLAG, "Unknown MODE flag")
		}
	}

	return nil
}
