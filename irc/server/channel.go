package server

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Channel represents an IRC channel. Membership is keyed by nickname and
// refers to clients by ID; the registries own the clients.
type Channel struct {
	Name       string
	Topic      string
	TopicSetBy string
	TopicSetAt time.Time
	CreatedAt  time.Time
	Modes      ChannelModes

	members   map[string]string // nickname -> client ID
	operators map[string]bool   // client ID
	invited   map[string]bool   // client ID
}

// ChannelModes represents the modes of a channel
type ChannelModes struct {
	InviteOnly      bool   // i
	TopicRestricted bool   // t
	Key             string // k, empty means none
	UserLimit       int    // l, zero means unlimited
}

// DefaultChannelModes returns the default channel modes
func DefaultChannelModes() ChannelModes {
	return ChannelModes{
		TopicRestricted: true,
	}
}

// NewChannel creates a new channel
func NewChannel(name string) *Channel {
	return &Channel{
		Name:      name,
		CreatedAt: time.Now(),
		Modes:     DefaultChannelModes(),
		members:   make(map[string]string),
		operators: make(map[string]bool),
		invited:   make(map[string]bool),
	}
}

// IsMember checks if a client is a member of the channel
func (ch *Channel) IsMember(c *Client) bool {
	id, ok := ch.members[c.Nickname]
	return ok && id == c.ID
}

// HasNick reports whether a member holds the nickname
func (ch *Channel) HasNick(nick string) bool {
	_, ok := ch.members[nick]
	return ok
}

// IsOperator checks if a client holds operator status
func (ch *Channel) IsOperator(c *Client) bool {
	return ch.operators[c.ID]
}

// IsInvited checks if a client may bypass invite-only
func (ch *Channel) IsInvited(c *Client) bool {
	return ch.Modes.InviteOnly && ch.invited[c.ID]
}

// MemberCount returns the number of members in the channel
func (ch *Channel) MemberCount() int {
	return len(ch.members)
}

// Nicknames returns member nicknames in alphabetical order, the order every
// broadcast follows.
func (ch *Channel) Nicknames() []string {
	nicks := make([]string, 0, len(ch.members))
	for nick := range ch.members {
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return nicks
}

// memberIDs returns member client IDs in nickname order
func (ch *Channel) memberIDs() []string {
	nicks := ch.Nicknames()
	ids := make([]string, len(nicks))
	for i, nick := range nicks {
		ids[i] = ch.members[nick]
	}
	return ids
}

// add inserts a client. The first member of an empty channel is made an
// operator. It reports whether the client became an operator.
func (ch *Channel) add(c *Client) bool {
	first := len(ch.members) == 0
	ch.members[c.Nickname] = c.ID
	delete(ch.invited, c.ID)
	if first {
		ch.operators[c.ID] = true
	}
	return first
}

// remove drops a client from membership and the operator set
func (ch *Channel) remove(c *Client) {
	if id, ok := ch.members[c.Nickname]; ok && id == c.ID {
		delete(ch.members, c.Nickname)
	}
	delete(ch.operators, c.ID)
}

// forget drops every trace of a client, including a pending invite
func (ch *Channel) forget(c *Client) {
	ch.remove(c)
	delete(ch.invited, c.ID)
}

func (ch *Channel) invite(c *Client) {
	ch.invited[c.ID] = true
}

// SetTopic sets the channel topic
func (ch *Channel) SetTopic(topic, setBy string) {
	ch.Topic = topic
	ch.TopicSetBy = setBy
	ch.TopicSetAt = time.Now()
}

// NamesList renders the member list for a names reply, operators
// prefixed with '@'.
func (ch *Channel) NamesList() string {
	nicks := ch.Nicknames()
	for i, nick := range nicks {
		if ch.operators[ch.members[nick]] {
			nicks[i] = "@" + nick
		}
	}
	return strings.Join(nicks, " ")
}

// GetModeString returns the active flags among i, t, k and l followed by
// the key and limit values.
func (ch *Channel) GetModeString() string {
	modeStr := "+"
	var params []string

	if ch.Modes.InviteOnly {
		modeStr += "i"
	}
	if ch.Modes.TopicRestricted {
		modeStr += "t"
	}
	if ch.Modes.Key != "" {
		modeStr += "k"
		params = append(params, ch.Modes.Key)
	}
	if ch.Modes.UserLimit > 0 {
		modeStr += "l"
		params = append(params, strconv.Itoa(ch.Modes.UserLimit))
	}

	if len(params) == 0 {
		return modeStr
	}
	return modeStr + " " + strings.Join(params, " ")
}

// full reports whether a positive limit has been reached
func (ch *Channel) full() bool {
	return ch.Modes.UserLimit > 0 && len(ch.members) >= ch.Modes.UserLimit
}

// validChannelName reports whether name may be used to create a channel
func validChannelName(name string) bool {
	return len(name) > 1 && name[0] == '#' && !strings.ContainsAny(name, " ,\a")
}
