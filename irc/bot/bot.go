// Package bot implements BotServ, a pseudo-client that answers !-prefixed
// commands in the channels it sits in.
package bot

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/presbrey/ircd/irc/server"
	log "github.com/sirupsen/logrus"
)

// Host is the part of the server a bot acts through. *server.Server
// satisfies it.
type Host interface {
	ServerName() string
	AddSyntheticClient(nick, user string) (*server.Client, error)
	JoinChannel(c *server.Client, name string) error
	SendChannel(from *server.Client, channel, text string) error
	SendNotice(from *server.Client, to, text string) error
}

// Username is the user part of the bot's prefix
const Username = "bot"

var helpLines = []string{
	"Commands:",
	"!help - to see commands",
	"!echo <msg> - to chat",
	"!roll - to roll a dice",
	"!choose a|b|c - I will choose a choice",
	"!uptime - to see my logtime",
}

// BotServ answers channel commands and greets joiners
type BotServ struct {
	host    Host
	self    *server.Client
	started time.Time

	rand *rand.Rand
	now  func() time.Time
}

// Option configures a BotServ
type Option func(*BotServ)

// WithRand sets the random source used by !roll and !choose
func WithRand(r *rand.Rand) Option {
	return func(b *BotServ) {
		b.rand = r
	}
}

// WithClock replaces time.Now for !uptime
func WithClock(now func() time.Time) Option {
	return func(b *BotServ) {
		b.now = now
	}
}

// New registers the bot's identity on host. Call Join, or attach it and
// let the server route invitations, to put it in channels.
func New(host Host, nick string, opts ...Option) (*BotServ, error) {
	b := &BotServ{
		host: host,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rand == nil {
		b.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	b.started = b.now()

	self, err := host.AddSyntheticClient(nick, Username)
	if err != nil {
		return nil, fmt.Errorf("register bot: %w", err)
	}
	b.self = self
	return b, nil
}

// Client returns the bot's pseudo-client
func (b *BotServ) Client() *server.Client {
	return b.self
}

// Nickname implements server.Bot
func (b *BotServ) Nickname() string {
	return b.self.Nickname
}

// Join implements server.Bot
func (b *BotServ) Join(channel string) {
	if err := b.host.JoinChannel(b.self, channel); err != nil {
		b.logger().WithField("channel", channel).Warnf("join failed: %v", err)
	}
}

// OnUserJoined implements server.Bot
func (b *BotServ) OnUserJoined(channel *server.Channel, who *server.Client) {
	if channel == nil || who == nil || !channel.IsMember(b.self) {
		return
	}
	b.say(channel.Name, fmt.Sprintf("Welcome %s 👋 - try !help to see commands", who.Nickname))
}

// OnChannelMessage implements server.Bot. Text that is not a command, or
// that arrives in a channel the bot is not in, is ignored.
func (b *BotServ) OnChannelMessage(channel *server.Channel, from *server.Client, text string) {
	if channel == nil || from == nil || !strings.HasPrefix(text, "!") || !channel.IsMember(b.self) {
		return
	}

	word, rest, _ := strings.Cut(text[1:], " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(word) {
	case "help":
		for _, line := range helpLines {
			b.say(channel.Name, line)
		}
	case "echo":
		if rest == "" {
			b.say(channel.Name, from.Nickname+": (empty)")
			return
		}
		b.say(channel.Name, rest)
	case "roll":
		b.say(channel.Name, fmt.Sprintf("🎲 %d", b.rand.Intn(6)+1))
	case "choose":
		b.choose(channel.Name, rest)
	case "uptime":
		b.say(channel.Name, "Uptime: "+formatUptime(b.now().Sub(b.started)))
	default:
		b.say(channel.Name, "Command not found. Try !help")
	}
}

// OnDirectMessage implements server.Bot. Replies are NOTICEs so that
// other bots never answer them.
func (b *BotServ) OnDirectMessage(from *server.Client, text string) {
	if from == nil {
		return
	}
	if text == "help" || text == "!help" {
		for _, line := range helpLines {
			b.notice(from.Nickname, line)
		}
		return
	}
	b.notice(from.Nickname, fmt.Sprintf("Hi %s. Type !help", from.Nickname))
}

func (b *BotServ) choose(channel, rest string) {
	var options []string
	for _, option := range strings.Split(rest, "|") {
		if option = strings.TrimSpace(option); option != "" {
			options = append(options, option)
		}
	}
	if len(options) == 0 {
		b.say(channel, "Usage: !choose a|b|c")
		return
	}
	b.say(channel, "I choose: "+options[b.rand.Intn(len(options))])
}

func (b *BotServ) say(channel, text string) {
	if err := b.host.SendChannel(b.self, channel, text); err != nil {
		b.logger().WithField("channel", channel).Debugf("send failed: %v", err)
	}
}

func (b *BotServ) notice(nick, text string) {
	if err := b.host.SendNotice(b.self, nick, text); err != nil {
		b.logger().WithField("target", nick).Debugf("notice failed: %v", err)
	}
}

func (b *BotServ) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"bot":    b.self.Nickname,
		"server": b.host.ServerName(),
	})
}

// formatUptime renders d as "Xh Ym Zs"
func formatUptime(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm %ds", s/3600, s%3600/60, s%60)
}
