package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBot answers to a nickname and records every hook call
type recordingBot struct {
	srv    *Server
	self   *Client
	joined []string
	events []string
}

func (b *recordingBot) Nickname() string { return b.self.Nickname }

func (b *recordingBot) Join(channel string) {
	b.joined = append(b.joined, channel)
	_ = b.srv.JoinChannel(b.self, channel)
}

func (b *recordingBot) OnChannelMessage(channel *Channel, from *Client, text string) {
	b.events = append(b.events, "msg "+channel.Name+" "+from.Nickname+" "+text)
	if text == "!ping" {
		_ = b.srv.SendChannel(b.self, channel.Name, "pong")
	}
}

func (b *recordingBot) OnDirectMessage(from *Client, text string) {
	b.events = append(b.events, "dm "+from.Nickname+" "+text)
	_ = b.srv.SendNotice(b.self, from.Nickname, "got it")
}

func (b *recordingBot) OnUserJoined(channel *Channel, who *Client) {
	b.events = append(b.events, "join "+channel.Name+" "+who.Nickname)
}

func newBotServer(t *testing.T) (*Server, *recordingBot) {
	t.Helper()
	srv := newTestServer(t)
	self, err := srv.AddSyntheticClient("BotServ", "bot")
	require.NoError(t, err)

	b := &recordingBot{srv: srv, self: self}
	srv.AttachBot(b)
	require.NoError(t, srv.JoinChannel(self, "#welcome"))
	return srv, b
}

func TestSyntheticClient(t *testing.T) {
	srv, b := newBotServer(t)

	assert.True(t, b.self.Synthetic())
	assert.True(t, b.self.Registered)
	assert.Equal(t, "BotServ!bot@test.irc", b.self.Prefix())
	assert.Same(t, b.self, srv.clients.lookup("BotServ"))
	assert.True(t, srv.channels.get("#welcome").IsOperator(b.self))
	assert.Empty(t, b.events, "the bot does not greet itself")

	_, err := srv.AddSyntheticClient("BotServ", "bot")
	assert.Error(t, err)
	_, err = srv.AddSyntheticClient("#bad", "bot")
	assert.Error(t, err)

	// synthetic clients occupy a nickname but never receive bytes
	ft := &fakeTransport{}
	c := srv.connect("", ft)
	feed(srv, c, "PASS secret", "NICK BotServ")
	assert.True(t, ft.has(" 433 * BotServ "))
}

func TestBotHooks(t *testing.T) {
	srv, b := newBotServer(t)
	alice, aft := register(t, srv, "alice")

	feed(srv, alice, "JOIN #welcome")
	assert.Equal(t, []string{"join #welcome alice"}, b.events)
	assert.True(t, aft.has(":test.irc 353 alice = #welcome :@BotServ alice"))

	aft.take()
	feed(srv, alice, "PRIVMSG #welcome :!ping")
	assert.Equal(t, "msg #welcome alice !ping", b.events[1])
	assert.Equal(t, []string{":BotServ!bot@test.irc PRIVMSG #welcome :pong"}, aft.take())

	feed(srv, alice, "PRIVMSG BotServ :hello")
	assert.Equal(t, "dm alice hello", b.events[2])
	assert.Equal(t, []string{":BotServ!bot@test.irc NOTICE alice :got it"}, aft.take())

	// NOTICE never reaches the hooks
	feed(srv, alice, "NOTICE BotServ :shh", "NOTICE #welcome :shh")
	assert.Len(t, b.events, 3)
}

func TestBotInvite(t *testing.T) {
	srv, b := newBotServer(t)
	alice, aft := register(t, srv, "alice")

	feed(srv, alice, "JOIN #den", "MODE #den +i")
	aft.take()
	feed(srv, alice, "INVITE BotServ #den")

	assert.Equal(t, []string{"#den"}, b.joined)
	assert.True(t, srv.channels.get("#den").IsMember(b.self))
	assert.True(t, aft.has(" 341 alice BotServ :#den"))
	assert.True(t, aft.has(":BotServ!bot@test.irc JOIN #den"))
}

func TestBotHostErrors(t *testing.T) {
	srv, b := newBotServer(t)

	assert.ErrorIs(t, srv.SendChannel(b.self, "#nowhere", "hi"), ErrNoSuchChannel)
	assert.ErrorIs(t, srv.SendNotice(b.self, "nobody", "hi"), ErrNoSuchNick)
	assert.Error(t, srv.JoinChannel(b.self, "nochan"))

	// the bot can only speak where it is a member
	alice, aft := register(t, srv, "alice")
	feed(srv, alice, "JOIN #quiet")
	aft.take()
	assert.ErrorIs(t, srv.SendChannel(b.self, "#quiet", "hi"), ErrNotOnChannel)
	assert.Empty(t, aft.take())
}

func TestShutdownKeepsSyntheticClients(t *testing.T) {
	srv, b := newBotServer(t)
	_, aft := register(t, srv, "alice")

	srv.shutdown()

	assert.True(t, aft.has("ERROR :disconnected: Server shutting down"))
	assert.True(t, aft.closed)
	assert.Same(t, b.self, srv.clients.lookup("BotServ"))
}
