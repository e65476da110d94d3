package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// opChannel registers alice and bob and leaves alice operating #room
func opChannel(t *testing.T) (*Server, *Channel, *Client, *fakeTransport, *Client, *fakeTransport) {
	t.Helper()
	srv := newTestServer(t)
	alice, aft := register(t, srv, "alice")
	bob, bft := register(t, srv, "bob")
	feed(srv, alice, "JOIN #room")
	feed(srv, bob, "JOIN #room")
	aft.take()
	bft.take()

	ch := srv.channels.get("#room")
	require.NotNil(t, ch)
	return srv, ch, alice, aft, bob, bft
}

func TestChannelModeQuery(t *testing.T) {
	srv, ch, alice, aft, _, _ := opChannel(t)

	feed(srv, alice, "MODE #room")
	assert.Equal(t, []string{":test.irc 324 alice #room :+t"}, aft.take())

	ch.Modes.Key = "k3y"
	ch.Modes.UserLimit = 5
	ch.Modes.InviteOnly = true
	assert.Equal(t, "+itkl k3y 5", ch.GetModeString())

	feed(srv, alice, "MODE #none", "MODE")
	assert.True(t, aft.has(" 403 alice #none "))
	assert.True(t, aft.has(" 461 alice MODE "))
}

func TestChannelModeRequiresOperator(t *testing.T) {
	srv, ch, _, _, bob, bft := opChannel(t)
	carol, cft := register(t, srv, "carol")

	feed(srv, bob, "MODE #room +i")
	assert.True(t, bft.has(" 482 bob #room :You're not channel operator"))
	assert.False(t, ch.Modes.InviteOnly)

	feed(srv, carol, "MODE #room +i")
	assert.True(t, cft.has(" 442 carol #room "))
}

func TestChannelModeIdempotent(t *testing.T) {
	srv, ch, alice, aft, _, bft := opChannel(t)

	feed(srv, alice, "MODE #room +i", "MODE #room +i")
	assert.True(t, ch.Modes.InviteOnly)
	assert.Equal(t, []string{":alice!alice@host.example MODE #room +i"}, bft.take())
	assert.Len(t, aft.take(), 1)

	feed(srv, alice, "MODE #room +t")
	assert.Empty(t, bft.take(), "already topic restricted")
}

func TestChannelModeKey(t *testing.T) {
	srv, ch, alice, aft, _, bft := opChannel(t)

	feed(srv, alice, "MODE #room +k")
	assert.True(t, aft.has(" 461 alice MODE "))

	aft.take()
	feed(srv, alice, "MODE #room +k sesame")
	assert.Equal(t, "sesame", ch.Modes.Key)
	assert.True(t, bft.has(":alice!alice@host.example MODE #room +k sesame"))

	feed(srv, alice, "MODE #room +k other")
	assert.True(t, aft.has(" 467 alice #room :Channel key already set"))
	assert.Equal(t, "sesame", ch.Modes.Key)

	feed(srv, alice, "MODE #room -k wrong")
	assert.True(t, aft.has(" 475 alice #room "))
	assert.Equal(t, "sesame", ch.Modes.Key)

	bft.take()
	feed(srv, alice, "MODE #room -k sesame")
	assert.Empty(t, ch.Modes.Key)
	assert.Equal(t, []string{":alice!alice@host.example MODE #room -k sesame"}, bft.take())
}

func TestChannelModeLimit(t *testing.T) {
	srv, ch, alice, aft, _, bft := opChannel(t)

	feed(srv, alice, "MODE #room +l 0", "MODE #room +l many")
	assert.Equal(t, 2, aft.count(" 461 "))
	assert.Zero(t, ch.Modes.UserLimit)

	feed(srv, alice, "MODE #room +l 10")
	assert.Equal(t, 10, ch.Modes.UserLimit)
	assert.True(t, bft.has("MODE #room +l 10"))

	// -l consumes no parameter, so the key is still read for +k
	bft.take()
	feed(srv, alice, "MODE #room -l+k pw")
	assert.Zero(t, ch.Modes.UserLimit)
	assert.Equal(t, "pw", ch.Modes.Key)
	assert.Equal(t, []string{
		":alice!alice@host.example MODE #room -l",
		":alice!alice@host.example MODE #room +k pw",
	}, bft.take())
}

func TestChannelModeOperator(t *testing.T) {
	srv, ch, alice, aft, bob, bft := opChannel(t)

	feed(srv, alice, "MODE #room +o ghost")
	assert.True(t, aft.has(" 441 alice ghost #room "))

	feed(srv, alice, "MODE #room +o bob")
	assert.True(t, ch.IsOperator(bob))
	assert.True(t, bft.has(":alice!alice@host.example MODE #room +o bob"))

	bft.take()
	feed(srv, alice, "MODE #room +o bob")
	assert.Empty(t, bft.take())

	feed(srv, bob, "MODE #room -o alice")
	assert.False(t, ch.IsOperator(alice))
	assert.Equal(t, "alice @bob", ch.NamesList())
}

func TestChannelModeUnknownFlags(t *testing.T) {
	srv, ch, alice, aft, _, _ := opChannel(t)

	feed(srv, alice, "MODE #room +xzi")
	assert.True(t, aft.has(" 472 alice x :is unknown mode char to me"))
	assert.True(t, aft.has(" 472 alice z :is unknown mode char to me"))
	assert.True(t, ch.Modes.InviteOnly, "known flags still apply")
}

func TestChannelModeClearsInvites(t *testing.T) {
	srv, ch, alice, _, _, _ := opChannel(t)
	carol, _ := register(t, srv, "carol")

	feed(srv, alice, "MODE #room +i", "INVITE carol #room")
	assert.True(t, ch.IsInvited(carol))

	feed(srv, alice, "MODE #room -i")
	assert.Empty(t, ch.invited)
}

func TestUserMode(t *testing.T) {
	srv := newTestServer(t)
	alice, aft := register(t, srv, "alice")
	register(t, srv, "bob")

	feed(srv, alice, "MODE bob +i")
	assert.True(t, aft.has(" 502 alice :Cant change mode for other users"))

	aft.take()
	feed(srv, alice, "MODE alice")
	assert.Equal(t, []string{":test.irc 221 alice :+"}, aft.take())

	feed(srv, alice, "MODE alice +i")
	assert.True(t, alice.Invisible)
	assert.Equal(t, []string{":alice!alice@host.example MODE alice +i"}, aft.take())

	feed(srv, alice, "MODE alice +i")
	assert.Empty(t, aft.take())

	feed(srv, alice, "MODE alice")
	assert.Equal(t, []string{":test.irc 221 alice :+i"}, aft.take())

	feed(srv, alice, "MODE alice +w", "MODE alice i")
	assert.Equal(t, 2, aft.count(" 501 alice :Unknown MODE flag"))
}
