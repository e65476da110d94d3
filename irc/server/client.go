package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/presbrey/ircd/irc"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Transport carries bytes to a connected peer. Send queues without
// blocking; Close flushes what is queued and then hangs up.
type Transport interface {
	Send(p []byte)
	Close()
	RemoteAddr() string
}

// Client represents one session: a network connection, or a synthetic
// pseudo-client with no transport.
type Client struct {
	ID               string
	Nickname         string
	Username         string
	Hostname         string
	Realname         string
	PasswordAccepted bool
	Registered       bool
	Invisible        bool
	ConnectedAt      time.Time

	server    *Server
	transport Transport
	inbound   irc.Framer
	limiter   *rate.Limiter
	gone      bool
}

// newClient creates a client for a transport. The ID doubles as the
// connection id.
func newClient(s *Server, id string, t Transport) *Client {
	if id == "" {
		id = uuid.New().String()
	}
	c := &Client{
		ID:          id,
		server:      s,
		transport:   t,
		ConnectedAt: time.Now(),
	}
	if f := s.config.Flood; f.LinesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(f.LinesPerSecond), f.Burst)
	}
	return c
}

// Synthetic reports whether the client has no network transport
func (c *Client) Synthetic() bool {
	return c.transport == nil
}

// Prefix returns nick!user@host
func (c *Client) Prefix() string {
	return irc.FormatHostmask(c.Nickname, c.Username, c.Hostname)
}

// RemoteAddr returns the peer address, or "" for synthetic clients
func (c *Client) RemoteAddr() string {
	if c.transport == nil {
		return ""
	}
	return c.transport.RemoteAddr()
}

// target is the nickname numerics are addressed to
func (c *Client) target() string {
	if c.Nickname == "" {
		return "*"
	}
	return c.Nickname
}

func (c *Client) logger() *log.Entry {
	return log.WithFields(log.Fields{
		"client": c.ID,
		"nick":   c.Nickname,
		"remote": c.RemoteAddr(),
	})
}

// SendRaw queues one line, adding the CRLF terminator
func (c *Client) SendRaw(line string) {
	if c.transport == nil || c.gone {
		return
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		c.logger().Debugf("=> %s", line)
	}
	p := []byte(line + "\r\n")
	c.server.metrics.BytesOut(len(p))
	c.transport.Send(p)
}

// SendMessage queues a structured message
func (c *Client) SendMessage(msg *irc.Message) {
	c.SendRaw(msg.String())
}

// SendNumeric sends ":<server> <code> <nick> <params...> :<last>". The
// final parameter is always written as trailing.
func (c *Client) SendNumeric(code int, params ...string) {
	var sb strings.Builder

	sb.WriteString(":")
	sb.WriteString(c.server.config.Server.Name)
	sb.WriteString(fmt.Sprintf(" %03d ", code))
	sb.WriteString(c.target())

	for i, param := range params {
		sb.WriteString(" ")
		if i == len(params)-1 {
			sb.WriteString(":")
		}
		sb.WriteString(param)
	}

	c.SendRaw(sb.String())
}

func (c *Client) needMoreParams(command string) {
	c.SendNumeric(irc.ERR_NEEDMOREPARAMS, command, "Not enough parameters")
}

// canRegister reports whether every registration condition holds
func (c *Client) canRegister() bool {
	return !c.Registered &&
		c.Nickname != "" &&
		c.Username != "" &&
		(!c.server.passwordRequired() || c.PasswordAccepted)
}
