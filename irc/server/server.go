package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/presbrey/ircd/irc"
	"github.com/presbrey/ircd/irc/config"
	"github.com/presbrey/ircd/irc/metrics"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrServerClosed is returned once the event loop has stopped
var ErrServerClosed = errors.New("server: closed")

type eventKind int

const (
	eventConnect eventKind = iota
	eventData
	eventDead
	eventCall
)

// event is the only way other goroutines reach the loop
type event struct {
	kind eventKind
	sess *session
	data []byte
	err  error
	call func()
}

// Server represents the IRC server. All state below the events channel is
// owned by the goroutine running Run.
type Server struct {
	config    *config.Config
	startTime time.Time
	metrics   *metrics.Collector

	events chan event
	done   chan struct{}
	once   sync.Once

	mu        sync.Mutex
	listeners map[net.Listener]struct{}

	clients  *clientRegistry
	channels *channelRegistry
	bot      Bot
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records server activity on m
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewServer creates an IRC server and its preset channels. Call Run to
// start the event loop and Serve to accept connections.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv := &Server{
		config:    cfg,
		startTime: time.Now(),
		events:    make(chan event),
		done:      make(chan struct{}),
		listeners: make(map[net.Listener]struct{}),
		clients:   newClientRegistry(),
		channels:  newChannelRegistry(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	for _, preset := range cfg.Channels.Preset {
		ch := srv.channels.create(preset.Name)
		if preset.Topic != "" {
			ch.SetTopic(preset.Topic, cfg.Server.Name)
		}
	}

	return srv, nil
}

// ServerName returns the configured server name
func (s *Server) ServerName() string {
	return s.config.Server.Name
}

// Run processes events until ctx is cancelled, then disconnects every
// client and closes all listeners.
func (s *Server) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.PollInterval())
	defer ticker.Stop()

	log.WithField("server", s.config.Server.Name).Info("event loop started")
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.C:
			s.wake()
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// post hands an event to the loop. It reports false once the loop is gone.
func (s *Server) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Do runs fn on the event loop and waits for it to finish
func (s *Server) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	ev := event{kind: eventCall, call: func() {
		defer close(finished)
		fn()
	}}

	select {
	case s.events <- ev:
	case <-s.done:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrServerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve accepts connections on ln until it is closed or the loop stops
func (s *Server) Serve(ln net.Listener) error {
	s.trackListener(ln, true)
	defer s.trackListener(ln, false)

	log.WithField("addr", ln.Addr().String()).Info("listening")
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return ErrServerClosed
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.attach(newSession(nc)) {
			nc.Close()
			return ErrServerClosed
		}
	}
}

// attach hands a new session to the loop and starts its I/O goroutines
func (s *Server) attach(sess *session) bool {
	if !s.post(event{kind: eventConnect, sess: sess}) {
		return false
	}
	sess.start(s)
	return true
}

func (s *Server) trackListener(ln net.Listener, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.listeners[ln] = struct{}{}
	} else {
		delete(s.listeners, ln)
	}
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ln := range s.listeners {
		ln.Close()
	}
}

func (s *Server) handleEvent(ev event) {
	switch ev.kind {
	case eventConnect:
		s.connect(ev.sess.id, ev.sess)
	case eventData:
		if c := s.clients.get(ev.sess.id); c != nil {
			s.receive(c, ev.data)
		}
	case eventDead:
		if c := s.clients.get(ev.sess.id); c != nil {
			s.disconnect(c, "Connection closed", "error")
		}
	case eventCall:
		ev.call()
	}
}

// connect registers a new client on the loop
func (s *Server) connect(id string, t Transport) *Client {
	c := newClient(s, id, t)
	s.clients.add(c)
	s.metrics.Connected()
	c.logger().Info("client connected")
	return c
}

// receive buffers data for c and runs every complete line through the
// dispatcher before returning.
func (s *Server) receive(c *Client, data []byte) {
	s.metrics.BytesIn(len(data))
	c.inbound.Write(data)

	for !c.gone {
		line, ok := c.inbound.Next()
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			s.disconnect(c, "Excess Flood", "flood")
			return
		}

		if log.IsLevelEnabled(log.DebugLevel) {
			c.logger().Debugf("<= %s", line)
		}
		msg := irc.ParseMessage(line)
		if msg == nil {
			continue
		}
		s.dispatch(c, msg)
	}
}

// disconnect removes c from both indexes and every channel in one step,
// tells its peers, then closes the transport. cause labels the metric.
func (s *Server) disconnect(c *Client, reason, cause string) {
	if c.gone {
		return
	}

	peers := s.peersOf(c)
	for _, ch := range s.channels.all() {
		ch.forget(c)
	}
	s.clients.remove(c)

	if c.Registered {
		quit := irc.NewMessage(c.Prefix(), "QUIT", reason)
		for _, peer := range peers {
			peer.SendMessage(quit)
		}
	}

	if c.transport != nil {
		c.SendMessage(irc.NewMessage("", "ERROR", "disconnected: "+reason))
		c.transport.Close()
		s.metrics.Disconnected(cause)
	}
	c.gone = true

	c.logger().WithFields(log.Fields{
		"reason":   reason,
		"duration": time.Since(c.ConnectedAt).Round(time.Millisecond),
	}).Info("client disconnected")
}

// peersOf returns every other client sharing a channel with c, in
// nickname order.
func (s *Server) peersOf(c *Client) []*Client {
	seen := make(map[string]bool)
	var peers []*Client
	for _, ch := range s.channels.all() {
		if !ch.IsMember(c) {
			continue
		}
		for _, id := range ch.memberIDs() {
			if id == c.ID || seen[id] {
				continue
			}
			seen[id] = true
			if peer := s.clients.get(id); peer != nil {
				peers = append(peers, peer)
			}
		}
	}
	sortByNick(peers)
	return peers
}

// wake runs on every poll interval to keep gauges current
func (s *Server) wake() {
	s.metrics.SetState(s.clients.registered(), s.channels.len())
}

func (s *Server) shutdown() {
	s.once.Do(func() {
		s.closeListeners()
		for _, c := range s.clients.all() {
			if !c.Synthetic() {
				s.disconnect(c, "Server shutting down", "shutdown")
			}
		}
		close(s.done)
		log.Info("event loop stopped")
	})
}

// passwordRequired reports whether PASS must succeed before registration
func (s *Server) passwordRequired() bool {
	return s.config.Server.Password != "" || s.config.Server.PasswordHash != ""
}

// checkPassword compares a PASS argument with the configured secret
func (s *Server) checkPassword(password string) bool {
	if hash := s.config.Server.PasswordHash; hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	if want := s.config.Server.Password; want != "" {
		return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
	}
	return true
}
