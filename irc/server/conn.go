package server

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// stream is the byte pipe under a session: a TCP connection or a
// WebSocket adapter.
type stream interface {
	io.ReadWriteCloser
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// session is the network side of a client. Its read and write loops run
// on their own goroutines and talk to the event loop only through events
// and the outbound queue.
type session struct {
	id     string
	stream stream
	remote string

	mu      sync.Mutex
	queue   []byte
	closing bool

	wake      chan struct{} // write interest, capacity 1
	closed    chan struct{}
	closeOnce sync.Once

	timedOut bool // last flush hit the deadline; writer goroutine only
}

func newSession(st stream) *session {
	return &session{
		id:     uuid.New().String(),
		stream: st,
		remote: st.RemoteAddr().String(),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Send appends to the outbound queue and arms write interest
func (s *session) Send(p []byte) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, p...)
	s.mu.Unlock()
	s.arm()
}

// Close stops accepting output; the writer drains the queue, then hangs up
func (s *session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		close(s.closed)
	})
}

func (s *session) RemoteAddr() string {
	return s.remote
}

func (s *session) arm() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pending returns the number of queued bytes
func (s *session) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// start launches the read and write loops
func (s *session) start(srv *Server) {
	go s.readLoop(srv)
	go s.writeLoop(srv)
}

func (s *session) readLoop(srv *Server) {
	buf := make([]byte, srv.config.Server.ReadBuffer)
	for {
		n, err := s.stream.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			if !srv.post(event{kind: eventData, sess: s, data: data}) {
				return
			}
		}
		if err != nil {
			srv.post(event{kind: eventDead, sess: s, err: err})
			return
		}
	}
}

func (s *session) writeLoop(srv *Server) {
	defer s.stream.Close()

	timeout := srv.config.WriteDeadline()
	for {
		select {
		case <-s.wake:
			if err := s.flush(timeout); err != nil {
				srv.post(event{kind: eventDead, sess: s, err: err})
				return
			}
		case <-s.closed:
			// best effort: the peer may already be gone
			for s.pending() > 0 {
				if err := s.flush(timeout); err != nil || s.timedOut {
					break
				}
			}
			return
		}
	}
}

// flush makes one write attempt. A short write caused by the deadline puts
// the remainder back at the head of the queue and re-arms; any other error
// is fatal for the session.
func (s *session) flush(timeout time.Duration) error {
	s.mu.Lock()
	buf := s.queue
	s.queue = nil
	s.mu.Unlock()

	s.timedOut = false
	if len(buf) == 0 {
		return nil
	}

	if err := s.stream.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		log.WithField("remote", s.remote).Debugf("set write deadline: %v", err)
	}
	n, err := s.stream.Write(buf)
	if err == nil {
		return nil
	}

	rest := buf[n:len(buf):len(buf)]
	s.mu.Lock()
	s.queue = append(rest, s.queue...)
	s.mu.Unlock()

	if errors.Is(err, os.ErrDeadlineExceeded) {
		s.timedOut = true
		s.arm()
		return nil
	}
	return err
}
