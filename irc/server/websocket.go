package server

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// wsStream adapts a WebSocket connection to the session byte stream. Each
// inbound message holds one or more lines; each outbound line is sent as
// its own text message.
type wsStream struct {
	conn    *websocket.Conn
	pending []byte
}

func (w *wsStream) Read(p []byte) (int, error) {
	for len(w.pending) == 0 {
		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		msg = bytes.TrimRight(msg, "\r\n")
		if len(msg) == 0 {
			continue
		}
		w.pending = append(msg, '\r', '\n')
	}

	n := copy(p, w.pending)
	w.pending = w.pending[n:]
	return n, nil
}

func (w *wsStream) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		line, rest, found := bytes.Cut(p, crlf)
		size := len(line)
		if found {
			size += len(crlf)
		}

		if len(line) > 0 {
			if err := w.conn.WriteMessage(websocket.TextMessage, line); err != nil {
				// A failed write leaves the WebSocket unusable, so a
				// deadline here must not be retried.
				return written, fmt.Errorf("websocket write: %v", err)
			}
		}
		written += size
		p = rest
	}
	return written, nil
}

func (w *wsStream) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return w.conn.Close()
}

func (w *wsStream) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *wsStream) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}

var crlf = []byte("\r\n")

// WebSocketHandler upgrades requests to IRC sessions on this server.
// An empty origin list, or one containing "*", admits any origin.
func (s *Server) WebSocketHandler(allowedOrigins []string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.config.Server.ReadBuffer,
		WriteBufferSize: 1024,
		Subprotocols:    []string{"text.ircv3.net"},
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithField("remote", r.RemoteAddr).Debugf("websocket upgrade: %v", err)
			return
		}
		if !s.attach(newSession(&wsStream{conn: conn})) {
			conn.Close()
		}
	})
}

// ServeWebSocket serves IRC over WebSocket on ln at the configured path
// until the loop stops.
func (s *Server) ServeWebSocket(ln net.Listener) error {
	router := mux.NewRouter()
	router.Handle(s.config.WebSocket.Path, s.WebSocketHandler(s.config.WebSocket.AllowedOrigins)).
		Methods(http.MethodGet)

	hs := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-s.done
		hs.Close()
	}()

	log.WithFields(log.Fields{
		"addr": ln.Addr().String(),
		"path": s.config.WebSocket.Path,
	}).Info("websocket listening")

	err := hs.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return ErrServerClosed
	}
	return err
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool)
	allowAll := len(origins) == 0
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			allowed[normalized] = true
		}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin, ok := normalizeOrigin(r.Header.Get("Origin"))
		return ok && allowed[origin]
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
