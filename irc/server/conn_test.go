package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// choppyStream accepts at most limit bytes per write, then reports a
// deadline, like a socket whose peer stopped reading.
type choppyStream struct {
	out   bytes.Buffer
	limit int
	fail  error
}

func (c *choppyStream) Read(p []byte) (int, error) { return 0, io.EOF }

func (c *choppyStream) Write(p []byte) (int, error) {
	if c.fail != nil {
		return 0, c.fail
	}
	if c.limit > 0 && len(p) > c.limit {
		c.out.Write(p[:c.limit])
		return c.limit, os.ErrDeadlineExceeded
	}
	c.out.Write(p)
	return len(p), nil
}

func (c *choppyStream) Close() error                     { return nil }
func (c *choppyStream) SetWriteDeadline(time.Time) error { return nil }
func (c *choppyStream) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(192, 0, 2, 7), Port: 6000}
}

func TestSessionFlushRequeuesShortWrite(t *testing.T) {
	st := &choppyStream{limit: 4}
	sess := newSession(st)
	assert.Equal(t, "192.0.2.7:6000", sess.RemoteAddr())

	sess.Send([]byte("PING one\r\n"))
	require.NoError(t, sess.flush(time.Second))

	assert.True(t, sess.timedOut)
	assert.Equal(t, "PING", st.out.String())
	assert.Equal(t, 6, sess.pending())

	// output queued meanwhile goes after the remainder
	sess.Send([]byte("X\r\n"))
	st.limit = 0
	require.NoError(t, sess.flush(time.Second))
	assert.False(t, sess.timedOut)
	assert.Equal(t, "PING one\r\nX\r\n", st.out.String())
	assert.Zero(t, sess.pending())
}

func TestSessionFlushFatalError(t *testing.T) {
	boom := errors.New("connection reset")
	st := &choppyStream{fail: boom}
	sess := newSession(st)

	sess.Send([]byte("hello\r\n"))
	assert.ErrorIs(t, sess.flush(time.Second), boom)
	assert.False(t, sess.timedOut)
}

func TestSessionClosedDropsOutput(t *testing.T) {
	sess := newSession(&choppyStream{})
	sess.Close()
	sess.Close()

	sess.Send([]byte("late\r\n"))
	assert.Zero(t, sess.pending())
}
