package irc

import "bytes"

var crlf = []byte("\r\n")

// Framer accumulates bytes from a stream and yields CRLF terminated lines.
// It does not bound the amount of buffered data.
type Framer struct {
	buf []byte
}

// Write appends received bytes to the buffer. It never fails.
func (f *Framer) Write(p []byte) (int, error) {
	f.buf = append(f.buf, p...)
	return len(p), nil
}

// Next removes and returns the next complete line without its terminator.
// The second result is false when no terminator is buffered.
func (f *Framer) Next() (string, bool) {
	i := bytes.Index(f.buf, crlf)
	if i < 0 {
		return "", false
	}

	line := string(f.buf[:i])
	f.buf = f.buf[i+len(crlf):]
	if len(f.buf) == 0 {
		// drop the backing array once drained
		f.buf = nil
	}
	return line, true
}

// Lines drains every complete line currently buffered
func (f *Framer) Lines() []string {
	var lines []string
	for {
		line, ok := f.Next()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}
