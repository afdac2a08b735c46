package tcpworker

import (
	"net"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// stream is the byte stream derived from an attached socket. Closing it
// shuts down the write half so the peer observes end of stream; the socket
// itself is closed separately.
type stream struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
	closed       atomic.Bool
}

func newStream(conn net.Conn, readTimeout, writeTimeout time.Duration) *stream {
	return &stream{
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (s *stream) readable() bool {
	return !s.closed.Load()
}

func (s *stream) writable() bool {
	return !s.closed.Load()
}

func (s *stream) Read(p []byte) (int, error) {
	if s.readTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return 0, err
		}
	}

	return s.conn.Read(p)
}

// Write writes p in full. A single Write on a net.Conn is not interleaved
// with other Writes, but consecutive calls from different goroutines are not
// ordered against each other.
func (s *stream) Write(p []byte) (int, error) {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return 0, err
		}
	}

	return s.conn.Write(p)
}

// interrupt unblocks a pending Read.
func (s *stream) interrupt() {
	_ = s.conn.SetReadDeadline(time.Now())
}

func (s *stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}

	return nil
}

// decodeText turns raw bytes into text, replacing invalid UTF-8 sequences,
// including a multi-byte character cut at the end of a chunk, with U+FFFD.
func decodeText(b []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}

	return string(out)
}

func encodeText(s string) []byte {
	return []byte(strings.ToValidUTF8(s, "\uFFFD"))
}
