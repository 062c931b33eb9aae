// Package wire implements the terminator-delimited framing layer: reading
// complete logical messages off a byte stream with early rejection of
// provably oversize frames, and carrying leftover bytes from one message
// into the next across arbitrarily split or coalesced reads.
package wire

import (
	"bytes"
	"io"
	"net"
	"time"

	"github.com/sxccxs/robot-server/internal/protoerr"
)

const readChunkSize = 256

// deadlineSetter is satisfied by net.Conn. A Framer reading from a plain
// io.Reader (as in tests) simply skips deadline management.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// Framer reads terminator-delimited messages from a single underlying
// stream, retaining any bytes read past one message's terminator as
// carry-over for the next call to ReadMessage.
type Framer struct {
	r          io.Reader
	terminator []byte
	carry      []byte
}

// New returns a Framer reading from r and splitting on terminator.
// terminator must be non-empty.
func New(r io.Reader, terminator []byte) *Framer {
	return &Framer{r: r, terminator: append([]byte(nil), terminator...)}
}

// MaxBufferedBeforeTerminator is the largest carry buffer length that
// still leaves room for a valid terminator placement within a message of
// at most expected bytes. Once the buffer exceeds this length without a
// terminator match, the message is provably oversize.
func MaxBufferedBeforeTerminator(expected, terminatorLen int) int {
	return expected + terminatorLen - 1
}

// ReadMessage returns the next message payload, excluding the
// terminator. maxLen bounds the payload length (not counting the
// terminator); a message whose payload would exceed maxLen yields
// protoerr.ErrSyntax as soon as that is provable, without waiting for
// more bytes. timeout bounds each individual underlying read and is
// reapplied before every one, so the deadline effectively resets on
// every successfully received byte; pass zero to disable deadline
// management (e.g. when r does not support it).
func (f *Framer) ReadMessage(maxLen int, timeout time.Duration) ([]byte, error) {
	buf := f.carry
	f.carry = nil
	chunk := make([]byte, readChunkSize)

	for {
		if idx := bytes.Index(buf, f.terminator); idx >= 0 {
			if idx > maxLen {
				return nil, protoerr.ErrSyntax
			}
			payload := buf[:idx]
			f.carry = append([]byte(nil), buf[idx+len(f.terminator):]...)
			return payload, nil
		}

		if len(buf) > MaxBufferedBeforeTerminator(maxLen, len(f.terminator)) {
			return nil, protoerr.ErrSyntax
		}

		if timeout > 0 {
			if ds, ok := f.r.(deadlineSetter); ok {
				if err := ds.SetReadDeadline(time.Now().Add(timeout)); err != nil {
					return nil, err
				}
			}
		}

		n, err := f.r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if n > 0 {
				continue
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, protoerr.ErrTimeout
			}
			return nil, err
		}
	}
}
