// Package link moves SLIP frames over a serial port: outbound
// payloads are framed and written whole, inbound bytes are run
// through a stateful decoder until a frame completes.
package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/bigbag/slipwire/internal/slip"
)

var (
	// ErrTimeout is returned when no complete frame arrives before the
	// receive deadline.
	ErrTimeout = errors.New("link: timeout waiting for frame")

	// ErrPayloadTooLarge is returned when a payload exceeds the
	// configured maximum.
	ErrPayloadTooLarge = errors.New("link: payload exceeds maximum size")
)

// DefaultMaxPayload bounds decoded payload size unless configured
// otherwise.
const DefaultMaxPayload = 1024

// Port is the transport the link reads and writes. *serial.Port
// satisfies it.
type Port interface {
	Read(buf []byte) (int, error)
	ReadWithTimeout(buf []byte, timeout time.Duration) (int, error)
	Write(data []byte) (int, error)
}

// Link frames and unframes payloads over a Port. It owns a single
// decoder, so a Link must not be shared between goroutines without
// external serialization.
type Link struct {
	port       Port
	dec        *slip.Decoder
	maxPayload int
	dropped    int
}

// Option configures a Link.
type Option func(*Link)

// WithMaxPayload sets the largest payload the link will send or
// accept.
func WithMaxPayload(n int) Option {
	return func(l *Link) { l.maxPayload = n }
}

// New creates a Link over the given port.
func New(port Port, opts ...Option) *Link {
	l := &Link{
		port:       port,
		maxPayload: DefaultMaxPayload,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.dec = slip.NewDecoder(l.maxPayload)
	return l
}

// Send frames payload and writes the frame to the port in full.
func (l *Link) Send(payload []byte) error {
	if len(payload) > l.maxPayload {
		return fmt.Errorf("payload of %d bytes with maximum %d: %w", len(payload), l.maxPayload, ErrPayloadTooLarge)
	}

	frame := slip.EncodeBytes(payload)
	for len(frame) > 0 {
		n, err := l.port.Write(frame)
		if err != nil {
			return fmt.Errorf("link write: %w", err)
		}
		frame = frame[n:]
	}
	return nil
}

// Receive reads from the port until a complete frame is decoded or
// the timeout elapses, and returns a copy of the payload.
//
// Codec errors mid-stream (malformed escape, oversize payload) drop
// the partial frame: the decoder is reset and the link keeps hunting
// for the next frame boundary. Dropped frames are counted, see
// Dropped. Zero-length frames are treated as idle delimiters, as in
// RFC 1055 receivers, and skipped; back-to-back END bytes therefore
// never surface as payloads.
func (l *Link) Receive(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 256)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		readTimeout := 100 * time.Millisecond
		if remaining < readTimeout {
			readTimeout = remaining
		}

		n, err := l.port.ReadWithTimeout(chunk, readTimeout)
		if err != nil && n == 0 {
			return nil, fmt.Errorf("link read: %w", err)
		}

		for i := 0; i < n; i++ {
			if err := l.dec.Insert(chunk[i]); err != nil {
				l.dropped++
				l.dec.Reset()
				continue
			}
			if l.dec.Completed() {
				if l.dec.Len() == 0 {
					// The END that closed the empty frame also opens
					// the next one, so stay synchronized instead of
					// falling back to presync.
					l.dec.Reset()
					l.dec.Insert(slip.End)
					continue
				}
				payload := make([]byte, l.dec.Len())
				copy(payload, l.dec.Bytes())
				l.dec.Reset()
				return payload, nil
			}
		}
	}
}

// Reset discards any partially accumulated frame.
func (l *Link) Reset() {
	l.dec.Reset()
}

// Dropped returns the number of frames discarded because of decode
// errors since the link was created.
func (l *Link) Dropped() int {
	return l.dropped
}
