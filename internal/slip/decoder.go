package slip

import "github.com/bigbag/slipwire/internal/buffer"

// Decoder state machine positions.
type state int

const (
	// stateStart: no frame boundary seen yet. Bytes before the first
	// END are presync garbage and are discarded.
	stateStart state = iota
	// stateAppend: inside a frame, accumulating payload bytes.
	stateAppend
	// stateEscape: last byte was ESC, waiting for the escape code.
	stateEscape
	// stateEnd: a full frame has been decoded. Terminal until Reset.
	stateEnd
)

// Decoder reconstructs SLIP payloads from a raw byte stream, one byte
// at a time. It owns a fixed-capacity buffer that holds at most one
// decoded payload; after each completed frame the caller must Reset
// before feeding more bytes.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	state state
	buf   *buffer.Buffer
}

// NewDecoder returns a decoder that accepts payloads up to maxLength
// bytes.
func NewDecoder(maxLength int) *Decoder {
	return &Decoder{buf: buffer.New(maxLength)}
}

// Insert feeds one byte from the wire into the decoder.
//
// Errors leave the decoder in whatever state the partial transition
// produced: buffer.ErrCapacityExceeded when the payload outgrows the
// buffer, ErrInvalidEscape on a malformed escape sequence, ErrNotReset
// when a completed frame has not been cleared. After any error the
// caller should Reset before continuing.
func (d *Decoder) Insert(value byte) error {
	switch d.state {
	case stateStart:
		if value == End {
			d.state = stateAppend
		}
		return nil

	case stateAppend:
		switch value {
		case End:
			d.state = stateEnd
			return nil
		case Esc:
			d.state = stateEscape
			return nil
		default:
			return d.buf.Push(value)
		}

	case stateEscape:
		d.state = stateAppend
		switch value {
		case EscEnd:
			return d.buf.Push(End)
		case EscEsc:
			return d.buf.Push(Esc)
		default:
			return ErrInvalidEscape
		}

	default: // stateEnd
		return ErrNotReset
	}
}

// Completed reports whether a full payload is available.
func (d *Decoder) Completed() bool {
	return d.state == stateEnd
}

// Bytes returns the accumulated payload. The content is only
// meaningful once Completed reports true; before that it is a partial
// prefix. The slice aliases the decoder's buffer and is invalidated
// by Reset.
func (d *Decoder) Bytes() []byte {
	return d.buf.Bytes()
}

// Len returns the number of payload bytes accumulated so far.
func (d *Decoder) Len() int {
	return d.buf.Len()
}

// MaxLength returns the payload capacity.
func (d *Decoder) MaxLength() int {
	return d.buf.Cap()
}

// Reset discards any accumulated payload and returns the decoder to
// its initial presync state.
func (d *Decoder) Reset() {
	d.state = stateStart
	d.buf.Clear()
}
