// Package slip implements SLIP framing (RFC 1055): payloads are
// delimited by END bytes, with END and ESC occurrences inside the
// payload escaped as two-byte sequences.
//
// The codec works against fixed-capacity buffers and never allocates
// on the encode or decode path; when a frame does not fit, the
// operation fails instead of growing storage.
package slip

import (
	"errors"

	"github.com/bigbag/slipwire/internal/buffer"
)

const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

var (
	// ErrInvalidEscape is returned when the byte following Esc is
	// neither EscEnd nor EscEsc.
	ErrInvalidEscape = errors.New("slip: invalid escape sequence")

	// ErrNotReset is returned when bytes are fed to a decoder that
	// holds a completed frame. Call Reset before the next frame.
	ErrNotReset = errors.New("slip: decoder holds a completed frame, reset required")
)

// Encode rewrites buf in place from a raw payload into a SLIP frame:
// a leading END, the payload with END/ESC occurrences escaped, and a
// trailing END.
//
// The rewrite is not atomic. If buf runs out of capacity partway
// through, it is left in a partially transformed state; callers must
// discard it rather than retry.
func Encode(buf *buffer.Buffer) error {
	if err := buf.Insert(0, End); err != nil {
		return err
	}

	for index := 1; index < buf.Len(); {
		switch buf.At(index) {
		case End:
			if err := buf.Insert(index, Esc); err != nil {
				return err
			}
			if err := buf.Write(index+1, EscEnd); err != nil {
				return err
			}
			index += 2
		case Esc:
			if err := buf.Insert(index, Esc); err != nil {
				return err
			}
			if err := buf.Write(index+1, EscEsc); err != nil {
				return err
			}
			index += 2
		default:
			index++
		}
	}

	return buf.Push(End)
}

// EncodeBytes is the allocating variant of Encode: it leaves data
// untouched and returns a freshly built frame.
func EncodeBytes(data []byte) []byte {
	return AppendFrame(make([]byte, 0, len(data)+10), data)
}

// AppendFrame appends the SLIP frame for data to dst and returns the
// extended slice.
func AppendFrame(dst, data []byte) []byte {
	dst = append(dst, End)

	for _, b := range data {
		switch b {
		case End:
			dst = append(dst, Esc, EscEnd)
		case Esc:
			dst = append(dst, Esc, EscEsc)
		default:
			dst = append(dst, b)
		}
	}

	return append(dst, End)
}
