package link

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/bigbag/slipwire/internal/slip"
)

// fakePort feeds scripted inbound bytes in fixed-size chunks and
// records everything written to it.
type fakePort struct {
	inbound   []byte
	chunkSize int
	written   bytes.Buffer
}

func (p *fakePort) Read(buf []byte) (int, error) {
	return p.ReadWithTimeout(buf, 0)
}

func (p *fakePort) ReadWithTimeout(buf []byte, timeout time.Duration) (int, error) {
	if len(p.inbound) == 0 {
		// Timed-out read: no data, no error, like a serial port with
		// VTIME-style timeouts.
		return 0, nil
	}
	n := len(buf)
	if p.chunkSize > 0 && n > p.chunkSize {
		n = p.chunkSize
	}
	if n > len(p.inbound) {
		n = len(p.inbound)
	}
	copy(buf, p.inbound[:n])
	p.inbound = p.inbound[n:]
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	return p.written.Write(data)
}

func TestSend_WritesFrame(t *testing.T) {
	port := &fakePort{}
	l := New(port)

	if err := l.Send([]byte{0x01, slip.End, 0x03}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	expected := []byte{slip.End, 0x01, slip.Esc, slip.EscEnd, 0x03, slip.End}
	if !bytes.Equal(port.written.Bytes(), expected) {
		t.Errorf("wrote %v, want %v", port.written.Bytes(), expected)
	}
}

func TestSend_PayloadTooLarge(t *testing.T) {
	l := New(&fakePort{}, WithMaxPayload(4))

	err := l.Send([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Send = %v, want ErrPayloadTooLarge", err)
	}
}

func TestReceive_SingleFrame(t *testing.T) {
	port := &fakePort{inbound: slip.EncodeBytes([]byte{0x01, 0x02, 0x03})}
	l := New(port)

	payload, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Receive = %v, want [1 2 3]", payload)
	}
}

func TestReceive_FragmentedReads(t *testing.T) {
	// One byte per read, the decoder reassembles across reads.
	port := &fakePort{
		inbound:   slip.EncodeBytes([]byte{0x01, slip.End, 0x03}),
		chunkSize: 1,
	}
	l := New(port)

	payload, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x01, slip.End, 0x03}) {
		t.Errorf("Receive = %v, want [1 END 3]", payload)
	}
}

func TestReceive_MultipleFrames(t *testing.T) {
	stream := slip.EncodeBytes([]byte{0x01})
	stream = slip.AppendFrame(stream, []byte{0x02, 0x03})
	port := &fakePort{inbound: stream}
	l := New(port)

	first, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("first Receive failed: %v", err)
	}
	if !bytes.Equal(first, []byte{0x01}) {
		t.Errorf("first frame = %v, want [1]", first)
	}

	second, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("second Receive failed: %v", err)
	}
	if !bytes.Equal(second, []byte{0x02, 0x03}) {
		t.Errorf("second frame = %v, want [2 3]", second)
	}
}

func TestReceive_LeadingGarbage(t *testing.T) {
	stream := append([]byte{0xAA, 0xBB}, slip.EncodeBytes([]byte{0x01})...)
	port := &fakePort{inbound: stream}
	l := New(port)

	payload, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x01}) {
		t.Errorf("Receive = %v, want [1]", payload)
	}
}

func TestReceive_ResyncsAfterBadEscape(t *testing.T) {
	stream := []byte{slip.End, slip.Esc, 0x00} // malformed frame
	stream = slip.AppendFrame(stream, []byte{0x07})
	port := &fakePort{inbound: stream}
	l := New(port)

	payload, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x07}) {
		t.Errorf("Receive = %v, want [7]", payload)
	}
	if l.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", l.Dropped())
	}
}

func TestReceive_DropsOversizeFrame(t *testing.T) {
	stream := slip.EncodeBytes([]byte{0x01, 0x02, 0x03, 0x04})
	stream = slip.AppendFrame(stream, []byte{0x05})
	port := &fakePort{inbound: stream}
	l := New(port, WithMaxPayload(2))

	payload, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x05}) {
		t.Errorf("Receive = %v, want [5]", payload)
	}
	if l.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", l.Dropped())
	}
}

func TestReceive_Timeout(t *testing.T) {
	l := New(&fakePort{})

	_, err := l.Receive(10 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Receive on silent port = %v, want ErrTimeout", err)
	}
}

func TestReceive_SkipsEmptyFrames(t *testing.T) {
	// Back-to-back END bytes are idle delimiters, not payloads.
	stream := append([]byte{slip.End, slip.End, slip.End}, slip.EncodeBytes([]byte{0x09})...)
	port := &fakePort{inbound: stream}
	l := New(port)

	payload, err := l.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(payload, []byte{0x09}) {
		t.Errorf("Receive = %v, want [9]", payload)
	}
	if l.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", l.Dropped())
	}
}
