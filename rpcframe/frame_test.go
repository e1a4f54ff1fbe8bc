package rpcframe

import (
	"bytes"
	"hash/crc32"
	"testing"

	"github.com/shvgo/shv/chainpack"
)

func TestCRC32Vectors(t *testing.T) {
	if got := crc32.ChecksumIEEE(nil); got != 0 {
		t.Errorf("crc32(\"\") = %#x, want 0", got)
	}
	if got := crc32.ChecksumIEEE([]byte("123456789")); got != 0xCBF43926 {
		t.Errorf("crc32(\"123456789\") = %#x, want 0xCBF43926", got)
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	for _, b := range []byte{byteReset, byteSTX, byteETX, byteEscape} {
		esc, ok := escapeByte(b)
		if !ok {
			t.Fatalf("byte %#x should require escaping", b)
		}
		if got := unescapeByte(esc); got != b {
			t.Errorf("unescapeByte(escapeByte(%#x)) = %#x, want %#x", b, got, b)
		}
	}
	if _, ok := escapeByte(0x41); ok {
		t.Error("ordinary byte should not require escaping")
	}
}

func packInt(t *testing.T, w *bytes.Buffer, v int64) {
	t.Helper()
	p := chainpack.NewPacker(w)
	if _, err := p.PackItem(&chainpack.Item{Kind: chainpack.KindInt, Int: v}); err != nil {
		t.Fatalf("PackItem: %v", err)
	}
}

func TestBlockFramerRoundTrip(t *testing.T) {
	var wire bytes.Buffer
	framer := NewBlockFramer(&loopback{buf: &wire})

	flushed := false
	framer.Flush = func() { flushed = true }

	w := framer.BeginOutbound().(*bytes.Buffer)
	packInt(t, w, 42)
	if err := framer.EndOutbound(true); err != nil {
		t.Fatalf("EndOutbound: %v", err)
	}
	if !flushed {
		t.Error("expected Flush hook to run on send")
	}

	unpacker, err := framer.NextMessage()
	if err != nil {
		t.Fatalf("NextMessage: %v", err)
	}
	if !framer.MsgValid() {
		t.Error("expected MsgValid after a clean frame")
	}
	item, err := unpacker.NextItem()
	if err != nil {
		t.Fatalf("NextItem: %v", err)
	}
	if item.Kind != chainpack.KindInt || item.Int != 42 {
		t.Errorf("got %+v, want Int 42", item)
	}
}

func TestBlockFramerDropDiscardsBuffer(t *testing.T) {
	var wire bytes.Buffer
	framer := NewBlockFramer(&loopback{buf: &wire})

	w := framer.BeginOutbound().(*bytes.Buffer)
	packInt(t, w, 7)
	if err := framer.EndOutbound(false); err != nil {
		t.Fatalf("EndOutbound: %v", err)
	}
	if wire.Len() != 0 {
		t.Errorf("dropped outbound frame must leave no bytes on the wire, got %d", wire.Len())
	}
}

func TestSerialFramerRoundTrip(t *testing.T) {
	for _, crc := range []bool{false, true} {
		var wire bytes.Buffer
		framer := NewSerialFramer(&loopback{buf: &wire}, crc)

		w := framer.BeginOutbound().(*bytes.Buffer)
		packInt(t, w, 1234)
		if err := framer.EndOutbound(true); err != nil {
			t.Fatalf("EndOutbound: %v", err)
		}

		unpacker, err := framer.NextMessage()
		if err != nil {
			t.Fatalf("NextMessage (crc=%v): %v", crc, err)
		}
		if !framer.MsgValid() {
			t.Errorf("expected MsgValid (crc=%v)", crc)
		}
		item, err := unpacker.NextItem()
		if err != nil {
			t.Fatalf("NextItem: %v", err)
		}
		if item.Kind != chainpack.KindInt || item.Int != 1234 {
			t.Errorf("got %+v, want Int 1234", item)
		}
	}
}

func TestSerialFramerEscapesControlBytesInPayload(t *testing.T) {
	var wire bytes.Buffer
	framer := NewSerialFramer(&loopback{buf: &wire}, false)

	w := framer.BeginOutbound().(*bytes.Buffer)
	// A blob whose bytes collide with every control byte.
	blob := []byte{byteSTX, byteETX, byteReset, byteEscape, 0x00}
	p := chainpack.NewPacker(w)
	item := chainpack.Item{
		Kind:  chainpack.KindBlob,
		Chunk: chainpack.Chunk{Data: blob, First: true, Last: true},
	}
	if _, err := p.PackItem(&item); err != nil {
		t.Fatalf("PackItem: %v", err)
	}
	if err := framer.EndOutbound(true); err != nil {
		t.Fatalf("EndOutbound: %v", err)
	}

	raw := wire.Bytes()
	if raw[0] != byteSTX || raw[len(raw)-1] != byteETX {
		t.Fatalf("frame not bracketed by STX/ETX: % x", raw)
	}

	unpacker, err := framer.NextMessage()
	if err != nil {
		t.Fatalf("NextMessage: %v", err)
	}
	if !framer.MsgValid() {
		t.Error("expected MsgValid")
	}
	got, err := unpacker.NextItem()
	if err != nil {
		t.Fatalf("NextItem: %v", err)
	}
	if !bytes.Equal(got.Chunk.Data, blob) {
		t.Errorf("got blob %x, want %x", got.Chunk.Data, blob)
	}
}

func TestSerialFramerDetectsCorruption(t *testing.T) {
	var wire bytes.Buffer
	framer := NewSerialFramer(&loopback{buf: &wire}, true)

	w := framer.BeginOutbound().(*bytes.Buffer)
	packInt(t, w, 99)
	if err := framer.EndOutbound(true); err != nil {
		t.Fatalf("EndOutbound: %v", err)
	}

	raw := wire.Bytes()
	// Flip a bit in the middle of the frame to corrupt the payload.
	for i := len(raw) / 2; i < len(raw); i++ {
		if raw[i] != byteSTX && raw[i] != byteETX && raw[i] != byteEscape {
			raw[i] ^= 0xFF
			break
		}
	}

	if _, err := framer.NextMessage(); err != nil {
		t.Fatalf("NextMessage: %v", err)
	}
	if framer.MsgValid() {
		t.Error("expected MsgValid to be false after corrupting the frame")
	}
}

func TestSerialFramerReset(t *testing.T) {
	var wire bytes.Buffer
	wire.Write([]byte{byteSTX, 0x01, byteReset})
	framer := NewSerialFramer(&loopback{buf: &wire}, false)

	if _, err := framer.NextMessage(); err != ErrReset {
		t.Errorf("NextMessage = %v, want ErrReset", err)
	}
}

// loopback adapts a *bytes.Buffer into an io.ReadWriter for framer tests:
// reads and writes share one buffer, as if looped back to itself.
type loopback struct {
	buf *bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return l.buf.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.buf.Write(p) }
