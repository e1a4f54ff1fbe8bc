package rpcframe

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/shvgo/shv/chainpack"
)

// Serial framing control bytes, per spec section 6.2.
const (
	byteReset  = 0xA1
	byteSTX    = 0xA2
	byteETX    = 0xA3
	byteEscape = 0xAA
)

func escapeByte(b byte) (byte, bool) {
	switch b {
	case byteEscape, byteSTX, byteETX, byteReset:
		return (b & 0x0F) | 0x40, true
	default:
		return 0, false
	}
}

func unescapeByte(y byte) byte {
	return (y & 0x0F) | 0xA0
}

func writeEscaped(w io.Writer, b []byte) error {
	for _, c := range b {
		if esc, ok := escapeByte(c); ok {
			if _, err := w.Write([]byte{byteEscape, esc}); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Write([]byte{c}); err != nil {
			return err
		}
	}
	return nil
}

// SerialFramer implements Serial framing: messages bracketed by STX/ETX
// with byte-stuffing, optionally followed by a CRC32 of the unescaped
// payload (the SERIAL_CRC variant from rpcclient_stream.h).
type SerialFramer struct {
	r   *bufio.Reader
	w   io.Writer
	CRC bool

	mu    sync.Mutex
	out   bytes.Buffer
	valid bool
}

// NewSerialFramer wraps rw for Serial framing. When crc is true, every
// outbound frame carries a trailing CRC32 and every inbound frame is
// checked against one.
func NewSerialFramer(rw io.ReadWriter, crc bool) *SerialFramer {
	return &SerialFramer{r: bufio.NewReader(rw), w: rw, CRC: crc}
}

var _ Framer = (*SerialFramer)(nil)

func (f *SerialFramer) NextMessage() (*chainpack.Unpacker, error) {
	f.valid = false
	var payload []byte
	inFrame := false

	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return nil, err
		}

		switch b {
		case byteReset:
			return nil, ErrReset

		case byteSTX:
			payload = payload[:0]
			inFrame = true

		case byteETX:
			if !inFrame {
				continue
			}
			return f.finish(payload)

		case byteEscape:
			y, err := f.r.ReadByte()
			if err != nil {
				return nil, err
			}
			if inFrame {
				payload = append(payload, unescapeByte(y))
			}

		default:
			if inFrame {
				payload = append(payload, b)
			}
		}
	}
}

func (f *SerialFramer) finish(payload []byte) (*chainpack.Unpacker, error) {
	msg := payload
	if f.CRC {
		if len(payload) < 4 {
			f.valid = false
			return chainpack.NewUnpacker(bytes.NewReader(nil)), nil
		}
		split := len(payload) - 4
		msg = payload[:split]
		got := binary.BigEndian.Uint32(payload[split:])
		f.valid = got == crc32.ChecksumIEEE(msg)
	} else {
		f.valid = true
	}
	return chainpack.NewUnpacker(bytes.NewReader(msg)), nil
}

func (f *SerialFramer) MsgValid() bool {
	return f.valid
}

func (f *SerialFramer) BeginOutbound() io.Writer {
	f.mu.Lock()
	f.out.Reset()
	return &f.out
}

func (f *SerialFramer) EndOutbound(send bool) error {
	defer f.mu.Unlock()
	if !send {
		f.out.Reset()
		return nil
	}

	payload := f.out.Bytes()
	if f.CRC {
		sum := crc32.ChecksumIEEE(payload)
		framed := make([]byte, len(payload)+4)
		copy(framed, payload)
		binary.BigEndian.PutUint32(framed[len(payload):], sum)
		payload = framed
	}

	if _, err := f.w.Write([]byte{byteSTX}); err != nil {
		return err
	}
	if err := writeEscaped(f.w, payload); err != nil {
		return err
	}
	if _, err := f.w.Write([]byte{byteETX}); err != nil {
		return err
	}
	return nil
}
