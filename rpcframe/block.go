package rpcframe

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/shvgo/shv/chainpack"
)

// valueFollows is the single byte written after the length prefix in Block
// framing, per spec section 6.2.
const valueFollows = 0x01

// BlockFramer implements Block framing: each message is
// <uvarint length><0x01><message bytes>, where length counts the message
// bytes alone (not the marker byte). A flush hook, when set, is invoked
// after every outbound frame is written — the teacher's equivalent is
// forcing TCP_NODELAY-style immediate delivery on small writes.
type BlockFramer struct {
	r     *bufio.Reader
	w     io.Writer
	Flush func()

	mu    sync.Mutex
	out   bytes.Buffer
	valid bool
}

// NewBlockFramer wraps rw for Block framing.
func NewBlockFramer(rw io.ReadWriter) *BlockFramer {
	return &BlockFramer{r: bufio.NewReader(rw), w: rw}
}

var _ Framer = (*BlockFramer)(nil)

func (f *BlockFramer) NextMessage() (*chainpack.Unpacker, error) {
	length, _, err := chainpack.GetUvarint(f.r)
	if err != nil {
		f.valid = false
		return nil, err
	}
	marker, err := f.r.ReadByte()
	if err != nil {
		f.valid = false
		return nil, err
	}
	if marker != valueFollows {
		f.valid = false
		return nil, fmt.Errorf("rpcframe: block frame missing 0x01 marker, got %#x", marker)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		f.valid = false
		return nil, err
	}

	f.valid = true
	return chainpack.NewUnpacker(bytes.NewReader(buf)), nil
}

func (f *BlockFramer) MsgValid() bool {
	return f.valid
}

func (f *BlockFramer) BeginOutbound() io.Writer {
	f.mu.Lock()
	f.out.Reset()
	return &f.out
}

func (f *BlockFramer) EndOutbound(send bool) error {
	defer f.mu.Unlock()
	if !send {
		f.out.Reset()
		return nil
	}

	var lenBuf [10]byte
	n := chainpack.PutUvarint(lenBuf[:], uint64(f.out.Len()))
	if _, err := f.w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := f.w.Write([]byte{valueFollows}); err != nil {
		return err
	}
	if _, err := f.w.Write(f.out.Bytes()); err != nil {
		return err
	}
	if f.Flush != nil {
		f.Flush()
	}
	return nil
}
