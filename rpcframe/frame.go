// Package rpcframe extracts discrete messages from a byte stream and frames
// outbound ones, per spec section 4.2/6.2. Two wire framings are provided:
// Block (length-prefixed) and Serial (STX/ETX bracketed, optionally CRC32
// checked).
package rpcframe

import (
	"errors"
	"io"

	"github.com/shvgo/shv/chainpack"
)

// ErrReset is returned by NextMessage when the peer sent a RESET control
// byte (Serial framing only): any partial message is dropped and the framer
// is ready to read a fresh one.
var ErrReset = errors.New("rpcframe: peer requested reset")

// Framer reads inbound messages off a byte transport and frames outbound
// ones, matching spec section 4.2's next_message/msg_valid/begin_outbound/
// end_outbound contract.
type Framer interface {
	// NextMessage blocks until a complete frame is available and returns an
	// unpacker positioned at the message's first item.
	NextMessage() (*chainpack.Unpacker, error)

	// MsgValid reports whether the most recently returned message's framing
	// (length and, for Serial/CRC, its checksum) matched.
	MsgValid() bool

	// BeginOutbound takes the write lock and returns a writer that a caller
	// packs one message into.
	BeginOutbound() io.Writer

	// EndOutbound releases the write lock acquired by BeginOutbound. When
	// send is true the buffered message is framed and flushed to the
	// transport; when false it is discarded and no bytes become observable
	// to the peer.
	EndOutbound(send bool) error
}
