// Package rpcclient implements the Client contract from spec section 4.3:
// a framer plus one trace callback for both directions, two timestamps,
// and a reset hook,
// atop the teacher's rtmp.Protocol shape of owning its reader/writer
// state behind a small set of named operations.
package rpcclient

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/cpon"
	"github.com/shvgo/shv/rpcframe"
	"github.com/shvgo/shv/rpcmsg"
	"github.com/shvgo/shv/rpctransport"
)

// ErrClosed is returned by NextMessage/Send once the client has been
// disconnected and not reconnected.
var ErrClosed = errors.New("rpcclient: closed")

// Tracer receives one already-rendered CP-text line per message, in
// either direction. It is a narrower concept than the ambient logger
// package: logger covers general lifecycle diagnostics (connect/reset/
// error), Tracer is the protocol-trace callback from spec section 3.7.
type Tracer func(direction Direction, line string)

// Direction distinguishes inbound from outbound trace lines.
type Direction uint8

const (
	Inbound Direction = iota
	Outbound
)

func (d Direction) String() string {
	if d == Inbound {
		return "<="
	}
	return "=>"
}

// Client owns one framer, one Tracer shared by both directions, and the
// bookkeeping spec
// section 3.7 assigns to a client: last-activity timestamps and a reset
// hook. Active outbound response-awaiters are owned by the handler
// pipeline's responses stage, not here (see rpchandler/stages).
type Client struct {
	framer  rpcframe.Framer
	channel rpctransport.ByteChannel

	Trace Tracer

	mu          sync.Mutex
	lastReceive time.Time
	lastSend    time.Time
	closed      bool
	msgValid    bool
}

// New builds a Client around a framer already wrapping channel (channel
// may be nil for framers not backed by a reconnectable ByteChannel, e.g.
// tests using an in-memory loopback).
func New(framer rpcframe.Framer, channel rpctransport.ByteChannel) *Client {
	return &Client{framer: framer, channel: channel}
}

// Connected reports whether the underlying byte channel is open. A
// client with no channel (direct framer ownership) is always considered
// connected until closed.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// NextMessage blocks until the next inbound message is framed, decodes
// its envelope, and returns it. Decode failures are reported as an error
// and also recorded for MsgValid; a framing failure other than a peer
// RESET marks the client closed and leaves MsgValid as it was.
func (c *Client) NextMessage() (*rpcmsg.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	unpacker, err := c.framer.NextMessage()
	if err != nil {
		if errors.Is(err, rpcframe.ErrReset) {
			return nil, err
		}
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		return nil, fmt.Errorf("rpcclient: next message: %w", err)
	}

	c.mu.Lock()
	c.lastReceive = time.Now()
	c.mu.Unlock()

	value, err := chainpack.UnpackValueFrom(unpacker)
	if err != nil {
		c.mu.Lock()
		c.msgValid = false
		c.mu.Unlock()
		return nil, fmt.Errorf("rpcclient: decode message: %w", err)
	}

	msg, err := rpcmsg.FromValue(value)
	if err != nil {
		c.mu.Lock()
		c.msgValid = false
		c.mu.Unlock()
		return nil, fmt.Errorf("rpcclient: decode envelope: %w", err)
	}

	c.mu.Lock()
	c.msgValid = c.framer.MsgValid()
	c.mu.Unlock()

	if c.Trace != nil {
		if line, err := renderCpon(value); err == nil {
			c.Trace(Inbound, line)
		}
	}

	return msg, nil
}

// MsgValid reports whether the most recently returned message's framing
// integrity check (length/CRC) and decode both succeeded.
func (c *Client) MsgValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgValid
}

// Send atomically frames one outbound message: it takes the framer's
// write lock, builds m's Value tree, packs it, and flushes. If packing
// fails the frame is dropped and never reaches the wire.
func (c *Client) Send(m *rpcmsg.Message) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	w := c.framer.BeginOutbound()
	value := m.ToValue()
	if _, err := chainpack.PackValue(w, value); err != nil {
		c.framer.EndOutbound(false)
		return fmt.Errorf("rpcclient: pack message: %w", err)
	}
	if err := c.framer.EndOutbound(true); err != nil {
		return fmt.Errorf("rpcclient: send message: %w", err)
	}

	c.mu.Lock()
	c.lastSend = time.Now()
	c.mu.Unlock()

	if c.Trace != nil {
		if line, err := renderCpon(value); err == nil {
			c.Trace(Outbound, line)
		}
	}
	return nil
}

// Reset re-establishes the byte channel, if one is attached, and clears
// the closed and MsgValid flags. The framer is not touched: bytes it has
// already buffered are kept, and no RESET frame is sent to the peer.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil {
		return fmt.Errorf("rpcclient: no reconnectable channel attached")
	}
	if err := c.channel.Reconnect(); err != nil {
		return fmt.Errorf("rpcclient: reset: %w", err)
	}
	c.closed = false
	c.msgValid = false
	return nil
}

// Disconnect closes the underlying channel, if any, and marks the client
// closed.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.channel == nil {
		return nil
	}
	return c.channel.Disconnect()
}

// MaxSleep returns the number of seconds that may elapse before a
// keep-alive ping is required to stay under idleSeconds, per spec
// section 4.3: a ping must be emitted before half the idle timeout
// elapses since the last send.
func (c *Client) MaxSleep(idleSeconds int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	half := idleSeconds / 2
	if c.lastSend.IsZero() {
		return half
	}
	elapsed := int(time.Since(c.lastSend).Seconds())
	remaining := half - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func renderCpon(v *chainpack.Value) (string, error) {
	var buf strings.Builder
	if _, err := cpon.PackValue(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
