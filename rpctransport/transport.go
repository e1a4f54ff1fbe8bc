// Package rpctransport abstracts the byte channel a client's framer runs
// over (TCP, Unix domain socket, TTY, in-process pipe) behind one
// interface, and parses the connection URL grammar from spec section 6.3.
package rpctransport

import (
	"io"
)

// ByteChannel is the "inheritance-like transport variations" interface
// from the design notes: read/write plus the handful of lifecycle
// operations every concrete transport needs to support reconnect and
// peer identification.
type ByteChannel interface {
	io.Reader
	io.Writer

	// PeerName identifies the remote end for logging (host:port, socket
	// path, device node...).
	PeerName() string

	// Reconnect tears down and re-establishes the underlying connection,
	// for transports that support it (TCP/Unix/TTY). Transports that
	// cannot reconnect (an in-process pipe) return an error.
	Reconnect() error

	// Disconnect closes the channel. A subsequent Reconnect may succeed.
	Disconnect() error
}
