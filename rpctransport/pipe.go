package rpctransport

import (
	"errors"
	"net"
)

// PipeChannel is a ByteChannel over an in-process net.Pipe, used for
// inter-goroutine RPC (the DESIGN NOTES "Unix pipes for a forked
// subprocess" idiom, adapted to Go's goroutine-based concurrency instead
// of a fork). It cannot reconnect once closed: there is no dial
// information to replay, exactly as a forked-subprocess pipe pair can't
// be re-opened after the peer exits.
type PipeChannel struct {
	name string
	conn net.Conn
}

// NewPipePair returns two connected PipeChannels, each the ByteChannel a
// client on either end of the pipe would use.
func NewPipePair(name string) (a, b *PipeChannel) {
	ca, cb := net.Pipe()
	return &PipeChannel{name: name, conn: ca}, &PipeChannel{name: name + "-peer", conn: cb}
}

func (c *PipeChannel) Read(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *PipeChannel) Write(p []byte) (int, error) { return c.conn.Write(p) }
func (c *PipeChannel) PeerName() string             { return c.name }

func (c *PipeChannel) Reconnect() error {
	return errors.New("rpctransport: pipe channels cannot reconnect")
}

func (c *PipeChannel) Disconnect() error {
	return c.conn.Close()
}

var _ ByteChannel = (*PipeChannel)(nil)
