package rpctransport

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// UnixChannel is a ByteChannel over a Unix domain socket (the unix and
// unixs -- TLS-wrapped -- schemes).
type UnixChannel struct {
	path      string
	timeout   time.Duration
	tlsConfig *tls.Config

	conn net.Conn
}

// NewUnix dials the Unix domain socket at path.
func NewUnix(path string, timeout time.Duration, tlsConfig *tls.Config) (*UnixChannel, error) {
	c := &UnixChannel{path: path, timeout: timeout, tlsConfig: tlsConfig}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *UnixChannel) dial() error {
	dialer := &net.Dialer{Timeout: c.timeout}
	raw, err := dialer.Dial("unix", c.path)
	if err != nil {
		return fmt.Errorf("rpctransport: dial unix %v failed: %w", c.path, err)
	}
	if c.tlsConfig != nil {
		tlsConn := tls.Client(raw, c.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			raw.Close()
			return fmt.Errorf("rpctransport: tls handshake on %v failed: %w", c.path, err)
		}
		c.conn = tlsConn
	} else {
		c.conn = raw
	}
	return nil
}

func (c *UnixChannel) Read(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *UnixChannel) Write(p []byte) (int, error) { return c.conn.Write(p) }
func (c *UnixChannel) PeerName() string             { return c.path }

func (c *UnixChannel) Reconnect() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return c.dial()
}

func (c *UnixChannel) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

var _ ByteChannel = (*UnixChannel)(nil)
