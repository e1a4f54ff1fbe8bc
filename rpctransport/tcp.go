package rpctransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
)

// TCPChannel is a ByteChannel over a dialed net.Conn (plain or TLS-wrapped
// for the tcps scheme).
type TCPChannel struct {
	addr      string
	timeout   time.Duration
	tlsConfig *tls.Config

	conn net.Conn
}

// NewTCP dials addr ("host:port"), wrapping the connection in TLS when
// tlsConfig is non-nil (the tcps scheme). The channel carries raw bytes
// and applies no framing of its own.
func NewTCP(addr string, timeout time.Duration, tlsConfig *tls.Config) (*TCPChannel, error) {
	c := &TCPChannel{addr: addr, timeout: timeout, tlsConfig: tlsConfig}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *TCPChannel) dial() error {
	ctx := context.Background()
	var cancel context.CancelFunc
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	g, gctx := errgroup.WithContext(ctx)

	var conn net.Conn
	g.Go(func() error {
		raw, err := dialer.DialContext(gctx, "tcp", c.addr)
		if err != nil {
			return err
		}
		if c.tlsConfig != nil {
			tlsConn := tls.Client(raw, c.tlsConfig)
			if err := tlsConn.HandshakeContext(gctx); err != nil {
				raw.Close()
				return fmt.Errorf("rpctransport: tls handshake with %v failed: %w", c.addr, err)
			}
			conn = tlsConn
		} else {
			conn = raw
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rpctransport: dial %v failed: %w", c.addr, err)
	}

	c.conn = conn
	return nil
}

func (c *TCPChannel) Read(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *TCPChannel) Write(p []byte) (int, error) { return c.conn.Write(p) }
func (c *TCPChannel) PeerName() string             { return c.addr }

func (c *TCPChannel) Reconnect() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return c.dial()
}

func (c *TCPChannel) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

var _ ByteChannel = (*TCPChannel)(nil)

// Flush toggles TCP_NODELAY-style immediate send, used as rpcframe's
// Block-framing flush hook (spec section 4.2).
func (c *TCPChannel) Flush() {
	if tc, ok := c.conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
}
