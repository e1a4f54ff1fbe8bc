package rpctransport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig builds a *tls.Config for the tcps/unixs schemes from the
// ca/key/cert URL options (spec section 6.3), mirroring the teacher's
// https package, which wraps a cert/key pair for net/http rather than
// hand-rolling certificate loading.
func TLSConfig(opts *ConnectOptions) (*tls.Config, error) {
	if opts.CertFile == "" && opts.KeyFile == "" && opts.CAFile == "" {
		return nil, nil
	}

	cfg := &tls.Config{ServerName: opts.Host}

	if opts.CertFile != "" || opts.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("rpctransport: load cert/key failed: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("rpctransport: read ca file failed: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("rpctransport: no certificates found in %v", opts.CAFile)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// Dial opens the transport opts describes and returns its ByteChannel.
func Dial(opts *ConnectOptions) (ByteChannel, error) {
	tlsCfg, err := TLSConfig(opts)
	if err != nil {
		return nil, err
	}

	switch opts.Scheme {
	case SchemeTCP:
		return NewTCP(fmt.Sprintf("%s:%d", opts.Host, opts.Port), opts.Timeout, nil)
	case SchemeTCPS:
		return NewTCP(fmt.Sprintf("%s:%d", opts.Host, opts.Port), opts.Timeout, tlsCfg)
	case SchemeUnix:
		return NewUnix(opts.Host, opts.Timeout, nil)
	case SchemeUnixS:
		return NewUnix(opts.Host, opts.Timeout, tlsCfg)
	case SchemeTTY:
		return NewTTY(opts.Host, opts.BaudRate)
	case SchemeCAN:
		// CAN bus sockets (SocketCAN) have no representation in any
		// example repo's dependency surface and no stdlib support;
		// nothing in this module can exercise a raw CAN frame socket,
		// so only URL parsing is supported for this scheme (see
		// DESIGN.md).
		return nil, fmt.Errorf("rpctransport: can transport is not implemented")
	default:
		return nil, fmt.Errorf("rpctransport: unsupported scheme %v", opts.Scheme)
	}
}
