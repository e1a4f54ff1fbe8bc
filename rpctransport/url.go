package rpctransport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Scheme identifies which concrete transport and framing a URL selects.
type Scheme string

const (
	SchemeTCP   Scheme = "tcp"
	SchemeTCPS  Scheme = "tcps" // TCP, TLS-wrapped by Dial when ca/key/cert are set; selects no framing
	SchemeUnix  Scheme = "unix"
	SchemeUnixS Scheme = "unixs"
	SchemeTTY   Scheme = "tty"
	SchemeCAN   Scheme = "can"
)

// ConnectOptions is a parsed connection URL, per spec section 6.3:
// scheme://[user[:password]@]host[:port][?options].
type ConnectOptions struct {
	Scheme Scheme
	User   string
	// Password is the plaintext credential carried in the URL itself, if
	// any; separate from the "password" query option below (spec.md
	// allows either form — the query option takes precedence so a URL
	// can carry a userinfo-free login alongside an explicit option).
	Password string
	Host     string
	Port     int

	// DevID and DevMount feed the login "options.device" map.
	DevID    string
	DevMount string

	Timeout  time.Duration
	BaudRate int // tty only
	LocalAddress string // can only

	CAFile   string
	KeyFile  string
	CertFile string
}

// ParseURL parses a connection string into its scheme, address, and
// option set. It rejects any scheme outside the set spec section 6.3
// names.
func ParseURL(raw string) (*ConnectOptions, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("rpctransport: invalid url: %w", err)
	}

	scheme := Scheme(strings.ToLower(u.Scheme))
	switch scheme {
	case SchemeTCP, SchemeTCPS, SchemeUnix, SchemeUnixS, SchemeTTY, SchemeCAN:
	default:
		return nil, fmt.Errorf("rpctransport: unrecognized scheme %q", u.Scheme)
	}

	opts := &ConnectOptions{Scheme: scheme, Host: u.Hostname()}
	if u.User != nil {
		opts.User = u.User.Username()
		opts.Password, _ = u.User.Password()
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("rpctransport: invalid port %q: %w", p, err)
		}
		opts.Port = port
	}
	// For unix/tty/can, the "host" slot in the URL carries the socket
	// path or device node, which net/url may instead put in Opaque or
	// Path depending on how many slashes follow the scheme.
	if scheme == SchemeUnix || scheme == SchemeUnixS || scheme == SchemeTTY || scheme == SchemeCAN {
		if u.Path != "" {
			opts.Host = u.Path
		} else if u.Opaque != "" {
			opts.Host = u.Opaque
		}
	}

	q := u.Query()
	if v := q.Get("password"); v != "" {
		opts.Password = v
	}
	opts.DevID = q.Get("devid")
	opts.DevMount = q.Get("devmount")
	opts.CAFile = q.Get("ca")
	opts.KeyFile = q.Get("key")
	opts.CertFile = q.Get("cert")
	opts.LocalAddress = q.Get("local_address")

	if v := q.Get("timeout"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("rpctransport: invalid timeout %q: %w", v, err)
		}
		opts.Timeout = time.Duration(secs) * time.Second
	}
	if v := q.Get("baudrate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("rpctransport: invalid baudrate %q: %w", v, err)
		}
		opts.BaudRate = rate
	}

	return opts, nil
}
