// Package rpclogin implements the credential math of the SHV hello/login
// handshake (nonce hashing and the login parameter shape), factored out
// of the stateful login stage per spec section 4.4.4 / original_source's
// include/shv/rpclogin.h: the stateful side (retries, timeouts) lives in
// rpchandler/stages, this package is pure and directly testable.
package rpclogin

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	cp "github.com/shvgo/shv/chainpack"
)

// MaxNonceLen is the maximum length of a nonce string issued by a
// broker's hello response, per SHV_NONCE_MAXLEN.
const MaxNonceLen = 32

// DefaultIdleTimeout is the server's assumed idle disconnect timeout when
// the caller doesn't request one explicitly, per SHV_IDLE_TIMEOUT_DEFAULT.
const DefaultIdleTimeout = 180

// Type selects how the password is carried to the server.
type Type uint8

const (
	// TypePlain sends the password as-is; only acceptable over a
	// transport trusted not to disclose it (e.g. a TLS/tcps connection).
	TypePlain Type = iota
	// TypeSHA1 sends SHA1(nonce || SHA1Hex(password)) instead of the
	// password itself.
	TypeSHA1
)

func (t Type) String() string {
	if t == TypePlain {
		return "PLAIN"
	}
	return "SHA1"
}

// SHA1Hex returns the lowercase hex SHA1 digest of s, the form a caller
// provides when it already holds a pre-hashed credential rather than a
// plaintext password.
func SHA1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashPassword computes the SHA1-login wire password:
// lowercase_hex(SHA1(nonce + SHA1Hex(password))), per spec section 8
// scenario 1. Pass an already SHA1-hashed credential in password if the
// caller only holds the hash (never the plaintext).
func HashPassword(nonce, password string) string {
	inner := SHA1Hex(password)
	sum := sha1.Sum([]byte(nonce + inner))
	return hex.EncodeToString(sum[:])
}

// Credentials describes one login attempt.
type Credentials struct {
	User     string
	Password string
	Type     Type

	DeviceID    string
	DeviceMount string

	// IdleTimeout is the requested idleWatchDogTimeOut in seconds, or 0
	// to let the server use its own default.
	IdleTimeout int
}

// EffectivePassword returns the value that belongs on the wire for the
// login map's "password" field, applying SHA1 hashing against nonce when
// c.Type is TypeSHA1. trusted says whether the transport is considered
// safe to carry a PLAIN password (an untrusted transport silently
// elevates PLAIN to SHA1, per rpclogin_pack's trusted parameter).
func (c Credentials) EffectivePassword(nonce string, trusted bool) (value string, loginType Type) {
	if c.Type == TypePlain && trusted {
		return c.Password, TypePlain
	}
	return HashPassword(nonce, c.Password), TypeSHA1
}

// ToValue builds the login REQUEST parameter map
// {login: {user, password, type}, options: {device: {deviceId,
// mountPoint}, idleWatchDogTimeOut}}, per spec section 4.4.4.
func (c Credentials) ToValue(nonce string, trusted bool) *cp.Value {
	password, loginType := c.EffectivePassword(nonce, trusted)

	login := map[string]*cp.Value{
		"user":     cp.Str(c.User),
		"password": cp.Str(password),
		"type":     cp.Str(loginType.String()),
	}

	options := map[string]*cp.Value{}
	if c.DeviceID != "" || c.DeviceMount != "" {
		device := map[string]*cp.Value{}
		if c.DeviceID != "" {
			device["deviceId"] = cp.Str(c.DeviceID)
		}
		if c.DeviceMount != "" {
			device["mountPoint"] = cp.Str(c.DeviceMount)
		}
		options["device"] = cp.Map(device)
	}
	if c.IdleTimeout > 0 {
		options["idleWatchDogTimeOut"] = cp.Int(int64(c.IdleTimeout))
	}

	return cp.Map(map[string]*cp.Value{
		"login":   cp.Map(login),
		"options": cp.Map(options),
	})
}

// NonceFromHello extracts the nonce string from a hello RESPONSE's result
// map, validating its length against MaxNonceLen.
func NonceFromHello(result *cp.Value) (string, error) {
	if result == nil || result.Kind != cp.KindMap {
		return "", fmt.Errorf("rpclogin: hello response must be a map")
	}
	nonce, ok := result.Map["nonce"]
	if !ok || nonce.Kind != cp.KindString {
		return "", fmt.Errorf("rpclogin: hello response missing string nonce")
	}
	if len(nonce.Str) > MaxNonceLen {
		return "", fmt.Errorf("rpclogin: nonce exceeds %d characters", MaxNonceLen)
	}
	return nonce.Str, nil
}

// ValidatePassword reports whether login's submitted password matches
// the broker's reference password under type (the form the broker
// expects, independent of which Type the client claimed).
func ValidatePassword(submitted, reference, nonce string, typ Type) bool {
	if typ == TypePlain {
		return submitted == reference
	}
	return submitted == HashPassword(nonce, reference)
}
