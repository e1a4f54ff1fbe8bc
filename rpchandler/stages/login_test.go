package stages

import (
	"bytes"
	"testing"
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpcclient"
	"github.com/shvgo/shv/rpcframe"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpclogin"
	"github.com/shvgo/shv/rpcmsg"
	"github.com/stretchr/testify/require"
)

type loopback struct{ buf *bytes.Buffer }

func (l *loopback) Read(p []byte) (int, error)  { return l.buf.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.buf.Write(p) }

// TestLoginHandshake implements spec.md's "Hello/Login round-trip"
// scenario: a mock broker answers hello with {nonce:"abcd"} and expects
// the SHA1-hashed password on login.
func TestLoginHandshake(t *testing.T) {
	var wire bytes.Buffer
	clientFramer := rpcframe.NewBlockFramer(&loopback{buf: &wire})
	client := rpcclient.New(clientFramer, nil)

	ids := rpchandler.NewIDAllocator()
	creds := rpclogin.Credentials{User: "u", Password: "p", Type: rpclogin.TypeSHA1}
	login := NewLogin(creds, false, ids)

	loggedIn := false
	login.OnLoggedIn = func() { loggedIn = true }

	h := rpchandler.New(client, login)

	// Drive Idle once: sends hello (request id 1).
	_, keepGoing := h.RunIdle()
	require.True(t, keepGoing)

	helloReq := readWireMessage(t, &wire)
	require.Equal(t, rpcmsg.TypeRequest, helloReq.Type)
	require.Equal(t, "hello", helloReq.Method)
	require.EqualValues(t, 1, helloReq.RequestID)

	// Mock broker answers hello.
	writeWireMessage(t, &wire, rpcmsg.NewResponse(helloReq, cp.Map(map[string]*cp.Value{
		"nonce": cp.Str("abcd"),
	})))
	keepGoing, err := h.HandleNext()
	require.NoError(t, err)
	require.True(t, keepGoing)
	require.Equal(t, HaveNonce, login.State())

	// Drive Idle again: sends login (request id 2) with the hashed password.
	_, keepGoing = h.RunIdle()
	require.True(t, keepGoing)

	loginReq := readWireMessage(t, &wire)
	require.Equal(t, "login", loginReq.Method)
	require.EqualValues(t, 2, loginReq.RequestID)

	wantPassword := rpclogin.HashPassword("abcd", "p")
	gotPassword := loginReq.Param.Map["login"].Map["password"].Str
	require.Equal(t, wantPassword, gotPassword)

	// Mock broker accepts.
	writeWireMessage(t, &wire, rpcmsg.NewResponse(loginReq, cp.Map(nil)))
	keepGoing, err = h.HandleNext()
	require.NoError(t, err)
	require.True(t, keepGoing)
	require.True(t, login.LoggedIn())
	require.True(t, loggedIn)
}

// TestLoginPingCadence implements spec.md's "Ping cadence" scenario:
// with idle timeout 180s, max_sleep/ping fires at half that.
func TestLoginPingCadence(t *testing.T) {
	var wire bytes.Buffer
	clientFramer := rpcframe.NewBlockFramer(&loopback{buf: &wire})
	client := rpcclient.New(clientFramer, nil)

	ids := rpchandler.NewIDAllocator()
	login := NewLogin(rpclogin.Credentials{User: "u", Password: "p", Type: rpclogin.TypeSHA1}, false, ids)
	login.state = LoggedIn
	login.idleTimeout = 180

	base := time.Now()
	now = func() time.Time { return base }
	defer func() { now = time.Now }()
	login.lastSend = base

	h := rpchandler.New(client, login)

	ms, keepGoing := h.RunIdle()
	require.True(t, keepGoing)
	require.EqualValues(t, 90*1000, ms)
	require.Equal(t, 0, wire.Len())

	now = func() time.Time { return base.Add(90 * time.Second) }
	_, keepGoing = h.RunIdle()
	require.True(t, keepGoing)

	ping := readWireMessage(t, &wire)
	require.Equal(t, ".app", ping.ShvPath)
	require.Equal(t, "ping", ping.Method)
	require.EqualValues(t, 4, ping.RequestID)
}

func readWireMessage(t *testing.T, wire *bytes.Buffer) *rpcmsg.Message {
	t.Helper()
	framer := rpcframe.NewBlockFramer(&loopback{buf: wire})
	c := rpcclient.New(framer, nil)
	msg, err := c.NextMessage()
	require.NoError(t, err)
	return msg
}

func writeWireMessage(t *testing.T, wire *bytes.Buffer, msg *rpcmsg.Message) {
	t.Helper()
	framer := rpcframe.NewBlockFramer(&loopback{buf: wire})
	c := rpcclient.New(framer, nil)
	require.NoError(t, c.Send(msg))
}
