package stages

import (
	"bytes"
	"testing"

	"github.com/shvgo/shv/rpcclient"
	"github.com/shvgo/shv/rpcframe"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcmsg"
	"github.com/stretchr/testify/require"
)

func TestAppPingReturnsVoid(t *testing.T) {
	var wire bytes.Buffer
	client := rpcclient.New(rpcframe.NewBlockFramer(&loopback{buf: &wire}), nil)
	app := &App{Name: "demo", Version: "1.0"}
	h := rpchandler.New(client, app)

	writeWireMessage(t, &wire, rpcmsg.NewRequest(4, ".app", "ping", nil))
	keepGoing, err := h.HandleNext()
	require.NoError(t, err)
	require.True(t, keepGoing)

	resp := readWireMessage(t, &wire)
	require.Equal(t, rpcmsg.TypeResponse, resp.Type)
	require.Nil(t, resp.Result)
}

func TestAppNameAndVersion(t *testing.T) {
	var wire bytes.Buffer
	client := rpcclient.New(rpcframe.NewBlockFramer(&loopback{buf: &wire}), nil)
	app := &App{Name: "demo", Version: "1.2.3"}
	h := rpchandler.New(client, app)

	writeWireMessage(t, &wire, rpcmsg.NewRequest(5, ".app", "name", nil))
	_, err := h.HandleNext()
	require.NoError(t, err)
	resp := readWireMessage(t, &wire)
	require.Equal(t, "demo", resp.Result.Str)

	writeWireMessage(t, &wire, rpcmsg.NewRequest(6, ".app", "version", nil))
	_, err = h.HandleNext()
	require.NoError(t, err)
	resp = readWireMessage(t, &wire)
	require.Equal(t, "1.2.3", resp.Result.Str)
}

func TestAppDirListsMethods(t *testing.T) {
	var wire bytes.Buffer
	client := rpcclient.New(rpcframe.NewBlockFramer(&loopback{buf: &wire}), nil)
	app := &App{Name: "demo", Version: "1.0"}
	h := rpchandler.New(client, app)

	writeWireMessage(t, &wire, rpcmsg.NewRequest(7, ".app", "dir", nil))
	_, err := h.HandleNext()
	require.NoError(t, err)
	resp := readWireMessage(t, &wire)
	require.Equal(t, rpcmsg.TypeResponse, resp.Type)
	require.Len(t, resp.Result.List, len(appMethods))
}
