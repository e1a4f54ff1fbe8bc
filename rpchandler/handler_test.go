package rpchandler

import (
	"bytes"
	"testing"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpcclient"
	"github.com/shvgo/shv/rpcframe"
	"github.com/shvgo/shv/rpcmsg"
	"github.com/stretchr/testify/require"
)

type loopback struct{ buf *bytes.Buffer }

func (l *loopback) Read(p []byte) (int, error)  { return l.buf.Read(p) }
func (l *loopback) Write(p []byte) (int, error) { return l.buf.Write(p) }

// echoStage answers any REQUEST to method "echo" with its own param.
type echoStage struct{}

func (echoStage) Msg(ctx *Context) Outcome {
	if ctx.Msg.Type != rpcmsg.TypeRequest || ctx.Msg.Method != "echo" {
		return Skip
	}
	resp := rpcmsg.NewResponse(ctx.Msg, ctx.Msg.Param)
	if err := ctx.Client.Send(resp); err != nil {
		panic(err)
	}
	return Handled
}

// lsDirStage exposes one fixed child and method.
type lsDirStage struct{}

func (lsDirStage) Ls(ctx *Context, path string, names *NameSet) {
	names.Add("child")
}

func (lsDirStage) Dir(ctx *Context, path string, methods *MethodSet) {
	methods.Add(rpcmsg.MethodDesc{Name: "echo", Access: rpcmsg.LevelRead})
}

func newTestHandler(t *testing.T, stages ...interface{}) (*Handler, *bytes.Buffer) {
	t.Helper()
	var wire bytes.Buffer
	framer := rpcframe.NewBlockFramer(&loopback{buf: &wire})
	client := rpcclient.New(framer, nil)
	return New(client, stages...), &wire
}

func sendRequest(t *testing.T, wire *bytes.Buffer, req *rpcmsg.Message) {
	t.Helper()
	framer := rpcframe.NewBlockFramer(&loopback{buf: wire})
	c := rpcclient.New(framer, nil)
	require.NoError(t, c.Send(req))
}

func readResponse(t *testing.T, wire *bytes.Buffer) *rpcmsg.Message {
	t.Helper()
	framer := rpcframe.NewBlockFramer(&loopback{buf: wire})
	c := rpcclient.New(framer, nil)
	msg, err := c.NextMessage()
	require.NoError(t, err)
	return msg
}

func TestHandlerDispatchesToMatchingStage(t *testing.T) {
	h, wire := newTestHandler(t, echoStage{})

	req := rpcmsg.NewRequest(10, "", "echo", cp.Str("hi"))
	sendRequest(t, wire, req)

	keepGoing, err := h.HandleNext()
	require.NoError(t, err)
	require.True(t, keepGoing)

	resp := readResponse(t, wire)
	require.Equal(t, rpcmsg.TypeResponse, resp.Type)
	require.Equal(t, int64(10), resp.RequestID)
}

func TestHandlerMethodNotFound(t *testing.T) {
	h, wire := newTestHandler(t, echoStage{})

	req := rpcmsg.NewRequest(11, "", "missing", nil)
	sendRequest(t, wire, req)

	_, err := h.HandleNext()
	require.NoError(t, err)

	resp := readResponse(t, wire)
	require.Equal(t, rpcmsg.TypeError, resp.Type)
}

func TestHandlerLsAggregatesAcrossStages(t *testing.T) {
	h, wire := newTestHandler(t, lsDirStage{})

	req := rpcmsg.NewRequest(12, "", "ls", nil)
	sendRequest(t, wire, req)

	_, err := h.HandleNext()
	require.NoError(t, err)

	resp := readResponse(t, wire)
	require.Equal(t, rpcmsg.TypeResponse, resp.Type)
	require.NotNil(t, resp.Result)
}

func TestIDAllocatorWrapsAtBudget(t *testing.T) {
	a := NewIDAllocator()
	for i := firstRequestID; i < maxRequestID; i++ {
		require.EqualValues(t, i, a.Next())
	}
	require.EqualValues(t, maxRequestID, a.Next())
	require.EqualValues(t, firstRequestID, a.Next())
}
