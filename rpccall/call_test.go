package rpccall

import (
	"io"
	"testing"
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpcclient"
	"github.com/shvgo/shv/rpcframe"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpchandler/stages"
	"github.com/shvgo/shv/rpcmsg"
	"github.com/stretchr/testify/require"
)

// duplex adapts a pair of io.Pipe ends into one io.ReadWriter, giving the
// client and the simulated broker each a synchronized, goroutine-safe
// half-duplex byte stream (unlike a shared bytes.Buffer, which a
// concurrent Call/HandleNext pairing would race on).
type duplex struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { return d.w.Write(p) }

func newDuplexPair() (client, broker *duplex) {
	c2bR, c2bW := io.Pipe()
	b2cR, b2cW := io.Pipe()
	return &duplex{r: b2cR, w: c2bW}, &duplex{r: c2bR, w: b2cW}
}

type recordingPhases struct {
	phases []Phase
	result *cp.Value
}

func (p *recordingPhases) Phase(phase Phase, msg *rpcmsg.Message) *cp.Value {
	p.phases = append(p.phases, phase)
	if phase == PhaseResult && msg.Result != nil {
		p.result = msg.Result
	}
	return cp.Str("arg")
}

// TestCallSucceedsOnFirstAttempt drives a Call against a simulated broker
// goroutine that reads the request and replies once.
func TestCallSucceedsOnFirstAttempt(t *testing.T) {
	clientRW, brokerRW := newDuplexPair()

	client := rpcclient.New(rpcframe.NewBlockFramer(clientRW), nil)
	responses := stages.NewResponses()
	h := rpchandler.New(client, responses)

	brokerDone := make(chan struct{})
	go func() {
		defer close(brokerDone)
		broker := rpcclient.New(rpcframe.NewBlockFramer(brokerRW), nil)
		req, err := broker.NextMessage()
		if err != nil {
			return
		}
		broker.Send(rpcmsg.NewResponse(req, cp.Str("ok")))
	}()

	ph := &recordingPhases{}
	// The handler must process the broker's reply on this goroutine,
	// so drive HandleNext concurrently with the blocking Call.
	handleDone := make(chan error, 1)
	go func() { _, err := h.HandleNext(); handleDone <- err }()

	err := Call(h, responses, "", "echo", ph, 3, 200*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, <-handleDone)
	<-brokerDone

	require.Equal(t, []Phase{PhaseRequest, PhaseResult, PhaseDone}, ph.phases)
	require.Equal(t, "ok", ph.result.Str)
}

func TestCallTimesOutAndExhausts(t *testing.T) {
	clientRW, brokerRW := newDuplexPair()
	defer brokerRW.r.Close()

	// Drain whatever the client sends so Call's h.Send calls don't block
	// on the pipe, but never reply, forcing every attempt to time out.
	go io.Copy(io.Discard, brokerRW.r)

	client := rpcclient.New(rpcframe.NewBlockFramer(clientRW), nil)
	responses := stages.NewResponses()
	h := rpchandler.New(client, responses)

	ph := &recordingPhases{}
	err := Call(h, responses, "", "echo", ph, 2, 5*time.Millisecond)
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Equal(t, []Phase{PhaseRequest, PhaseTimerr, PhaseRequest, PhaseTimerr, PhaseComerr}, ph.phases)
}
