// Package rpccall implements the synchronous call helper of spec
// section 4.5: a retrying request/response round trip built on top of
// the handler pipeline's Responses stage.
package rpccall

import (
	"errors"
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpchandler/stages"
	"github.com/shvgo/shv/rpcmsg"
)

// Phase is one of the four points in a call's lifecycle at which the
// caller's PhaseHandler is invoked, per spec section 4.5.
type Phase int

const (
	// PhaseRequest asks the caller to produce the outbound param. msg is
	// nil.
	PhaseRequest Phase = iota
	// PhaseResult delivers the decoded RESPONSE or ERROR message.
	PhaseResult
	// PhaseDone marks successful completion; msg is the same message
	// passed to the preceding PhaseResult call.
	PhaseDone
	// PhaseTimerr marks a single attempt timing out; the call retries.
	PhaseTimerr
	// PhaseComerr marks unrecoverable failure (transport closed, or
	// attempts exhausted); the call does not retry further.
	PhaseComerr
)

// PhaseHandler owns packing the request and consuming the result. Each
// attempt starts with PhaseRequest and ends with either PhaseTimerr or
// PhaseResult; PhaseResult is followed by PhaseDone, or by PhaseComerr
// for a MethodCallCancelled error. A failed send yields PhaseComerr right
// after PhaseRequest, and PhaseComerr also follows the last PhaseTimerr
// once attempts are exhausted.
type PhaseHandler interface {
	Phase(phase Phase, msg *rpcmsg.Message) *cp.Value
}

// ErrAttemptsExhausted is returned when every attempt timed out.
var ErrAttemptsExhausted = errors.New("rpccall: attempts exhausted")

// Call performs one synchronous RPC call to path:method, retrying up to
// attempts times on timeout, per spec section 4.5.
func Call(h *rpchandler.Handler, responses *stages.Responses, path, method string, ph PhaseHandler, attempts int, timeout time.Duration) error {
	requestID := h.IDAllocator().Next()

	for attempt := 0; attempt < attempts; attempt++ {
		result := make(chan *rpcmsg.Message, 1)
		responses.Register(requestID, func(msg *rpcmsg.Message) {
			result <- msg
		})

		param := ph.Phase(PhaseRequest, nil)
		req := rpcmsg.NewRequest(requestID, path, method, param)
		if err := h.Send(req); err != nil {
			responses.Cancel(requestID)
			ph.Phase(PhaseComerr, nil)
			return err
		}

		select {
		case msg := <-result:
			ph.Phase(PhaseResult, msg)
			if msg.Type == rpcmsg.TypeError && msg.Err != nil && msg.Err.Kind == rpcerror.MethodCallCancelled {
				ph.Phase(PhaseComerr, msg)
				return msg.Err
			}
			ph.Phase(PhaseDone, msg)
			return nil

		case <-time.After(timeout):
			responses.Cancel(requestID)
			ph.Phase(PhaseTimerr, nil)
			continue
		}
	}

	ph.Phase(PhaseComerr, nil)
	return ErrAttemptsExhausted
}
