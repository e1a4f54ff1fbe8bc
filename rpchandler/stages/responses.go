package stages

import (
	"sync"

	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcmsg"
)

// awaiter is one outstanding request's response handle: a single
// callback invoked exactly once, either by the matching RESPONSE/ERROR
// or by Cancel.
type awaiter struct {
	done     chan struct{}
	callback func(*rpcmsg.Message)
	fired    bool
}

// Responses keeps a request-id keyed map of outstanding awaiters (spec
// section 4.5 design notes: "pointer-linked response list under a
// mutex" modeled as a map from request id to a handle with a one-shot
// notifier).
type Responses struct {
	mu       sync.Mutex
	awaiters map[int64]*awaiter
}

// NewResponses builds an empty Responses stage.
func NewResponses() *Responses {
	return &Responses{awaiters: map[int64]*awaiter{}}
}

// Register installs a callback for requestID, invoked once a matching
// RESPONSE or ERROR is dispatched. It returns a done channel that closes
// when the callback has fired (by message, Cancel, or StageReset).
func (r *Responses) Register(requestID int64, callback func(*rpcmsg.Message)) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &awaiter{done: make(chan struct{}), callback: callback}
	r.awaiters[requestID] = a
	return a.done
}

// Cancel fires requestID's awaiter, if still outstanding, with a
// synthetic METHOD_CALL_CANCELLED error — used for timeouts and the
// transport-closed path (spec section 7: "Transport I/O failure... wakes
// all awaiters with METHOD_CALL_CANCELLED").
func (r *Responses) Cancel(requestID int64) {
	r.mu.Lock()
	a, ok := r.awaiters[requestID]
	if ok {
		delete(r.awaiters, requestID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.fire(a, &rpcmsg.Message{
		Type: rpcmsg.TypeError,
		Err:  rpcerror.New(rpcerror.MethodCallCancelled, "call cancelled"),
	})
}

// CancelAll fires every outstanding awaiter with METHOD_CALL_CANCELLED,
// for use when the transport closes.
func (r *Responses) CancelAll() {
	r.mu.Lock()
	pending := r.awaiters
	r.awaiters = map[int64]*awaiter{}
	r.mu.Unlock()

	for _, a := range pending {
		r.fire(a, &rpcmsg.Message{
			Type: rpcmsg.TypeError,
			Err:  rpcerror.New(rpcerror.MethodCallCancelled, "transport closed"),
		})
	}
}

func (r *Responses) StageReset() {
	r.CancelAll()
}

// fire invokes a's callback exactly once and closes its done channel.
// The mutex held by the caller of Cancel/CancelAll has already been
// released, since the callback may itself call back into Responses.
func (r *Responses) fire(a *awaiter, msg *rpcmsg.Message) {
	r.mu.Lock()
	if a.fired {
		r.mu.Unlock()
		return
	}
	a.fired = true
	r.mu.Unlock()

	if a.callback != nil {
		a.callback(msg)
	}
	close(a.done)
}

// Msg resolves RESPONSE/ERROR messages against the awaiter map, first
// RESPONSE/ERROR wins any race against a concurrent Cancel.
func (r *Responses) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Type != rpcmsg.TypeResponse && msg.Type != rpcmsg.TypeError {
		return rpchandler.Skip
	}

	r.mu.Lock()
	a, ok := r.awaiters[msg.RequestID]
	if ok {
		delete(r.awaiters, msg.RequestID)
	}
	r.mu.Unlock()
	if !ok {
		return rpchandler.Skip
	}

	r.fire(a, msg)
	return rpchandler.Handled
}
