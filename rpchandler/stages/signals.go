package stages

import (
	"sync"
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcmsg"
	"github.com/shvgo/shv/rpcri"
)

const resubscribeInterval = 5 * time.Second

// subscription tracks one resource identifier's desired state against
// the broker. pending is signed: positive means a subscribe request with
// that id is outstanding, negative means an unsubscribe request with id
// |pending| is outstanding, zero means no request is outstanding. acked
// records whether the broker currently holds the subscription.
type subscription struct {
	want    bool
	pending int64
	acked   bool
}

// Signals maintains the set of subscribed resource identifiers against
// ".broker/currentClient" and delivers inbound SIGNAL messages matching
// them to OnSignal, per spec section 4.4.4.
type Signals struct {
	OnSignal func(msg *rpcmsg.Message)

	ids *rpchandler.IDAllocator

	mu      sync.Mutex
	subs    map[string]*subscription
	lastTry time.Time
}

// NewSignals builds a Signals stage sharing the handler's request-id
// allocator.
func NewSignals(ids *rpchandler.IDAllocator) *Signals {
	return &Signals{ids: ids, subs: map[string]*subscription{}}
}

// Subscribe marks ri (an rpcri pattern) as wanted; the next Idle pass
// that is due (at most one every resubscribeInterval) sends a subscribe
// request for it if one isn't already outstanding.
func (s *Signals) Subscribe(ri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[ri]
	if !ok {
		sub = &subscription{}
		s.subs[ri] = sub
	}
	sub.want = true
}

// Unsubscribe marks ri as no longer wanted.
func (s *Signals) Unsubscribe(ri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[ri]; ok {
		sub.want = false
	}
}

func (s *Signals) StageReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		sub.pending = 0
		sub.acked = false
	}
}

// Msg delivers inbound SIGNAL messages matching a subscribed RI and
// resolves subscribe/unsubscribe RESPONSE/ERROR replies.
func (s *Signals) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg

	if msg.Type == rpcmsg.TypeSignal {
		s.mu.Lock()
		matched := false
		for ri := range s.subs {
			if rpcri.Match(ri, msg.ShvPath, msg.Source, msg.Signal) {
				matched = true
				break
			}
		}
		s.mu.Unlock()
		if matched {
			if s.OnSignal != nil {
				s.OnSignal(msg)
			}
			return rpchandler.Handled
		}
		return rpchandler.Skip
	}

	if msg.Type == rpcmsg.TypeResponse || msg.Type == rpcmsg.TypeError {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, sub := range s.subs {
			if sub.pending == msg.RequestID {
				sub.pending = 0
				sub.acked = msg.Type == rpcmsg.TypeResponse
				return rpchandler.Handled
			}
			if sub.pending == -msg.RequestID && msg.RequestID != 0 {
				sub.pending = 0
				if msg.Type == rpcmsg.TypeResponse {
					sub.acked = false
				}
				return rpchandler.Handled
			}
		}
	}
	return rpchandler.Skip
}

// Idle retries un-acknowledged subscribe/unsubscribe state every
// resubscribeInterval.
func (s *Signals) Idle(ctx *rpchandler.Context) (int, rpchandler.IdleOutcome) {
	s.mu.Lock()
	due := time.Since(s.lastTry) >= resubscribeInterval
	if !due {
		wait := resubscribeInterval - time.Since(s.lastTry)
		s.mu.Unlock()
		return int(wait / time.Millisecond), rpchandler.IdleContinue
	}
	s.lastTry = time.Now()

	type action struct {
		ri        string
		subscribe bool
		requestID int64
	}
	var actions []action
	for ri, sub := range s.subs {
		if sub.pending != 0 {
			continue
		}
		if sub.want && !sub.acked {
			id := s.ids.Next()
			sub.pending = id
			actions = append(actions, action{ri, true, id})
		} else if !sub.want && sub.acked {
			id := s.ids.Next()
			sub.pending = -id
			actions = append(actions, action{ri, false, id})
		}
	}
	s.mu.Unlock()

	for _, a := range actions {
		method := "subscribe"
		if !a.subscribe {
			method = "unsubscribe"
		}
		param := cp.Map(map[string]*cp.Value{"ri": cp.Str(a.ri)})
		msg := rpcmsg.NewRequest(a.requestID, ".broker/currentClient", method, param)
		ctx.Client.Send(msg)
	}

	return int(resubscribeInterval / time.Millisecond), rpchandler.IdleContinue
}
