// Package stages implements the built-in rpchandler stages described in
// spec section 4.4.4: login handshake, app/device introspection, signal
// subscriptions, synchronous-call bookkeeping, and history/file access.
package stages

import (
	"fmt"
	"time"

	"github.com/shvgo/shv/logger"
	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpclogin"
	"github.com/shvgo/shv/rpcmsg"
)

// LoginState is one state of the login handshake, per spec section 4.4.4.
type LoginState int

const (
	NeedHello LoginState = iota
	HelloSent
	HaveNonce
	LoginSent
	LoggedIn
	Failed
)

func (s LoginState) String() string {
	switch s {
	case NeedHello:
		return "NeedHello"
	case HelloSent:
		return "HelloSent"
	case HaveNonce:
		return "HaveNonce"
	case LoginSent:
		return "LoginSent"
	case LoggedIn:
		return "LoggedIn"
	case Failed:
		return "Failed"
	default:
		return "Invalid"
	}
}

const (
	helloTimeout = 1 * time.Second
	loginTimeout = 5 * time.Second
)

// now is overridden in tests; production code always uses time.Now.
var now = time.Now

// Login drives the hello/login handshake and, once logged in, periodic
// .app:ping keep-alives. It claims request ids 1 (hello), 2 (login) and
// every subsequent id it allocates for ping.
type Login struct {
	Credentials rpclogin.Credentials
	// Trusted marks the transport safe for a PLAIN password (spec
	// section 8: an untrusted transport silently elevates to SHA1).
	Trusted bool
	// OnLoggedIn, if set, is invoked once the handshake completes.
	OnLoggedIn func()
	// OnFailed, if set, is invoked with the broker's reported error.
	OnFailed func(kind, message string)

	ids *rpchandler.IDAllocator

	state       LoginState
	nonce       string
	sentAt      time.Time
	idleTimeout int
	lastPingID  int64
	lastSend    time.Time
	failKind    string
	failMessage string
}

// NewLogin builds a Login stage. ids is the handler's shared request-id
// allocator (spec section 4.4.3); hello/login themselves use the fixed
// ids 1 and 2 (also when they are re-sent), while each ping draws from
// ids.
func NewLogin(creds rpclogin.Credentials, trusted bool, ids *rpchandler.IDAllocator) *Login {
	return &Login{Credentials: creds, Trusted: trusted, ids: ids}
}

// State reports the current handshake state.
func (l *Login) State() LoginState { return l.state }

// LoggedIn reports whether the handshake has completed successfully.
func (l *Login) LoggedIn() bool { return l.state == LoggedIn }

func (l *Login) StageReset() {
	l.state = NeedHello
	l.nonce = ""
	l.failKind = ""
	l.failMessage = ""
}

// Msg intercepts the hello/login RESPONSE and ERROR messages and, until
// login completes, answers every REQUEST that reaches it with
// LOGIN_REQUIRED (ls/dir are answered by the handler before any stage
// sees them). Every other message is Skip, so other stages see it.
func (l *Login) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if !msg.HasRequestID {
		return rpchandler.Skip
	}
	if msg.Type == rpcmsg.TypeRequest && l.state != LoggedIn {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg,
			rpcerror.New(rpcerror.LoginRequired, "login required")))
		return rpchandler.Handled
	}

	switch l.state {
	case HelloSent:
		if msg.RequestID != 1 {
			return rpchandler.Skip
		}
		return l.handleHello(msg)
	case LoginSent:
		if msg.RequestID != 2 {
			return rpchandler.Skip
		}
		return l.handleLogin(msg)
	default:
		if msg.RequestID == l.lastPingID && l.lastPingID != 0 {
			// Response to our own ping; nothing to do either way.
			return rpchandler.Handled
		}
		return rpchandler.Skip
	}
}

func (l *Login) handleHello(msg *rpcmsg.Message) rpchandler.Outcome {
	if msg.Type == rpcmsg.TypeError {
		return l.fail(msg)
	}
	nonce, err := rpclogin.NonceFromHello(msg.Result)
	if err != nil {
		logger.Error.Println(nil, fmt.Sprintf("stages: login: %v", err))
		l.state = Failed
		return rpchandler.StageStop
	}
	l.nonce = nonce
	l.state = HaveNonce
	return rpchandler.Handled
}

func (l *Login) handleLogin(msg *rpcmsg.Message) rpchandler.Outcome {
	if msg.Type == rpcmsg.TypeError {
		return l.fail(msg)
	}
	l.idleTimeout = l.Credentials.IdleTimeout
	if l.idleTimeout <= 0 {
		l.idleTimeout = rpclogin.DefaultIdleTimeout
	}
	l.state = LoggedIn
	if l.OnLoggedIn != nil {
		l.OnLoggedIn()
	}
	return rpchandler.Handled
}

func (l *Login) fail(msg *rpcmsg.Message) rpchandler.Outcome {
	l.state = Failed
	if msg.Err != nil {
		l.failKind = msg.Err.Kind.String()
		l.failMessage = msg.Err.Message
	}
	if l.OnFailed != nil {
		l.OnFailed(l.failKind, l.failMessage)
	}
	return rpchandler.StageStop
}

// Idle drives the handshake forward and, once logged in, the ping
// cadence. It reports the number of milliseconds until it next wants to
// act, per spec section 4.4.2.
func (l *Login) Idle(ctx *rpchandler.Context) (int, rpchandler.IdleOutcome) {
	switch l.state {
	case NeedHello:
		l.send(ctx, rpcmsg.NewRequest(1, "", "hello", nil))
		l.state = HelloSent
		return int(helloTimeout / time.Millisecond), rpchandler.IdleContinue

	case HelloSent:
		if remaining := helloTimeout - now().Sub(l.sentAt); remaining > 0 {
			return int(remaining / time.Millisecond), rpchandler.IdleContinue
		}
		l.state = NeedHello
		return 0, rpchandler.IdleContinue

	case HaveNonce:
		param := l.Credentials.ToValue(l.nonce, l.Trusted)
		l.send(ctx, rpcmsg.NewRequest(2, "", "login", param))
		l.state = LoginSent
		return int(loginTimeout / time.Millisecond), rpchandler.IdleContinue

	case LoginSent:
		if remaining := loginTimeout - now().Sub(l.sentAt); remaining > 0 {
			return int(remaining / time.Millisecond), rpchandler.IdleContinue
		}
		l.state = HaveNonce
		return 0, rpchandler.IdleContinue

	case LoggedIn:
		return l.idlePing(ctx)

	case Failed:
		return 0, rpchandler.IdleStop
	}
	return 0, rpchandler.IdleContinue
}

func (l *Login) idlePing(ctx *rpchandler.Context) (int, rpchandler.IdleOutcome) {
	half := time.Duration(l.idleTimeout) * time.Second / 2
	elapsed := now().Sub(l.lastSend)
	if elapsed >= half {
		id := l.ids.Next()
		l.lastPingID = id
		msg := &rpcmsg.Message{Type: rpcmsg.TypeRequest, RequestID: id, HasRequestID: true, ShvPath: ".app", Method: "ping"}
		l.send(ctx, msg)
		return int(half / time.Millisecond), rpchandler.IdleContinue
	}
	return int((half - elapsed) / time.Millisecond), rpchandler.IdleContinue
}

func (l *Login) send(ctx *rpchandler.Context, msg *rpcmsg.Message) {
	if err := ctx.Client.Send(msg); err != nil {
		logger.Error.Println(nil, fmt.Sprintf("stages: login: send failed: %v", err))
		return
	}
	l.sentAt = now()
	l.lastSend = l.sentAt
}
