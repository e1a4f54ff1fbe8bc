package rpchandler

import (
	"fmt"
	"sync"

	"github.com/shvgo/shv/logger"
	"github.com/shvgo/shv/rpcclient"
	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpcmsg"
)

// Handler owns the pipeline array, the outbound-write mutex, and the
// request-id allocator (spec section 3.7). Stages are held by value in
// an ordered slice; capability dispatch uses a type assertion against
// each of the small single-method interfaces in stage.go.
type Handler struct {
	client *rpcclient.Client
	stages []interface{}
	ids    *IDAllocator

	sendMu sync.Mutex
	guard  *respondGuard
}

// New builds a Handler driving client through stages in the given order.
// Stage order is user-defined and is the sole tie-break for ls/dir
// merges (spec section 4.4.2).
func New(client *rpcclient.Client, stages ...interface{}) *Handler {
	return &Handler{
		client: client,
		stages: stages,
		ids:    NewIDAllocator(),
		guard:  newRespondGuard(),
	}
}

// IDAllocator exposes the handler's request-id counter so call-site code
// (rpccall, the login/signals stages) can mint outbound request ids.
func (h *Handler) IDAllocator() *IDAllocator { return h.ids }

// Send frames and transmits one outbound message under the handler's
// write lock, so stages never interleave partial frames.
func (h *Handler) Send(m *rpcmsg.Message) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	return h.client.Send(m)
}

// Reset notifies every ResetStage after the client's transport reset.
func (h *Handler) Reset() error {
	if err := h.client.Reset(); err != nil {
		return err
	}
	for _, s := range h.stages {
		if rs, ok := s.(ResetStage); ok {
			rs.StageReset()
		}
	}
	return nil
}

// HandleNext reads and dispatches exactly one inbound message, per the
// dispatch algorithm in spec section 4.4.1. It returns false when a
// stage signaled StageStop (the caller should end its read loop, e.g.
// after a fatal login failure).
func (h *Handler) HandleNext() (bool, error) {
	msg, err := h.client.NextMessage()
	if err != nil {
		return false, err
	}
	return h.Dispatch(msg)
}

// Dispatch runs one decoded message through the pipeline.
func (h *Handler) Dispatch(msg *rpcmsg.Message) (keepGoing bool, err error) {
	ctx := &Context{Client: h.client, Msg: msg}

	if msg.Type == rpcmsg.TypeRequest && (msg.Method == "ls" || msg.Method == "dir") {
		h.handleDiscovery(ctx)
		return true, nil
	}

	outcome, handled := h.walkMsgStages(ctx)

	if !h.client.MsgValid() && !handled {
		if msg.Type == rpcmsg.TypeRequest {
			h.respondError(msg, rpcerror.New(rpcerror.ParseErr, "malformed message"))
		}
		return outcome != StageStop, nil
	}

	if msg.Type == rpcmsg.TypeRequest && !handled {
		h.respondError(msg, rpcerror.New(rpcerror.MethodNotFound,
			fmt.Sprintf("%v:%v not found", msg.ShvPath, msg.Method)))
	}

	return outcome != StageStop, nil
}

func (h *Handler) walkMsgStages(ctx *Context) (Outcome, bool) {
	for _, s := range h.stages {
		ms, ok := s.(MsgStage)
		if !ok {
			continue
		}
		switch outcome := ms.Msg(ctx); outcome {
		case Handled:
			return Handled, true
		case StageStop:
			return StageStop, true
		default:
			continue
		}
	}
	return Skip, false
}

func (h *Handler) handleDiscovery(ctx *Context) {
	msg := ctx.Msg
	if msg.Method == "ls" {
		names := NewNameSet()
		for _, s := range h.stages {
			if ls, ok := s.(LsStage); ok {
				ls.Ls(ctx, msg.ShvPath, names)
			}
		}
		h.respondNames(msg, names.Names())
		return
	}

	methods := NewMethodSet()
	for _, s := range h.stages {
		if dir, ok := s.(DirStage); ok {
			dir.Dir(ctx, msg.ShvPath, methods)
		}
	}
	h.respondMethods(msg, methods.Descs())
}

// respondOnce answers req, logging (instead of sending a second wire
// message) if another respondOnce for the same request id is still
// sending; the claim is released once the reply has been sent.
func (h *Handler) respondOnce(req *rpcmsg.Message, build func() *rpcmsg.Message) {
	if !h.guard.claim(req.RequestID) {
		logger.Error.Println(nil, fmt.Sprintf(
			"rpchandler: duplicate response attempt for request %d ignored", req.RequestID))
		return
	}
	defer h.guard.forget(req.RequestID)

	if err := h.Send(build()); err != nil {
		logger.Error.Println(nil, fmt.Sprintf("rpchandler: send response failed: %v", err))
	}
}

func (h *Handler) respondError(req *rpcmsg.Message, e *rpcerror.Error) {
	h.respondOnce(req, func() *rpcmsg.Message { return rpcmsg.NewErrorResponse(req, e) })
}

func (h *Handler) respondNames(req *rpcmsg.Message, names []string) {
	h.respondOnce(req, func() *rpcmsg.Message {
		return rpcmsg.NewResponse(req, namesToValue(names))
	})
}

func (h *Handler) respondMethods(req *rpcmsg.Message, descs []rpcmsg.MethodDesc) {
	h.respondOnce(req, func() *rpcmsg.Message {
		return rpcmsg.NewResponse(req, methodsToValue(descs))
	})
}
