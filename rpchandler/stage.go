// Package rpchandler implements the handler pipeline from spec section
// 4.4: an ordered list of stages, each supplying any subset of the
// {ls, dir, msg, idle, reset} capabilities, modeled per the design notes'
// "function pointer tables with cookie context" guidance as a Go
// interface-per-capability rather than a struct of callbacks.
package rpchandler

import (
	"github.com/shvgo/shv/rpcclient"
	"github.com/shvgo/shv/rpcmsg"
)

// Context is passed to every stage capability invocation for one
// dispatch cycle.
type Context struct {
	Client *rpcclient.Client
	Msg    *rpcmsg.Message
}

// Outcome is the result of a stage's Msg callback.
type Outcome int

const (
	Skip Outcome = iota
	Handled
	StageStop
)

// IdleOutcome is the result of a stage's Idle callback.
type IdleOutcome int

const (
	IdleContinue IdleOutcome = iota
	IdleSkip
	IdleStop
)

// LsStage produces child node names for a path, merged with a
// duplicate-suppressing set across all stages.
type LsStage interface {
	Ls(ctx *Context, path string, names *NameSet)
}

// DirStage produces method descriptions for a path; the first
// description wins when two stages name the same method.
type DirStage interface {
	Dir(ctx *Context, path string, methods *MethodSet)
}

// MsgStage handles one complete inbound message. Stages run in pipeline
// order; the first to return other than Skip wins.
type MsgStage interface {
	Msg(ctx *Context) Outcome
}

// IdleStage is invoked when no message is pending, to emit spontaneous
// outbound traffic and report how long it can tolerate being left idle.
type IdleStage interface {
	Idle(ctx *Context) (msUntilNext int, outcome IdleOutcome)
}

// ResetStage is notified after a transport reset so a stage can discard
// per-connection state.
type ResetStage interface {
	StageReset()
}

// NameSet is an insertion-ordered, duplicate-suppressing set of names,
// for aggregating ls results across stages (spec section 4.4.2: names
// are merged, order is stage order).
type NameSet struct {
	seen  map[string]bool
	names []string
}

func NewNameSet() *NameSet {
	return &NameSet{seen: map[string]bool{}}
}

// Add inserts name if it isn't already present.
func (s *NameSet) Add(name string) {
	if s.seen[name] {
		return
	}
	s.seen[name] = true
	s.names = append(s.names, name)
}

// Names returns the accumulated names in insertion order.
func (s *NameSet) Names() []string {
	return s.names
}

// MethodSet aggregates method descriptions across stages, keeping the
// first description offered for any duplicate name (spec section 4.4.2).
type MethodSet struct {
	order []string
	descs map[string]rpcmsg.MethodDesc
}

func NewMethodSet() *MethodSet {
	return &MethodSet{descs: map[string]rpcmsg.MethodDesc{}}
}

// Add inserts d unless a description for d.Name was already added.
func (s *MethodSet) Add(d rpcmsg.MethodDesc) {
	if _, ok := s.descs[d.Name]; ok {
		return
	}
	s.order = append(s.order, d.Name)
	s.descs[d.Name] = d
}

// Descs returns the accumulated descriptions in first-seen order.
func (s *MethodSet) Descs() []rpcmsg.MethodDesc {
	out := make([]rpcmsg.MethodDesc, len(s.order))
	for i, name := range s.order {
		out[i] = s.descs[name]
	}
	return out
}

// Has reports whether a method named name has been added — the "fast
// path" spec section 4.4 allows for callers asking only whether a named
// method exists.
func (s *MethodSet) Has(name string) bool {
	_, ok := s.descs[name]
	return ok
}
