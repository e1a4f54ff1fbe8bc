package rpchandler

import (
	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpcmsg"
)

// namesToValue renders an ls response: a list of child name strings.
func namesToValue(names []string) *cp.Value {
	items := make([]*cp.Value, len(names))
	for i, n := range names {
		items[i] = cp.Str(n)
	}
	return cp.List(items...)
}

// methodsToValue renders a dir response: a list of method description
// imaps, per rpcmsg.MethodDesc.ToValue.
func methodsToValue(descs []rpcmsg.MethodDesc) *cp.Value {
	items := make([]*cp.Value, len(descs))
	for i, d := range descs {
		items[i] = d.ToValue()
	}
	return cp.List(items...)
}
