package rpcmsg

import (
	"fmt"

	cp "github.com/shvgo/shv/chainpack"
)

// MethodFlag is a bitwise combination of method description flags, per
// original_source/include/shv/rpcdir.h.
type MethodFlag uint32

const (
	FlagNotCallable MethodFlag = 1 << 0
	FlagGetter      MethodFlag = 1 << 1
	FlagSetter      MethodFlag = 1 << 2
	FlagLargeResult MethodFlag = 1 << 3
	FlagNotIdempotent MethodFlag = 1 << 4
	FlagUserIDRequired MethodFlag = 1 << 5
)

// Signal is one signal a method may emit: a name and an optional
// parameter type signature.
type Signal struct {
	Name  string
	Param string
}

// MethodDesc describes one callable method in the namespace, as returned
// by the `dir` method.
type MethodDesc struct {
	Name    string
	Param   string
	Result  string
	Flags   MethodFlag
	Access  AccessLevel
	Signals []Signal
}

// Dir IMap keys, per original_source/include/shv/rpcdir.h.
const (
	dirKeyName    = 1
	dirKeyFlags   = 2
	dirKeyParam   = 3
	dirKeyResult  = 4
	dirKeyAccess  = 5
	dirKeySignals = 6
)

// StandardLs and StandardDir describe the two methods every namespace
// node carries.
var (
	StandardLs = MethodDesc{
		Name:   "ls",
		Result: "[String]",
		Flags:  FlagGetter,
		Access: LevelBrowse,
	}
	StandardDir = MethodDesc{
		Name:   "dir",
		Result: "[!dir]",
		Flags:  FlagGetter,
		Access: LevelBrowse,
	}
)

// ToValue renders a method description as an IMap value, suitable as one
// element of the list returned by `dir`.
func (d MethodDesc) ToValue() *cp.Value {
	im := cp.NewIMap()
	im.Set(dirKeyName, cp.Str(d.Name))
	if d.Flags != 0 {
		im.Set(dirKeyFlags, cp.UInt(uint64(d.Flags)))
	}
	if d.Param != "" {
		im.Set(dirKeyParam, cp.Str(d.Param))
	}
	if d.Result != "" {
		im.Set(dirKeyResult, cp.Str(d.Result))
	}
	im.Set(dirKeyAccess, cp.Int(int64(d.Access)))
	if len(d.Signals) > 0 {
		sigs := make([]*cp.Value, len(d.Signals))
		for i, s := range d.Signals {
			sim := cp.NewIMap()
			sim.Set(dirKeyName, cp.Str(s.Name))
			if s.Param != "" {
				sim.Set(dirKeyParam, cp.Str(s.Param))
			}
			sigs[i] = cp.IMapValue(sim)
		}
		im.Set(dirKeySignals, cp.List(sigs...))
	}
	return cp.IMapValue(im)
}

// MethodDescFromValue parses one method description element of the list
// `dir` returns.
func MethodDescFromValue(v *cp.Value) (MethodDesc, error) {
	if v.Kind != cp.KindIMap {
		return MethodDesc{}, fmt.Errorf("rpcmsg: method description must be an imap, got %v", v.Kind)
	}
	var d MethodDesc
	if nv, ok := v.IMap.Get(dirKeyName); ok && nv.Kind == cp.KindString {
		d.Name = nv.Str
	}
	if fv, ok := v.IMap.Get(dirKeyFlags); ok {
		d.Flags = MethodFlag(intFrom(fv))
	}
	if pv, ok := v.IMap.Get(dirKeyParam); ok && pv.Kind == cp.KindString {
		d.Param = pv.Str
	}
	if rv, ok := v.IMap.Get(dirKeyResult); ok && rv.Kind == cp.KindString {
		d.Result = rv.Str
	}
	if av, ok := v.IMap.Get(dirKeyAccess); ok {
		d.Access = AccessLevel(intFrom(av))
	}
	if sv, ok := v.IMap.Get(dirKeySignals); ok && sv.Kind == cp.KindList {
		for _, sigVal := range sv.List {
			if sigVal.Kind != cp.KindIMap {
				continue
			}
			var s Signal
			if nv, ok := sigVal.IMap.Get(dirKeyName); ok && nv.Kind == cp.KindString {
				s.Name = nv.Str
			}
			if pv, ok := sigVal.IMap.Get(dirKeyParam); ok && pv.Kind == cp.KindString {
				s.Param = pv.Str
			}
			d.Signals = append(d.Signals, s)
		}
	}
	return d, nil
}
