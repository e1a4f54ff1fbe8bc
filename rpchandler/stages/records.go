package stages

import (
	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpcmsg"
)

// IndexRange reports the span of valid record indices a log currently
// holds, per original_source's rpchandler_records_ops.get_index_range.
type IndexRange struct {
	Min, Max, Span uint64
}

// Records exposes one history log under ".records/<name>", backed by
// injected callbacks so the stage stays independent of any particular
// logging library, per original_source's rpchandler_records.h.
type Records struct {
	Name string

	// PackRecord renders the record at index as a chainpack.Value, or
	// reports ok=false if index falls in a gap the log doesn't hold.
	PackRecord func(index uint64) (v *cp.Value, ok bool)
	// IndexRange reports the log's current valid span.
	IndexRange func() IndexRange
}

var recordsMethods = []rpcmsg.MethodDesc{
	{Name: "fetch", Param: "Int", Result: "Map|Null", Access: rpcmsg.LevelRead},
	{Name: "span", Result: "Map", Access: rpcmsg.LevelRead},
}

func (r *Records) nodePath() string { return ".records/" + r.Name }

func (r *Records) Ls(ctx *rpchandler.Context, path string, names *rpchandler.NameSet) {
	switch path {
	case "":
		names.Add(".records")
	case ".records":
		names.Add(r.Name)
	}
}

func (r *Records) Dir(ctx *rpchandler.Context, path string, methods *rpchandler.MethodSet) {
	if path != r.nodePath() {
		return
	}
	for _, m := range recordsMethods {
		methods.Add(m)
	}
}

func (r *Records) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Type != rpcmsg.TypeRequest || msg.ShvPath != r.nodePath() {
		return rpchandler.Skip
	}

	switch msg.Method {
	case "fetch":
		return r.fetch(ctx)
	case "span":
		return r.span(ctx)
	default:
		return rpchandler.Skip
	}
}

// fetch answers "fetch" with the record at the requested index, or Null
// if the index falls in a gap the log no longer holds (gap-tolerant
// fetch, per get_index_range's min/max span).
func (r *Records) fetch(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Param == nil || msg.Param.Kind != cp.KindInt {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InvalidParam, "fetch requires an int index")))
		return rpchandler.Handled
	}
	index := uint64(msg.Param.Int)

	var result *cp.Value
	if r.PackRecord != nil {
		if v, ok := r.PackRecord(index); ok {
			result = v
		}
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, result))
	return rpchandler.Handled
}

func (r *Records) span(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	var rng IndexRange
	if r.IndexRange != nil {
		rng = r.IndexRange()
	}
	result := cp.Map(map[string]*cp.Value{
		"min":  cp.Int(int64(rng.Min)),
		"max":  cp.Int(int64(rng.Max)),
		"span": cp.Int(int64(rng.Span)),
	})
	ctx.Client.Send(rpcmsg.NewResponse(msg, result))
	return rpchandler.Handled
}
