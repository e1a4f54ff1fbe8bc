package stages

import (
	"errors"
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpcmsg"
)

// FileAccess is a bitwise combination of access grants for a File node,
// per original_source's rpcfile.h rpcfile_access enum.
type FileAccess uint32

const (
	FileAccessValidation FileAccess = 1 << 0
	FileAccessRead       FileAccess = 1 << 1
	FileAccessWrite      FileAccess = 1 << 2
	FileAccessTruncate   FileAccess = 1 << 3
	FileAccessAppend     FileAccess = 1 << 4
)

// FileStat mirrors rpcfile_stat_s.
type FileStat struct {
	Size       int64
	PageSize   int64
	MaxWrite   int64
	AccessTime time.Time
	ModTime    time.Time
}

func (s FileStat) toValue() *cp.Value {
	m := cp.NewIMap()
	m.Set(0, cp.Int(0)) // RPCFILE_STAT_TYPE_REGULAR
	m.Set(1, cp.Int(s.Size))
	m.Set(2, cp.Int(s.PageSize))
	m.Set(3, cp.DateTimeValue(cp.NewDateTime(s.AccessTime)))
	m.Set(4, cp.DateTimeValue(cp.NewDateTime(s.ModTime)))
	m.Set(5, cp.Int(s.MaxWrite))
	return cp.IMapValue(m)
}

// FileProvider is the storage backend for one Files node, per
// original_source's rpchandler_file.h: a single file-like blob exposed
// over RPC for download/upload, distinct from the block-oriented
// Records/history log.
type FileProvider interface {
	Stat() (FileStat, error)
	ReadAt(offset, size int64) ([]byte, error)
	WriteAt(offset int64, data []byte) error
}

// Files exposes one FileProvider under ".files/<path>", per
// original_source's rpcfile.h/rpchandler_file.h (supplemented feature:
// single-file RPC download/upload, distinct from the storage backend
// itself which stays an external collaborator).
type Files struct {
	Path     string
	Provider FileProvider
	Access   FileAccess
}

func (f *Files) nodePath() string { return ".files/" + f.Path }

func (f *Files) methods() []rpcmsg.MethodDesc {
	methods := []rpcmsg.MethodDesc{
		{Name: "stat", Result: "IMap", Access: rpcmsg.LevelRead},
		{Name: "size", Result: "Int", Access: rpcmsg.LevelRead},
	}
	if f.Access&FileAccessRead != 0 {
		methods = append(methods, rpcmsg.MethodDesc{Name: "read", Param: "[Int, Int]", Result: "Blob", Access: rpcmsg.LevelRead})
	}
	if f.Access&FileAccessWrite != 0 {
		methods = append(methods, rpcmsg.MethodDesc{Name: "write", Param: "[Int, Blob]", Access: rpcmsg.LevelWrite})
	}
	return methods
}

func (f *Files) Ls(ctx *rpchandler.Context, path string, names *rpchandler.NameSet) {
	switch path {
	case "":
		names.Add(".files")
	case ".files":
		names.Add(f.Path)
	}
}

func (f *Files) Dir(ctx *rpchandler.Context, path string, methods *rpchandler.MethodSet) {
	if path != f.nodePath() {
		return
	}
	for _, m := range f.methods() {
		methods.Add(m)
	}
}

func (f *Files) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Type != rpcmsg.TypeRequest || msg.ShvPath != f.nodePath() {
		return rpchandler.Skip
	}

	switch msg.Method {
	case "stat":
		return f.msgStat(ctx)
	case "size":
		return f.msgSize(ctx)
	case "read":
		return f.msgRead(ctx)
	case "write":
		return f.msgWrite(ctx)
	default:
		return rpchandler.Skip
	}
}

func (f *Files) msgStat(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	stat, err := f.Provider.Stat()
	if err != nil {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InternalErr, err.Error())))
		return rpchandler.Handled
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, stat.toValue()))
	return rpchandler.Handled
}

func (f *Files) msgSize(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	stat, err := f.Provider.Stat()
	if err != nil {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InternalErr, err.Error())))
		return rpchandler.Handled
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, cp.Int(stat.Size)))
	return rpchandler.Handled
}

func (f *Files) msgRead(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if f.Access&FileAccessRead == 0 {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InvalidRequest, "read not allowed")))
		return rpchandler.Handled
	}
	offset, size, err := readArgs(msg.Param)
	if err != nil {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InvalidParam, err.Error())))
		return rpchandler.Handled
	}
	data, err := f.Provider.ReadAt(offset, size)
	if err != nil {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InternalErr, err.Error())))
		return rpchandler.Handled
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, cp.Blob(data)))
	return rpchandler.Handled
}

func (f *Files) msgWrite(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if f.Access&FileAccessWrite == 0 {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InvalidRequest, "write not allowed")))
		return rpchandler.Handled
	}
	if msg.Param == nil || msg.Param.Kind != cp.KindList || len(msg.Param.List) != 2 {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InvalidParam, "write requires [offset, data]")))
		return rpchandler.Handled
	}
	offsetItem, dataItem := msg.Param.List[0], msg.Param.List[1]
	if offsetItem.Kind != cp.KindInt || dataItem.Kind != cp.KindBlob {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InvalidParam, "write requires [Int, Blob]")))
		return rpchandler.Handled
	}
	if err := f.Provider.WriteAt(offsetItem.Int, dataItem.Blob); err != nil {
		ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InternalErr, err.Error())))
		return rpchandler.Handled
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, nil))
	return rpchandler.Handled
}

func readArgs(param *cp.Value) (offset, size int64, err error) {
	if param == nil || param.Kind != cp.KindList || len(param.List) != 2 {
		return 0, 0, errInvalidReadParam
	}
	a, b := param.List[0], param.List[1]
	if a.Kind != cp.KindInt || b.Kind != cp.KindInt {
		return 0, 0, errInvalidReadParam
	}
	return a.Int, b.Int, nil
}

var errInvalidReadParam = errors.New("read requires [Int offset, Int size]")
