package stages

import (
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcmsg"
)

// App answers the fixed ".app" method set, per spec section 4.4.4. The
// method set is small and closed, so dispatch is a plain switch rather
// than a generated perfect-hash table (see DESIGN.md's Open Question
// resolution for this stage).
type App struct {
	Name    string
	Version string
}

var appMethods = []rpcmsg.MethodDesc{
	{Name: "shvVersionMajor", Result: "Int", Access: rpcmsg.LevelRead},
	{Name: "shvVersionMinor", Result: "Int", Access: rpcmsg.LevelRead},
	{Name: "name", Result: "String", Access: rpcmsg.LevelRead},
	{Name: "version", Result: "String", Access: rpcmsg.LevelRead},
	{Name: "ping", Access: rpcmsg.LevelRead},
	{Name: "date", Result: "DateTime", Access: rpcmsg.LevelRead},
}

const (
	shvVersionMajor = 3
	shvVersionMinor = 0
)

func (a *App) Ls(ctx *rpchandler.Context, path string, names *rpchandler.NameSet) {
	if path == "" {
		names.Add(".app")
	}
}

func (a *App) Dir(ctx *rpchandler.Context, path string, methods *rpchandler.MethodSet) {
	if path != ".app" {
		return
	}
	for _, m := range appMethods {
		methods.Add(m)
	}
}

func (a *App) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Type != rpcmsg.TypeRequest || msg.ShvPath != ".app" {
		return rpchandler.Skip
	}

	var result *cp.Value
	switch msg.Method {
	case "shvVersionMajor":
		result = cp.Int(shvVersionMajor)
	case "shvVersionMinor":
		result = cp.Int(shvVersionMinor)
	case "name":
		result = cp.Str(a.Name)
	case "version":
		result = cp.Str(a.Version)
	case "ping":
		result = nil
	case "date":
		result = cp.DateTimeValue(cp.NewDateTime(time.Now()))
	default:
		return rpchandler.Skip
	}

	if err := ctx.Client.Send(rpcmsg.NewResponse(msg, result)); err != nil {
		return rpchandler.StageStop
	}
	return rpchandler.Handled
}
