package stages

import (
	"time"

	cp "github.com/shvgo/shv/chainpack"
	"github.com/shvgo/shv/rpchandler"
	"github.com/shvgo/shv/rpcerror"
	"github.com/shvgo/shv/rpcmsg"
)

// Alert is one device alert record, per original_source's rpcalerts.h:
// a severity level (0..63, access-level-shaped but used here as a plain
// priority scale), a machine-readable id, and the time it was raised.
type Alert struct {
	Time  time.Time
	Level int
	ID    string
}

func (a Alert) toValue() *cp.Value {
	return cp.Map(map[string]*cp.Value{
		"date":  cp.DateTimeValue(cp.NewDateTime(a.Time)),
		"level": cp.Int(int64(a.Level)),
		"id":    cp.Str(a.ID),
	})
}

// Device answers the ".device" method set and an ".device/alerts" list,
// per original_source's rpcalerts.h (supplemented feature).
type Device struct {
	Name         string
	Version      string
	SerialNumber string
	StartedAt    time.Time

	// Reset, if set, is invoked to answer the "reset" method: the device
	// restarts whatever Reset implements and the stage replies void.
	Reset func() error

	// Alerts, if set, is called to snapshot the device's current alerts
	// for the "alerts" sub-node's "get" method.
	Alerts func() []Alert
}

var deviceMethods = []rpcmsg.MethodDesc{
	{Name: "name", Result: "String", Access: rpcmsg.LevelRead},
	{Name: "version", Result: "String", Access: rpcmsg.LevelRead},
	{Name: "serialNumber", Result: "String", Access: rpcmsg.LevelRead},
	{Name: "uptime", Result: "Int", Access: rpcmsg.LevelRead},
	{Name: "reset", Access: rpcmsg.LevelCommand},
}

var deviceAlertsMethods = []rpcmsg.MethodDesc{
	{Name: "get", Result: "[Map]", Access: rpcmsg.LevelRead},
}

func (d *Device) Ls(ctx *rpchandler.Context, path string, names *rpchandler.NameSet) {
	switch path {
	case "":
		names.Add(".device")
	case ".device":
		names.Add("alerts")
	}
}

func (d *Device) Dir(ctx *rpchandler.Context, path string, methods *rpchandler.MethodSet) {
	switch path {
	case ".device":
		for _, m := range deviceMethods {
			methods.Add(m)
		}
	case ".device/alerts":
		for _, m := range deviceAlertsMethods {
			methods.Add(m)
		}
	}
}

func (d *Device) Msg(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Type != rpcmsg.TypeRequest {
		return rpchandler.Skip
	}

	switch msg.ShvPath {
	case ".device":
		return d.msgDevice(ctx)
	case ".device/alerts":
		return d.msgAlerts(ctx)
	default:
		return rpchandler.Skip
	}
}

func (d *Device) msgDevice(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	var result *cp.Value
	switch msg.Method {
	case "name":
		result = cp.Str(d.Name)
	case "version":
		result = cp.Str(d.Version)
	case "serialNumber":
		result = cp.Str(d.SerialNumber)
	case "uptime":
		result = cp.Int(int64(time.Since(d.StartedAt).Seconds()))
	case "reset":
		if d.Reset != nil {
			if err := d.Reset(); err != nil {
				ctx.Client.Send(rpcmsg.NewErrorResponse(msg, rpcerror.New(rpcerror.InternalErr, err.Error())))
				return rpchandler.Handled
			}
		}
		result = nil
	default:
		return rpchandler.Skip
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, result))
	return rpchandler.Handled
}

func (d *Device) msgAlerts(ctx *rpchandler.Context) rpchandler.Outcome {
	msg := ctx.Msg
	if msg.Method != "get" {
		return rpchandler.Skip
	}
	var alerts []Alert
	if d.Alerts != nil {
		alerts = d.Alerts()
	}
	items := make([]*cp.Value, len(alerts))
	for i, a := range alerts {
		items[i] = a.toValue()
	}
	ctx.Client.Send(rpcmsg.NewResponse(msg, cp.List(items...)))
	return rpchandler.Handled
}
