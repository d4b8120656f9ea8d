package intrinsic

import (
	"context"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/session"
)

// LaunchKey carries a program the exec intrinsic resolved but did not run.
// The runtime removes it before a result reaches a script.
const LaunchKey = "_launch"

// TakeLaunch removes and returns a pending launch from an exec result.
func TakeLaunch(res map[string]any) *dispatch.Launch {
	l, ok := res[LaunchKey].(*dispatch.Launch)
	delete(res, LaunchKey)
	if !ok {
		return nil
	}
	return l
}

type connectArgs struct {
	Host     string `json:"host" validate:"required"`
	Login    string `json:"login"`
	Password string `json:"password"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Via      any    `json:"via"`
}

func connectOp(ctx context.Context, env *Env, call *Call, a connectArgs) (map[string]any, error) {
	via, err := session.FromValue(a.Via)
	if err != nil {
		return nil, err
	}
	op, err := env.Sessions.Connect(ctx, session.ConnectRequest{
		Target:     a.Host,
		Port:       a.Port,
		Login:      a.Login,
		Credential: a.Password,
		Via:        via,
		Caller:     call.Caller.source(),
		Apply:      call.Apply,
	})
	if err != nil {
		return nil, err
	}
	return session.ToMap(op), nil
}

type disconnectArgs struct {
	Target any `json:"target" validate:"required"`
}

func disconnectOp(ctx context.Context, env *Env, call *Call, a disconnectArgs) (map[string]any, error) {
	op, err := session.FromValue(a.Target)
	if err != nil {
		return nil, err
	}
	res, err := env.Sessions.Disconnect(ctx, op, call.Apply)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"disconnected": res.Disconnected}
	if res.Summary != nil {
		out["summary"] = map[string]any{
			"requested":      res.Summary.Requested,
			"closed":         res.Summary.Closed,
			"already_closed": res.Summary.AlreadyClosed,
		}
	}
	return out, nil
}

type execArgs struct {
	Command string `json:"command" validate:"required"`
	Via     any    `json:"via"`
}

// execOp runs one command line as the acting identity. Programs are not run
// here; the launch is handed back to the runtime.
func execOp(ctx context.Context, env *Env, call *Call, a execArgs) (map[string]any, error) {
	act, err := env.resolve(call, a.Via)
	if err != nil {
		return nil, err
	}
	route := act.via
	if route == nil {
		route = call.Caller.Route
	}
	res := env.Dispatcher.Execute(ctx, dispatch.Request{
		HostID:     act.host.ID,
		Login:      act.login,
		Cwd:        act.cwd,
		Line:       a.Command,
		TerminalID: call.Caller.TerminalID,
		Route:      route,
		Apply:      call.Apply,
	})
	if res.Err != nil {
		return nil, res.Err
	}

	out := map[string]any{
		"code":   string(model.CodeOK),
		"output": toAnySlice(res.Output),
	}
	if res.Context != nil {
		out["cwd"] = res.Context.Cwd
		if res.Context.Route != nil {
			out["route"] = session.ToMap(res.Context.Route)
		}
	}
	if res.Launch != nil {
		out[LaunchKey] = res.Launch
	}
	return out, nil
}

func toAnySlice(lines []string) []any {
	out := make([]any, len(lines))
	for i, l := range lines {
		out[i] = l
	}
	return out
}
