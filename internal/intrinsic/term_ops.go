package intrinsic

import "context"

type printArgs struct {
	Text string `json:"text"`
}

func termPrint(_ context.Context, _ *Env, call *Call, a printArgs) (map[string]any, error) {
	if call.Output != nil {
		call.Output(a.Text)
	}
	return map[string]any{}, nil
}

func termWhoami(_ context.Context, _ *Env, call *Call, _ struct{}) (map[string]any, error) {
	return map[string]any{
		"host":     call.Caller.HostID,
		"login":    call.Caller.Login,
		"cwd":      call.Caller.Cwd,
		"terminal": call.Caller.TerminalID,
	}, nil
}
