package intrinsic

import (
	"context"

	"github.com/ppiankov/netshell/internal/policy"
	"github.com/ppiankov/netshell/internal/session"
	"github.com/ppiankov/netshell/internal/transfer"
)

type ftpGetArgs struct {
	Via    any    `json:"via" validate:"required"`
	Remote string `json:"remote" validate:"required"`
	Local  string `json:"local"`
}

type ftpPutArgs struct {
	Via    any    `json:"via" validate:"required"`
	Local  string `json:"local" validate:"required"`
	Remote string `json:"remote"`
}

func ftpGet(ctx context.Context, env *Env, call *Call, a ftpGetArgs) (map[string]any, error) {
	return runTransfer(ctx, env, call, a.Via, transfer.Request{Direction: policy.Download, Remote: a.Remote, Local: a.Local})
}

func ftpPut(ctx context.Context, env *Env, call *Call, a ftpPutArgs) (map[string]any, error) {
	return runTransfer(ctx, env, call, a.Via, transfer.Request{Direction: policy.Upload, Remote: a.Remote, Local: a.Local})
}

func runTransfer(ctx context.Context, env *Env, call *Call, via any, req transfer.Request) (map[string]any, error) {
	op, err := session.FromValue(via)
	if err != nil {
		return nil, err
	}
	req.Via = op
	req.Apply = call.Apply
	res, err := env.Transfer.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"direction":   string(res.Direction),
		"remote_host": res.RemoteHost,
		"remote_path": res.RemotePath,
		"local_host":  res.LocalHost,
		"local_path":  res.LocalPath,
		"bytes":       res.Bytes,
		"applied":     res.Applied,
	}, nil
}
