package intrinsic

import (
	"context"
	"path"

	"github.com/dustin/go-humanize"

	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/policy"
	"github.com/ppiankov/netshell/internal/vfs"
)

type pathArgs struct {
	Path string `json:"path" validate:"required"`
	Via  any    `json:"via"`
}

type writeArgs struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
	Via     any    `json:"via"`
}

// fsActor resolves the acting identity, checks its privileges and returns the
// absolute path the operation targets.
func fsActor(env *Env, call *Call, via any, p string, needs ...policy.Need) (actor, string, error) {
	act, err := env.resolve(call, via)
	if err != nil {
		return actor{}, "", err
	}
	if err := policy.RequirePrivilege(act.host, act.login, needs...); err != nil {
		return actor{}, "", err
	}
	return act, vfs.Clean(act.cwd, p), nil
}

func fsRead(_ context.Context, env *Env, call *Call, a pathArgs) (map[string]any, error) {
	act, p, err := fsActor(env, call, a.Via, a.Path, policy.NeedRead)
	if err != nil {
		return nil, err
	}
	data, err := act.host.FS.ReadFile(p)
	if err != nil {
		return nil, err
	}
	if !vfs.IsText(data) {
		return nil, model.Fail(model.CodeNotTextFile, "%s: not a text file", p)
	}
	return map[string]any{"path": p, "content": string(data), "size": len(data)}, nil
}

func fsWrite(_ context.Context, env *Env, call *Call, a writeArgs) (map[string]any, error) {
	act, p, err := fsActor(env, call, a.Via, a.Path, policy.NeedWrite)
	if err != nil {
		return nil, err
	}
	if act.host.FS.IsDir(p) {
		return nil, model.Fail(model.CodeNotFile, "%s: is a directory", p)
	}
	if !call.Apply {
		if err := checkParent(act, p); err != nil {
			return nil, err
		}
	} else if err := act.host.FS.WriteFile(p, []byte(a.Content)); err != nil {
		return nil, err
	}
	return map[string]any{"path": p, "size": len(a.Content), "applied": call.Apply}, nil
}

func fsList(_ context.Context, env *Env, call *Call, a pathArgs) (map[string]any, error) {
	act, p, err := fsActor(env, call, a.Via, a.Path, policy.NeedRead)
	if err != nil {
		return nil, err
	}
	entries, err := act.host.FS.List(p)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = entryMap(e)
	}
	return map[string]any{"path": p, "entries": out}, nil
}

func fsStat(_ context.Context, env *Env, call *Call, a pathArgs) (map[string]any, error) {
	act, p, err := fsActor(env, call, a.Via, a.Path, policy.NeedRead)
	if err != nil {
		return nil, err
	}
	e, err := act.host.FS.Stat(p)
	if err != nil {
		return nil, err
	}
	return entryMap(e), nil
}

func fsDelete(_ context.Context, env *Env, call *Call, a pathArgs) (map[string]any, error) {
	act, p, err := fsActor(env, call, a.Via, a.Path, policy.NeedWrite)
	if err != nil {
		return nil, err
	}
	if !call.Apply {
		e, err := act.host.FS.Stat(p)
		if err != nil {
			return nil, err
		}
		if e.IsDir() {
			if children, _ := act.host.FS.List(p); len(children) > 0 {
				return nil, model.Fail(model.CodeNotEmpty, "%s: directory not empty", p)
			}
		}
		return map[string]any{"path": p, "applied": false}, nil
	}
	if err := act.host.FS.Remove(p); err != nil {
		return nil, err
	}
	return map[string]any{"path": p, "applied": true}, nil
}

func fsMkdir(_ context.Context, env *Env, call *Call, a pathArgs) (map[string]any, error) {
	act, p, err := fsActor(env, call, a.Via, a.Path, policy.NeedWrite)
	if err != nil {
		return nil, err
	}
	if !call.Apply {
		if act.host.FS.Exists(p) {
			return nil, model.Fail(model.CodeConflict, "%s: already exists", p)
		}
		if err := checkParent(act, p); err != nil {
			return nil, err
		}
		return map[string]any{"path": p, "applied": false}, nil
	}
	if err := act.host.FS.Mkdir(p); err != nil {
		return nil, err
	}
	return map[string]any{"path": p, "applied": true}, nil
}

// checkParent mirrors the write-path checks of the filesystem without writing.
func checkParent(act actor, p string) error {
	dir := path.Dir(p)
	e, err := act.host.FS.Stat(dir)
	if err != nil {
		return err
	}
	if !e.IsDir() {
		return model.Fail(model.CodeNotDirectory, "%s: not a directory", dir)
	}
	return nil
}

func entryMap(e vfs.Entry) map[string]any {
	m := map[string]any{
		"name":       e.Name,
		"path":       e.Path,
		"kind":       e.Kind.String(),
		"size":       e.Size,
		"human_size": humanize.IBytes(uint64(e.Size)),
	}
	if e.Program != "" {
		m["program"] = e.Program
	}
	return m
}
