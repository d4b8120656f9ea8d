// Package transfer copies files between the two ends of a session or route.
// The remote end is the acting hop; the local end is hop 1's origin.
package transfer

import (
	"context"
	"path"

	"github.com/dustin/go-humanize"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/policy"
	"github.com/ppiankov/netshell/internal/session"
	"github.com/ppiankov/netshell/internal/vfs"
)

// DefaultMaxBytes caps a single transfer.
const DefaultMaxBytes = 1 << 20

// Request is one get or put.
type Request struct {
	Direction policy.Direction
	Via       session.Operand
	Remote    string
	Local     string // defaults to the remote base name in the local cwd
	Apply     bool
}

// Result describes a completed (or, in sandbox, validated) transfer.
type Result struct {
	Direction  policy.Direction `json:"direction"`
	RemoteHost string           `json:"remote_host"`
	RemotePath string           `json:"remote_path"`
	LocalHost  string           `json:"local_host"`
	LocalPath  string           `json:"local_path"`
	Bytes      int              `json:"bytes"`
	Applied    bool             `json:"applied"`
}

// Engine runs transfers against live session state.
type Engine struct {
	sessions *session.Manager
	maxBytes int64
}

// NewEngine creates an Engine. maxBytes <= 0 selects DefaultMaxBytes.
func NewEngine(sessions *session.Manager, maxBytes int64) *Engine {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Engine{sessions: sessions, maxBytes: maxBytes}
}

// SetMaxBytes replaces the size limit. Owner loop only.
func (e *Engine) SetMaxBytes(n int64) {
	if n <= 0 {
		n = DefaultMaxBytes
	}
	e.maxBytes = n
}

// MaxBytes returns the current size limit.
func (e *Engine) MaxBytes() int64 {
	return e.maxBytes
}

type side struct {
	host  *host.Host
	login string
	cwd   string
}

// Run performs every check before writing anything. The only mutation is the
// final write at the destination.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, model.Wrap(model.CodeInternalError, err, "transfer cancelled")
	}
	if req.Via == nil {
		return Result{}, model.Fail(model.CodeInvalidArgs, "transfer: a session or route is required")
	}
	switch {
	case req.Direction == policy.Download && req.Remote == "":
		return Result{}, model.Fail(model.CodeInvalidArgs, "transfer: missing remote path")
	case req.Direction == policy.Upload && req.Local == "":
		return Result{}, model.Fail(model.CodeInvalidArgs, "transfer: missing local path")
	case req.Direction != policy.Download && req.Direction != policy.Upload:
		return Result{}, model.Fail(model.CodeInvalidArgs, "transfer: unknown direction %q", req.Direction)
	}

	remoteHost, acting, err := e.sessions.ActingHost(req.Via, req.Apply)
	if err != nil {
		return Result{}, err
	}
	origin, _ := session.LocalEndpoint(req.Via)
	localHost, ok := e.sessions.Hosts().Host(origin.HostID)
	if !ok {
		return Result{}, model.Fail(model.CodeInvalidArgs, "transfer: unknown origin host %q", origin.HostID)
	}
	remote := side{host: remoteHost, login: acting.Login, cwd: acting.Cwd}
	local := side{host: localHost, login: origin.Login, cwd: origin.Cwd}

	client, ok := e.sessions.Hosts().Host(acting.Source.HostID)
	if !ok {
		return Result{}, model.Fail(model.CodeInvalidArgs, "transfer: unknown source host %q", acting.Source.HostID)
	}
	if _, err := policy.ReachService(client, remoteHost, host.ProtoFTP); err != nil {
		return Result{}, err
	}

	if err := policy.CheckTransfer(req.Direction,
		policy.Endpoint{Host: local.host, Login: local.login},
		policy.Endpoint{Host: remote.host, Login: remote.login},
	); err != nil {
		return Result{}, err
	}

	src, dst := remote, local
	srcPath := vfs.Clean(remote.cwd, req.Remote)
	dstPath := req.Local
	if req.Direction == policy.Upload {
		src, dst = local, remote
		srcPath = vfs.Clean(local.cwd, req.Local)
		dstPath = req.Remote
	}
	if dstPath == "" {
		dstPath = path.Base(srcPath)
	}
	dstPath = vfs.Clean(dst.cwd, dstPath)

	entry, data, err := e.readSource(src, srcPath)
	if err != nil {
		return Result{}, err
	}
	dstPath, err = destination(dst, dstPath, path.Base(srcPath))
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Direction:  req.Direction,
		RemoteHost: remote.host.ID,
		LocalHost:  local.host.ID,
		Bytes:      len(data),
	}
	res.RemotePath, res.LocalPath = srcPath, dstPath
	if req.Direction == policy.Upload {
		res.RemotePath, res.LocalPath = dstPath, srcPath
	}
	if !req.Apply {
		return res, nil
	}

	if entry.Program != "" {
		err = dst.host.FS.WriteProgram(dstPath, entry.Program, data)
	} else {
		err = dst.host.FS.WriteFile(dstPath, data)
	}
	if err != nil {
		return Result{}, err
	}
	res.Applied = true
	return res, nil
}

func (e *Engine) readSource(s side, p string) (vfs.Entry, []byte, error) {
	entry, err := s.host.FS.Stat(p)
	if err != nil {
		return vfs.Entry{}, nil, err
	}
	if entry.IsDir() {
		return vfs.Entry{}, nil, model.Fail(model.CodeNotFile, "%s: is a directory", p)
	}
	if int64(entry.Size) > e.maxBytes {
		return vfs.Entry{}, nil, model.Fail(model.CodeTooLarge, "%s: %s exceeds the %s transfer limit",
			p, humanize.IBytes(uint64(entry.Size)), humanize.IBytes(uint64(e.maxBytes)))
	}
	data, err := s.host.FS.ReadFile(p)
	if err != nil {
		return vfs.Entry{}, nil, err
	}
	return entry, data, nil
}

// destination resolves the write target: an existing directory receives the
// source base name; otherwise the parent directory must exist.
func destination(s side, p, base string) (string, error) {
	if s.host.FS.IsDir(p) {
		p = path.Join(p, base)
	}
	if !s.host.FS.IsDir(path.Dir(p)) {
		return "", model.Fail(model.CodeNotFound, "%s: no such directory on %s", path.Dir(p), s.host.ID)
	}
	if s.host.FS.IsDir(p) {
		return "", model.Fail(model.CodeNotFile, "%s: is a directory", p)
	}
	return p, nil
}
