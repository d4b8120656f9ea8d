package intrinsic

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/ratelimit"
	"github.com/ppiankov/netshell/internal/session"
	"github.com/ppiankov/netshell/internal/transfer"
)

// Env is the live state intrinsics act on. Only the owner loop touches it.
type Env struct {
	Sessions   *session.Manager
	Dispatcher *dispatch.Dispatcher
	Transfer   *transfer.Engine
	Probe      *ratelimit.ProbeLimiter
	Now        func() time.Time
	Logger     zerolog.Logger
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Caller is the context the runtime resolved for a call: the acting host,
// login and cwd of the program, plus the terminal's route when it has one.
type Caller struct {
	HostID     string
	Login      string
	Cwd        string
	TerminalID string
	Route      session.Operand
}

// Call is one intrinsic invocation.
type Call struct {
	Name   string
	Caller Caller
	Args   map[string]any
	Apply  bool
	Output func(line string)
}

// actor is the identity an operation runs as, after applying via.
type actor struct {
	host  *host.Host
	login string
	cwd   string
	via   session.Operand
}

// resolve picks the acting identity: the via operand's acting hop when one is
// given, otherwise the caller. Malformed operands fail before anything else.
func (e *Env) resolve(call *Call, via any) (actor, error) {
	op, err := session.FromValue(via)
	if err != nil {
		return actor{}, err
	}
	if op == nil {
		h, ok := e.Sessions.Hosts().Host(call.Caller.HostID)
		if !ok {
			return actor{}, model.Fail(model.CodeInvalidArgs, "unknown caller host %q", call.Caller.HostID)
		}
		cwd := call.Caller.Cwd
		if cwd == "" {
			cwd = "/"
		}
		return actor{host: h, login: call.Caller.Login, cwd: cwd}, nil
	}
	h, s, err := e.Sessions.ActingHost(op, call.Apply)
	if err != nil {
		return actor{}, err
	}
	return actor{host: h, login: s.Login, cwd: s.Cwd, via: op}, nil
}

// source is the caller's context as session provenance.
func (c Caller) source() session.Source {
	return session.Source{HostID: c.HostID, Login: c.Login, Cwd: c.Cwd}
}
