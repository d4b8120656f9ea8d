// Package dispatch resolves terminal command lines to a built-in handler or a
// program found through the filesystem search path.
package dispatch

import (
	"context"
	"sort"

	"github.com/anmitsu/go-shlex"
	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/policy"
	"github.com/ppiankov/netshell/internal/session"
	"github.com/ppiankov/netshell/internal/transfer"
)

// Request is one command line typed on a terminal. HostID, Login and Cwd are
// the acting context; Route is the terminal's current chain, nil when local.
type Request struct {
	HostID     string
	Login      string
	Cwd        string
	Line       string
	TerminalID string
	Route      session.Operand
	Apply      bool
}

// Context is a terminal context transition. A nil Route returns the terminal
// to its origin host.
type Context struct {
	Route session.Operand
	Cwd   string
}

// Launch is a program the caller must run after dispatch.
type Launch struct {
	Spec       Spec
	Invocation Invocation
}

// Result is the outcome of one command line.
type Result struct {
	Code    model.Code
	Err     error
	Output  []string
	Launch  *Launch
	Context *Context
}

// Lines renders the result as terminal text.
func (r Result) Lines() []string {
	if r.Err == nil {
		return r.Output
	}
	return append(append([]string(nil), r.Output...), "error: "+model.MessageOf(r.Err))
}

func ok(lines ...string) Result {
	return Result{Code: model.CodeOK, Output: lines}
}

func failed(err error) Result {
	return Result{Code: model.CodeOf(err), Err: err}
}

// Config wires a Dispatcher.
type Config struct {
	Sessions *session.Manager
	Transfer *transfer.Engine
	Programs *Programs
	Search   SearchPolicy
	Logger   zerolog.Logger
}

type builtin struct {
	usage string
	run   func(d *Dispatcher, ctx context.Context, req Request, args []string) Result
}

// Dispatcher executes command lines. Like the session manager it runs only on
// the scheduler's owner loop.
type Dispatcher struct {
	sessions *session.Manager
	transfer *transfer.Engine
	programs *Programs
	search   SearchPolicy
	log      zerolog.Logger
	builtins map[string]builtin
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Programs == nil {
		cfg.Programs = NewPrograms()
	}
	if cfg.Transfer == nil {
		cfg.Transfer = transfer.NewEngine(cfg.Sessions, 0)
	}
	d := &Dispatcher{
		sessions: cfg.Sessions,
		transfer: cfg.Transfer,
		programs: cfg.Programs,
		search:   cfg.Search,
		log:      cfg.Logger.With().Str("component", "dispatch").Logger(),
	}
	d.builtins = builtinTable()
	return d
}

// Search returns the program search policy.
func (d *Dispatcher) Search() SearchPolicy {
	return d.search
}

// SetSearch replaces the program search policy. Owner loop only.
func (d *Dispatcher) SetSearch(p SearchPolicy) {
	d.search = p
}

// Programs returns the program table.
func (d *Dispatcher) Programs() *Programs {
	return d.programs
}

// Builtins lists built-in command names in order.
func (d *Dispatcher) Builtins() []string {
	out := make([]string, 0, len(d.builtins))
	for name := range d.builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute runs one command line: built-ins first, then program fallback.
func (d *Dispatcher) Execute(ctx context.Context, req Request) Result {
	if err := ctx.Err(); err != nil {
		return failed(model.Wrap(model.CodeInternalError, err, "command cancelled"))
	}
	tokens, err := shlex.Split(req.Line, true)
	if err != nil {
		return failed(model.Wrap(model.CodeInvalidArgs, err, "parse error"))
	}
	if len(tokens) == 0 {
		return ok()
	}
	h, known := d.sessions.Hosts().Host(req.HostID)
	if !known {
		return failed(model.Fail(model.CodeInvalidArgs, "unknown host %q", req.HostID))
	}
	if req.Cwd == "" {
		req.Cwd = "/"
	}

	if b, found := d.builtins[tokens[0]]; found {
		d.log.Debug().Str("host", h.ID).Str("builtin", tokens[0]).Msg("dispatch")
		return b.run(d, ctx, req, tokens[1:])
	}
	return d.fallback(h, req, tokens)
}

// fallback resolves a program through the search policy. Every way of not
// finding a runnable program reports the same unknown-command failure.
func (d *Dispatcher) fallback(h *host.Host, req Request, tokens []string) Result {
	name := tokens[0]
	entry, found := d.search.Resolve(h.FS, req.Cwd, name)
	if !found {
		return failed(unknownCommand(name))
	}
	spec, registered := d.programs.Lookup(entry.Program)
	if !registered {
		return failed(unknownCommand(name))
	}
	if err := policy.RequirePrivilege(h, req.Login, policy.NeedRead, policy.NeedExecute); err != nil {
		return failed(err)
	}
	d.log.Debug().Str("host", h.ID).Str("program", entry.Path).Bool("background", spec.Background).Msg("launch")
	return Result{
		Code: model.CodeOK,
		Launch: &Launch{
			Spec: spec,
			Invocation: Invocation{
				Name:       name,
				Path:       entry.Path,
				Args:       tokens[1:],
				HostID:     h.ID,
				Login:      req.Login,
				Cwd:        req.Cwd,
				TerminalID: req.TerminalID,
				Route:      req.Route,
			},
		},
	}
}

func unknownCommand(name string) error {
	return model.Fail(model.CodeUnknownCommand, "%s: command not found", name)
}
