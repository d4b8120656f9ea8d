// Package scheduler owns a world's mutable state. One owner goroutine serves
// synchronous terminal commands and the intrinsic requests of background
// programs, so host state needs no locks.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/ratelimit"
	"github.com/ppiankov/netshell/internal/session"
	"github.com/ppiankov/netshell/internal/transfer"
)

// Config wires a Scheduler. Transfer, Dispatcher and Intrinsics are built
// from Sessions and Programs when nil.
type Config struct {
	Sessions   *session.Manager
	Programs   *dispatch.Programs
	Transfer   *transfer.Engine
	Dispatcher *dispatch.Dispatcher
	Intrinsics *intrinsic.Registry
	Settings   Settings
	Logger     zerolog.Logger
	Now        func() time.Time
}

// Scheduler serializes all access to a world.
type Scheduler struct {
	env        *intrinsic.Env
	intrinsics *intrinsic.Registry
	probe      *ratelimit.ProbeLimiter
	settings   atomic.Pointer[Settings]
	log        zerolog.Logger
	now        func() time.Time

	inbox chan *request
	queue chan *request

	mu        sync.Mutex
	terminals map[string]*Terminal
}

// New creates a Scheduler. Nothing is served until Run or Pump is called.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("scheduler: session manager is required")
	}
	settings := cfg.Settings.normalized()
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Transfer == nil {
		cfg.Transfer = transfer.NewEngine(cfg.Sessions, settings.MaxTransfer)
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = dispatch.New(dispatch.Config{
			Sessions: cfg.Sessions,
			Transfer: cfg.Transfer,
			Programs: cfg.Programs,
			Search:   dispatch.SearchPolicy{SystemDir: settings.SystemDir},
			Logger:   cfg.Logger,
		})
	}
	if cfg.Intrinsics == nil {
		reg, err := intrinsic.Default()
		if err != nil {
			return nil, fmt.Errorf("scheduler: build intrinsics: %w", err)
		}
		cfg.Intrinsics = reg
	}

	s := &Scheduler{
		intrinsics: cfg.Intrinsics,
		probe:      ratelimit.NewProbeLimiter(settings.Probe),
		log:        cfg.Logger.With().Str("component", "scheduler").Logger(),
		now:        cfg.Now,
		inbox:      make(chan *request, 16),
		queue:      make(chan *request, settings.QueueSize),
		terminals:  make(map[string]*Terminal),
	}
	s.env = &intrinsic.Env{
		Sessions:   cfg.Sessions,
		Dispatcher: cfg.Dispatcher,
		Transfer:   cfg.Transfer,
		Probe:      s.probe,
		Now:        cfg.Now,
		Logger:     cfg.Logger,
	}
	s.settings.Store(&settings)
	return s, nil
}

// Settings returns the active settings.
func (s *Scheduler) Settings() Settings {
	return *s.settings.Load()
}

// UpdateSettings swaps the settings. QueueSize only applies to a new
// Scheduler; everything else takes effect for the next request.
func (s *Scheduler) UpdateSettings(ctx context.Context, next Settings) error {
	next = next.normalized()
	return s.do(ctx, "settings", func(context.Context) {
		s.settings.Store(&next)
		s.probe.Reconfigure(next.Probe)
		s.env.Transfer.SetMaxBytes(next.MaxTransfer)
		s.env.Dispatcher.SetSearch(dispatch.SearchPolicy{SystemDir: next.SystemDir})
		s.log.Info().
			Dur("queue_timeout", next.QueueTimeout).
			Bool("apply_background", next.ApplyBackground).
			Int("probe_max_calls", next.Probe.MaxCalls).
			Msg("settings updated")
	})
}

// Run is the owner loop. It returns when ctx is done, after interrupting
// every running program. Run and Pump must not be used at the same time.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Debug().Msg("owner loop started")
	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-s.inbox:
			serve(r)
		case r := <-s.queue:
			serve(r)
		}
	}
}

// Pump serves everything already posted and returns the number of requests
// that ran. Expired and abandoned requests are discarded without running.
func (s *Scheduler) Pump() int {
	n := 0
	for {
		select {
		case r := <-s.inbox:
			if serve(r) {
				n++
			}
		case r := <-s.queue:
			if serve(r) {
				n++
			}
		default:
			return n
		}
	}
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	terms := make([]*Terminal, 0, len(s.terminals))
	for _, t := range s.terminals {
		terms = append(terms, t)
	}
	s.mu.Unlock()
	for _, t := range terms {
		if e := t.running(); e != nil {
			e.interrupt()
		}
	}
	s.log.Debug().Msg("owner loop stopped")
}

// do runs fn on the owner loop and waits for it.
func (s *Scheduler) do(ctx context.Context, label string, fn func(ctx context.Context)) error {
	return submit(s.inbox, newRequest(ctx, nil, label, fn))
}

// OpenTerminal opens a console for login on hostID, starting in its home
// directory.
func (s *Scheduler) OpenTerminal(ctx context.Context, hostID, login string) (Status, error) {
	var t *Terminal
	var ferr error
	err := s.do(ctx, "open", func(context.Context) {
		h, ok := s.env.Sessions.Hosts().Host(hostID)
		if !ok {
			ferr = model.Fail(model.CodeNotFound, "%s: host not found", hostID)
			return
		}
		if _, ok := h.LookupLogin(login); !ok {
			ferr = model.Fail(model.CodeNotFound, "%s: no such user on %s", login, hostID)
			return
		}
		t = newTerminal(uuid.NewString(), session.Source{HostID: h.ID, Login: login, Cwd: h.HomeDir(login)})
	})
	if err != nil {
		return Status{}, err
	}
	if ferr != nil {
		return Status{}, ferr
	}
	s.mu.Lock()
	s.terminals[t.ID] = t
	s.mu.Unlock()
	s.log.Debug().Str("terminal", t.ID).Str("host", hostID).Str("login", login).Msg("terminal opened")
	return t.status(), nil
}

// CloseTerminal interrupts any running program and forgets the terminal.
// Sessions it opened stay open.
func (s *Scheduler) CloseTerminal(terminalID string) error {
	s.mu.Lock()
	t, ok := s.terminals[terminalID]
	delete(s.terminals, terminalID)
	s.mu.Unlock()
	if !ok {
		return unknownTerminal(terminalID)
	}
	if e := t.running(); e != nil {
		e.interrupt()
	}
	return nil
}

func (s *Scheduler) terminal(id string) (*Terminal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.terminals[id]
	if !ok {
		return nil, unknownTerminal(id)
	}
	return t, nil
}

func unknownTerminal(id string) error {
	return model.Fail(model.CodeNotFound, "%s: no such terminal", id)
}

// Status returns a terminal snapshot.
func (s *Scheduler) Status(terminalID string) (Status, error) {
	t, err := s.terminal(terminalID)
	if err != nil {
		return Status{}, err
	}
	return t.status(), nil
}

// CallerOf returns a terminal's acting context, for running intrinsics as
// the terminal.
func (s *Scheduler) CallerOf(terminalID string) (intrinsic.Caller, error) {
	t, err := s.terminal(terminalID)
	if err != nil {
		return intrinsic.Caller{}, err
	}
	return t.caller(), nil
}

// Drain returns and clears the output background programs wrote to a
// terminal.
func (s *Scheduler) Drain(terminalID string) ([]string, error) {
	t, err := s.terminal(terminalID)
	if err != nil {
		return nil, err
	}
	return t.out.drain(), nil
}

// CommandResult is the terminal-visible outcome of one command line.
type CommandResult struct {
	Code   model.Code `json:"code"`
	Lines  []string   `json:"lines"`
	RunID  string     `json:"run_id,omitempty"`
	Prompt string     `json:"prompt"`
}

// Command runs one line on a terminal, synchronously and with effects
// applied. Command failures are reported in the result; the error is only
// set when the line could not run at all.
func (s *Scheduler) Command(ctx context.Context, terminalID, line string) (CommandResult, error) {
	t, err := s.terminal(terminalID)
	if err != nil {
		return CommandResult{}, err
	}
	var res CommandResult
	if err := s.do(ctx, "command", func(ctx context.Context) {
		res = s.command(ctx, t, line)
	}); err != nil {
		return CommandResult{}, err
	}
	return res, nil
}

// command runs on the owner loop.
func (s *Scheduler) command(ctx context.Context, t *Terminal, line string) CommandResult {
	var res CommandResult
	if hop, fell := t.unwind(s.env.Sessions.IsOpen); fell {
		res.Lines = append(res.Lines, fmt.Sprintf("connection to %s lost", hop.HostID))
	}

	c := t.caller()
	r := s.env.Dispatcher.Execute(ctx, dispatch.Request{
		HostID:     c.HostID,
		Login:      c.Login,
		Cwd:        c.Cwd,
		Line:       line,
		TerminalID: t.ID,
		Route:      c.Route,
		Apply:      true,
	})
	res.Code = r.Code
	res.Lines = append(res.Lines, r.Lines()...)
	if r.Context != nil {
		t.setContext(*r.Context)
	}

	if r.Launch != nil {
		var perr error
		if r.Launch.Spec.Background {
			var e *Execution
			if e, perr = s.start(t, r.Launch); perr == nil {
				res.RunID = e.RunID
			}
		} else {
			rt := &directRuntime{
				s:      s,
				caller: invocationCaller(r.Launch.Invocation),
				print:  func(l string) { res.Lines = append(res.Lines, l) },
			}
			perr = r.Launch.Spec.Program.Run(ctx, rt, r.Launch.Invocation)
		}
		if perr != nil {
			res.Code = model.CodeOf(perr)
			res.Lines = append(res.Lines, "error: "+model.MessageOf(perr))
		}
	}
	res.Prompt = t.prompt()
	return res
}

func invocationCaller(inv dispatch.Invocation) intrinsic.Caller {
	return intrinsic.Caller{
		HostID:     inv.HostID,
		Login:      inv.Login,
		Cwd:        inv.Cwd,
		TerminalID: inv.TerminalID,
		Route:      inv.Route,
	}
}

// Start runs a program in the background on a terminal. A terminal runs at
// most one program at a time.
func (s *Scheduler) Start(terminalID string, launch *dispatch.Launch) (*Execution, error) {
	t, err := s.terminal(terminalID)
	if err != nil {
		return nil, err
	}
	return s.start(t, launch)
}

func (s *Scheduler) start(t *Terminal, launch *dispatch.Launch) (*Execution, error) {
	if launch == nil || launch.Spec.Program == nil {
		return nil, model.Fail(model.CodeInvalidArgs, "nothing to run")
	}
	t.mu.Lock()
	if t.exec != nil {
		select {
		case <-t.exec.done:
		default:
			name := t.exec.Program
			t.mu.Unlock()
			return nil, model.Fail(model.CodeConflict, "%s: already running", name)
		}
	}
	e := newExecution(context.Background(), t.ID, uuid.NewString(), launch.Invocation.Name, t.out, s.now())
	t.exec = e
	t.mu.Unlock()

	rt := &queueRuntime{
		s:      s,
		exec:   e,
		caller: invocationCaller(launch.Invocation),
		apply:  s.Settings().ApplyBackground,
		print:  e.print,
	}
	log := s.log.With().Str("terminal", t.ID).Str("run", e.RunID).Str("program", e.Program).Logger()
	log.Debug().Bool("apply", rt.apply).Msg("program started")

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = model.Fail(model.CodeInternalError, "%s: program panicked: %v", e.Program, r)
			}
			e.finish(err)
			log.Debug().Err(e.Err()).Dur("elapsed", s.now().Sub(e.StartedAt)).Msg("program finished")
		}()
		err = launch.Spec.Program.Run(e.ctx, rt, launch.Invocation)
	}()
	return e, nil
}

// Interrupt kills the program running on a terminal. It reports whether a
// program was running. When it returns, the program can no longer change
// the world.
func (s *Scheduler) Interrupt(terminalID string) (bool, error) {
	t, err := s.terminal(terminalID)
	if err != nil {
		return false, err
	}
	e := t.running()
	if e == nil {
		return false, nil
	}
	killed := e.interrupt()
	if killed {
		s.log.Debug().Str("terminal", terminalID).Str("run", e.RunID).Msg("program interrupted")
	}
	return killed, nil
}

// Wait blocks until the terminal's latest program returns and yields its
// result. It returns nil at once if nothing ever ran.
func (s *Scheduler) Wait(ctx context.Context, terminalID string) error {
	t, err := s.terminal(terminalID)
	if err != nil {
		return err
	}
	t.mu.Lock()
	e := t.exec
	t.mu.Unlock()
	if e == nil {
		return nil
	}
	select {
	case <-e.done:
		return e.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs one intrinsic through the queue for an external caller, with the
// same deadline as a background program's calls. Lines the call prints are
// returned under "printed".
func (s *Scheduler) Call(ctx context.Context, caller intrinsic.Caller, name string, args map[string]any) (map[string]any, error) {
	var printed []string
	rt := &queueRuntime{
		s:      s,
		caller: caller,
		apply:  true,
		print:  func(l string) { printed = append(printed, l) },
	}
	res, err := rt.Call(ctx, name, args)
	if len(printed) > 0 {
		res["printed"] = printed
	}
	return res, err
}
