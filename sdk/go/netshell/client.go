package netshell

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ppiankov/netshell/internal/audit"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/scheduler"
	"github.com/ppiankov/netshell/internal/world"
)

// Client owns one running world. Safe for concurrent use.
type Client struct {
	world  *world.World
	log    *audit.Log
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// New builds the world and starts its scheduler.
func New(opts ...Option) (*Client, error) {
	var cfg clientConfig
	cfg.world = world.DefaultName
	for _, o := range opts {
		o(&cfg)
	}

	bp, err := world.Load(cfg.world)
	if err != nil {
		return nil, fmt.Errorf("netshell: failed to load world: %w", err)
	}
	settings, _, err := scheduler.LoadSettings(cfg.settingsPath)
	if err != nil {
		return nil, fmt.Errorf("netshell: %w", err)
	}

	c := &Client{done: make(chan struct{})}
	wopts := world.Options{Settings: settings, Logger: cfg.logger}
	if cfg.auditPath != "" {
		c.log, err = audit.Open(cfg.auditPath)
		if err != nil {
			return nil, fmt.Errorf("netshell: %w", err)
		}
		wopts.Audit = c.log
	}
	c.world, err = world.Build(bp, wopts)
	if err != nil {
		if c.log != nil {
			_ = c.log.Close()
		}
		return nil, fmt.Errorf("netshell: failed to build world %q: %w", bp.Name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		defer close(c.done)
		_ = c.world.Scheduler.Run(ctx)
	}()
	return c, nil
}

// World returns the world's name.
func (c *Client) World() string {
	return c.world.Name
}

// Close stops the scheduler, killing running programs, and closes the audit
// log.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		if c.log != nil {
			err = c.log.Close()
		}
	})
	return err
}

// Open starts a terminal at the world's start host.
func (c *Client) Open(ctx context.Context) (*Terminal, error) {
	return c.OpenAt(ctx, c.world.Start.Host, c.world.Start.Login)
}

// OpenAt starts a terminal as login on hostID.
func (c *Client) OpenAt(ctx context.Context, hostID, login string) (*Terminal, error) {
	st, err := c.world.Scheduler.OpenTerminal(ctx, hostID, login)
	if err != nil {
		return nil, err
	}
	return &Terminal{sched: c.world.Scheduler, id: st.TerminalID}, nil
}

// Terminal is one operator terminal.
type Terminal struct {
	sched *scheduler.Scheduler
	id    string
}

// ID returns the terminal id.
func (t *Terminal) ID() string {
	return t.id
}

// Run executes one line. Command failures are reported in the Result.
func (t *Terminal) Run(ctx context.Context, line string) (Result, error) {
	res, err := t.sched.Command(ctx, t.id, line)
	if err != nil {
		return Result{}, err
	}
	return toResult(res), nil
}

// Exec runs one line and waits for any background program it started. A
// failed line returns *CommandError.
func (t *Terminal) Exec(ctx context.Context, line string) ([]string, error) {
	res, err := t.Run(ctx, line)
	if err != nil {
		return nil, err
	}
	lines := res.Lines
	if !res.OK() {
		return lines, commandError(line, res.Code, lines)
	}
	if res.RunID == "" {
		return lines, nil
	}
	werr := t.sched.Wait(ctx, t.id)
	printed, err := t.sched.Drain(t.id)
	if err != nil {
		return lines, err
	}
	lines = append(lines, printed...)
	if werr != nil {
		return lines, &CommandError{Line: line, Code: string(model.CodeOf(werr)), Message: model.MessageOf(werr), Lines: lines}
	}
	return lines, nil
}

func commandError(line, code string, lines []string) *CommandError {
	msg := ""
	if n := len(lines); n > 0 {
		msg = strings.TrimPrefix(lines[n-1], "error: ")
	}
	return &CommandError{Line: line, Code: code, Message: msg, Lines: lines}
}

// Call runs one intrinsic as the terminal's acting identity and returns its
// result map.
func (t *Terminal) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	caller, err := t.sched.CallerOf(t.id)
	if err != nil {
		return nil, err
	}
	return t.sched.Call(ctx, caller, name, args)
}

// Interrupt kills the running background program, if any.
func (t *Terminal) Interrupt() (bool, error) {
	return t.sched.Interrupt(t.id)
}

// Output returns background output written since the last call.
func (t *Terminal) Output() ([]string, error) {
	return t.sched.Drain(t.id)
}

// Prompt returns the current "login@host:cwd$" prompt.
func (t *Terminal) Prompt() (string, error) {
	st, err := t.sched.Status(t.id)
	if err != nil {
		return "", err
	}
	return st.Prompt, nil
}

// Close releases the terminal. Sessions it opened stay open on their hosts.
func (t *Terminal) Close() error {
	return t.sched.CloseTerminal(t.id)
}
