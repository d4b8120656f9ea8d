package scheduler

import (
	"fmt"
	"sync"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
	"github.com/ppiankov/netshell/internal/session"
)

// Terminal is one operator console. It starts on its origin host and follows
// the route built by connect and disconnect.
type Terminal struct {
	ID     string
	Origin session.Source

	mu    sync.Mutex
	route session.Operand
	cwd   string
	exec  *Execution
	out   *outbox
}

func newTerminal(id string, origin session.Source) *Terminal {
	return &Terminal{ID: id, Origin: origin, cwd: origin.Cwd, out: &outbox{}}
}

// caller returns the acting context: the route's last hop, or the origin.
func (t *Terminal) caller() intrinsic.Caller {
	t.mu.Lock()
	defer t.mu.Unlock()
	c := intrinsic.Caller{
		HostID:     t.Origin.HostID,
		Login:      t.Origin.Login,
		Cwd:        t.cwd,
		TerminalID: t.ID,
		Route:      t.route,
	}
	if acting, ok := session.Acting(t.route); ok {
		c.HostID = acting.HostID
		c.Login = acting.Login
	}
	return c
}

func (t *Terminal) setContext(c dispatch.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = c.Route
	if c.Cwd != "" {
		t.cwd = c.Cwd
	} else if c.Route == nil {
		t.cwd = t.Origin.Cwd
	}
}

// unwind drops the route back to its longest prefix of open hops. It returns
// the hop the terminal fell back from, if any.
func (t *Terminal) unwind(isOpen func(session.Session) bool) (session.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hops := session.Hops(t.route)
	for i, hop := range hops {
		if isOpen(hop) {
			continue
		}
		t.cwd = hop.Source.Cwd
		if i == 0 {
			t.route = nil
		} else {
			t.route = t.route.(session.Route).PrefixRoutes()[i-1]
		}
		return hop, true
	}
	return session.Session{}, false
}

func (t *Terminal) prompt() string {
	c := t.caller()
	return fmt.Sprintf("%s@%s:%s$", c.Login, c.HostID, c.Cwd)
}

func (t *Terminal) hops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(session.Hops(t.route))
}

// running returns the active execution, nil when idle.
func (t *Terminal) running() *Execution {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.exec == nil {
		return nil
	}
	select {
	case <-t.exec.done:
		return nil
	default:
		return t.exec
	}
}

// Status is a terminal snapshot.
type Status struct {
	TerminalID string `json:"terminal_id"`
	HostID     string `json:"host"`
	Login      string `json:"login"`
	Cwd        string `json:"cwd"`
	Hops       int    `json:"hops"`
	Prompt     string `json:"prompt"`
	Running    bool   `json:"running"`
	RunID      string `json:"run_id,omitempty"`
	Program    string `json:"program,omitempty"`
}

func (t *Terminal) status() Status {
	c := t.caller()
	st := Status{
		TerminalID: t.ID,
		HostID:     c.HostID,
		Login:      c.Login,
		Cwd:        c.Cwd,
		Hops:       t.hops(),
		Prompt:     t.prompt(),
	}
	if e := t.running(); e != nil {
		st.Running = true
		st.RunID = e.RunID
		st.Program = e.Program
	}
	return st
}
