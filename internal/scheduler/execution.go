package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/ppiankov/netshell/internal/model"
)

// KilledLine is the single line an interrupted program leaves on its terminal.
const KilledLine = "^C killed"

// Execution is one background program run on a terminal.
type Execution struct {
	TerminalID string
	RunID      string
	Program    string
	StartedAt  time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	out    *outbox

	// applyMu is held while one of this execution's requests applies its
	// effect, and by Interrupt while it cancels.
	applyMu sync.Mutex

	mu          sync.Mutex
	interrupted bool
	finished    bool
	err         error
}

func newExecution(parent context.Context, terminalID, runID, program string, out *outbox, now time.Time) *Execution {
	ctx, cancel := context.WithCancel(parent)
	return &Execution{
		TerminalID: terminalID,
		RunID:      runID,
		Program:    program,
		StartedAt:  now,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		out:        out,
	}
}

// Done is closed when the program has returned.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Err returns the program's result once Done is closed.
func (e *Execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Interrupted reports whether the run was killed.
func (e *Execution) Interrupted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interrupted
}

// print appends a line unless the run was interrupted.
func (e *Execution) print(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interrupted {
		return
	}
	e.out.append(line)
}

// interrupt cancels the program. Once it returns, no request of this run can
// apply an effect. Only the first call has any effect.
func (e *Execution) interrupt() bool {
	e.applyMu.Lock()
	defer e.applyMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interrupted || e.finished {
		return false
	}
	e.interrupted = true
	e.cancel()
	e.out.append(KilledLine)
	return true
}

// finish records the program result and releases waiters.
func (e *Execution) finish(err error) {
	e.mu.Lock()
	if e.interrupted {
		err = model.Fail(model.CodeInternalError, "program interrupted")
	} else if err != nil {
		e.out.append("error: " + model.MessageOf(err))
	}
	e.finished = true
	e.err = err
	e.mu.Unlock()
	e.cancel()
	close(e.done)
}

// outbox buffers terminal output until a frontend drains it.
type outbox struct {
	mu    sync.Mutex
	lines []string
}

func (o *outbox) append(lines ...string) {
	o.mu.Lock()
	o.lines = append(o.lines, lines...)
	o.mu.Unlock()
}

func (o *outbox) drain() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.lines
	o.lines = nil
	return out
}
