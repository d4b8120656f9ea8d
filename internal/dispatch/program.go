package dispatch

import (
	"context"
	"sort"

	"github.com/ppiankov/netshell/internal/session"
)

// Runtime is what a running program sees of the world. Call runs one
// intrinsic; Print emits one output line.
type Runtime interface {
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)
	Print(line string)
}

// Invocation is the context a program starts in.
type Invocation struct {
	Name       string
	Path       string
	Args       []string
	HostID     string
	Login      string
	Cwd        string
	TerminalID string
	Route      session.Operand
}

// Program is an executable payload. Programs must check ctx between steps and
// return promptly once it is done.
type Program interface {
	Run(ctx context.Context, rt Runtime, inv Invocation) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx context.Context, rt Runtime, inv Invocation) error

func (f ProgramFunc) Run(ctx context.Context, rt Runtime, inv Invocation) error {
	return f(ctx, rt, inv)
}

// Spec registers a program under a payload tag.
type Spec struct {
	Tag         string
	Description string
	Background  bool
	Program     Program
}

// Programs maps payload tags to programs.
type Programs struct {
	specs map[string]Spec
}

// NewPrograms creates an empty program table.
func NewPrograms() *Programs {
	return &Programs{specs: make(map[string]Spec)}
}

// Register adds or replaces a program.
func (p *Programs) Register(s Spec) {
	p.specs[s.Tag] = s
}

// Lookup returns the program for tag.
func (p *Programs) Lookup(tag string) (Spec, bool) {
	if tag == "" {
		return Spec{}, false
	}
	s, ok := p.specs[tag]
	return s, ok && s.Program != nil
}

// Tags lists registered tags in order.
func (p *Programs) Tags() []string {
	out := make([]string, 0, len(p.specs))
	for t := range p.specs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
