package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/scheduler"
)

// --- Input/Output types ---

// CommandInput defines parameters for the netshell_command tool.
type CommandInput struct {
	Line string `json:"line" jsonschema:"command line to run, e.g. 'connect 10.1.0.5 -l dba --password s3cret'"`
}

// CommandOutput is the terminal-visible outcome of one line.
type CommandOutput struct {
	Code   string   `json:"code"`
	Lines  []string `json:"lines"`
	RunID  string   `json:"run_id,omitempty"`
	Prompt string   `json:"prompt"`
}

// CallInput defines parameters for the netshell_call tool.
type CallInput struct {
	Name string         `json:"name" jsonschema:"intrinsic name, e.g. fs.read or net.scan"`
	Args map[string]any `json:"args,omitempty" jsonschema:"intrinsic arguments"`
}

// CallOutput wraps the intrinsic result map.
type CallOutput struct {
	Result map[string]any `json:"result"`
}

// EmptyInput is used by tools without parameters.
type EmptyInput struct{}

// OutputOutput carries drained background output.
type OutputOutput struct {
	Lines []string `json:"lines"`
}

// InterruptOutput reports whether a program was killed.
type InterruptOutput struct {
	Interrupted bool `json:"interrupted"`
}

// --- Handlers ---

func (s *Server) handleCommand(ctx context.Context, _ *mcpsdk.CallToolRequest, input CommandInput) (*mcpsdk.CallToolResult, CommandOutput, error) {
	term, err := s.terminalID(ctx)
	if err != nil {
		return nil, CommandOutput{}, err
	}
	res, err := s.sched.Command(ctx, term, input.Line)
	if err != nil {
		return nil, CommandOutput{}, err
	}
	out := CommandOutput{Code: string(res.Code), Lines: res.Lines, RunID: res.RunID, Prompt: res.Prompt}
	if out.Lines == nil {
		out.Lines = []string{}
	}
	if res.Code != model.CodeOK {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleCall(ctx context.Context, _ *mcpsdk.CallToolRequest, input CallInput) (*mcpsdk.CallToolResult, CallOutput, error) {
	term, err := s.terminalID(ctx)
	if err != nil {
		return nil, CallOutput{}, err
	}
	caller, err := s.sched.CallerOf(term)
	if err != nil {
		return nil, CallOutput{}, err
	}
	res, callErr := s.sched.Call(ctx, caller, input.Name, input.Args)
	if callErr != nil {
		return &mcpsdk.CallToolResult{IsError: true}, CallOutput{Result: res}, nil
	}
	return nil, CallOutput{Result: res}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, scheduler.Status, error) {
	term, err := s.terminalID(ctx)
	if err != nil {
		return nil, scheduler.Status{}, err
	}
	st, err := s.sched.Status(term)
	return nil, st, err
}

func (s *Server) handleOutput(ctx context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, OutputOutput, error) {
	term, err := s.terminalID(ctx)
	if err != nil {
		return nil, OutputOutput{}, err
	}
	lines, err := s.sched.Drain(term)
	if lines == nil {
		lines = []string{}
	}
	return nil, OutputOutput{Lines: lines}, err
}

func (s *Server) handleInterrupt(ctx context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, InterruptOutput, error) {
	term, err := s.terminalID(ctx)
	if err != nil {
		return nil, InterruptOutput{}, err
	}
	killed, err := s.sched.Interrupt(term)
	return nil, InterruptOutput{Interrupted: killed}, err
}
