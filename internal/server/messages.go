package server

import "github.com/ppiankov/netshell/internal/scheduler"

// OpenRequest opens a terminal.
type OpenRequest struct {
	Host  string `json:"host"`
	Login string `json:"login"`
}

// TerminalRequest addresses one terminal.
type TerminalRequest struct {
	TerminalID string `json:"terminal_id"`
}

// CommandRequest runs a line on a terminal.
type CommandRequest struct {
	TerminalID string `json:"terminal_id"`
	Line       string `json:"line"`
}

// CallRequest runs one intrinsic as a terminal's acting identity.
type CallRequest struct {
	TerminalID string         `json:"terminal_id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
}

// StatusReply is a terminal snapshot.
type StatusReply = scheduler.Status

// CommandReply is the outcome of one command line.
type CommandReply = scheduler.CommandResult

// InterruptReply reports whether a program was killed.
type InterruptReply struct {
	Interrupted bool `json:"interrupted"`
}

// DrainReply carries pending background output.
type DrainReply struct {
	Lines []string `json:"lines"`
}
