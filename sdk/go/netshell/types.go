package netshell

import (
	"fmt"

	"github.com/ppiankov/netshell/internal/scheduler"
)

// Result is the terminal-visible outcome of one command line.
type Result struct {
	Code   string
	Lines  []string
	RunID  string // set when the line started a background program
	Prompt string
}

// OK reports whether the line succeeded.
func (r Result) OK() bool {
	return r.Code == "ok"
}

// CommandError is returned by Exec when a line fails.
type CommandError struct {
	Line    string
	Code    string
	Message string
	Lines   []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("netshell %q failed (%s): %s", e.Line, e.Code, e.Message)
}

func toResult(r scheduler.CommandResult) Result {
	return Result{
		Code:   string(r.Code),
		Lines:  r.Lines,
		RunID:  r.RunID,
		Prompt: r.Prompt,
	}
}
