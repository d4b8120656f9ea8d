// Package programs holds the executables bundled with every world. Each is a
// dispatch.Program bound to a payload tag; a host runs one when a file carrying
// that tag resolves on its search path.
package programs

import (
	"github.com/ppiankov/netshell/internal/dispatch"
)

// Payload tags of the bundled programs.
const (
	TagScript  = "script"
	TagNetscan = "netscan"
	TagSleep   = "sleep"
	TagFTP     = "ftp"
)

// Specs returns the bundled program table entries.
func Specs() []dispatch.Spec {
	return []dispatch.Spec{
		{Tag: TagScript, Description: "run a command file line by line", Background: true, Program: Script{}},
		{Tag: TagNetscan, Description: "map reachable hosts and their open ports", Background: true, Program: Netscan{}},
		{Tag: TagSleep, Description: "wait for a duration", Background: true, Program: dispatch.ProgramFunc(runSleep)},
		{Tag: TagFTP, Description: "file transfer client over the current route", Program: dispatch.ProgramFunc(runFTP)},
	}
}

// Register adds every bundled program to p.
func Register(p *dispatch.Programs) *dispatch.Programs {
	if p == nil {
		p = dispatch.NewPrograms()
	}
	for _, s := range Specs() {
		p.Register(s)
	}
	return p
}
