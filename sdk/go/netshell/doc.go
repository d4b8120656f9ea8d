// Package netshell embeds a simulated network in a Go program. It builds a
// world from a blueprint, runs its scheduler in the background, and hands out
// terminals that accept the same command lines as the netshell CLI.
//
// Usage:
//
//	ns, err := netshell.New(netshell.WithWorld("corp"))
//	defer ns.Close()
//	term, err := ns.Open(ctx)
//	lines, err := term.Exec(ctx, "connect 203.0.113.10 -l guest --password guest")
//
// Command failures come back as *CommandError carrying the stable error code.
package netshell
