package dispatch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/policy"
	"github.com/ppiankov/netshell/internal/session"
	"github.com/ppiankov/netshell/internal/transfer"
	"github.com/ppiankov/netshell/internal/vfs"
)

func builtinTable() map[string]builtin {
	return map[string]builtin{
		"connect":    {"connect [login@]<host> [-p port] [-l login] [--password pw]", runConnect},
		"disconnect": {"disconnect [--all]", runDisconnect},
		"ftp":        {"ftp get <remote> [local] | ftp put <local> [remote]", runFTP},
		"who":        {"who", runWho},
		"whoami":     {"whoami", runWhoami},
		"hostname":   {"hostname", runHostname},
		"pwd":        {"pwd", runPwd},
		"cd":         {"cd [dir]", runCd},
		"ls":         {"ls [-l] [path]", runLs},
		"cat":        {"cat <file>", runCat},
		"echo":       {"echo [text...]", runEcho},
		"help":       {"help", runHelp},
	}
}

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return model.Wrap(model.CodeInvalidArgs, err, "%s: bad arguments", fs.Name())
	}
	return nil
}

func runConnect(d *Dispatcher, ctx context.Context, req Request, args []string) Result {
	fs := newFlags("connect")
	port := fs.IntP("port", "p", 0, "port")
	login := fs.StringP("login", "l", "", "login")
	password := fs.String("password", "", "credential")
	if err := parseFlags(fs, args); err != nil {
		return failed(err)
	}
	if fs.NArg() != 1 {
		return failed(model.Fail(model.CodeInvalidArgs, "usage: %s", d.builtins["connect"].usage))
	}
	target := fs.Arg(0)
	if at := strings.LastIndex(target, "@"); at > 0 && *login == "" {
		*login, target = target[:at], target[at+1:]
	}

	op, err := d.sessions.Connect(ctx, session.ConnectRequest{
		Target:     target,
		Port:       *port,
		Login:      *login,
		Credential: *password,
		Via:        req.Route,
		Caller:     session.Source{HostID: req.HostID, Login: req.Login, Cwd: req.Cwd},
		Apply:      req.Apply,
	})
	if err != nil {
		return failed(err)
	}
	acting, _ := session.Acting(op)
	res := ok(fmt.Sprintf("connected to %s@%s (session %d)", acting.Login, acting.HostID, acting.ID))
	res.Context = &Context{Route: op, Cwd: acting.Cwd}
	return res
}

func runDisconnect(d *Dispatcher, ctx context.Context, req Request, args []string) Result {
	fs := newFlags("disconnect")
	all := fs.Bool("all", false, "close every hop")
	if err := parseFlags(fs, args); err != nil {
		return failed(err)
	}
	if req.Route == nil {
		return failed(model.Fail(model.CodeInvalidArgs, "disconnect: not connected"))
	}

	if *all {
		res, err := d.sessions.Disconnect(ctx, req.Route, req.Apply)
		if err != nil {
			return failed(err)
		}
		origin, _ := session.LocalEndpoint(req.Route)
		closed := 0
		if res.Summary != nil {
			closed = res.Summary.Closed
		} else if res.Disconnected {
			closed = 1
		}
		out := ok(fmt.Sprintf("closed %d session(s)", closed))
		out.Context = &Context{Cwd: origin.Cwd}
		return out
	}

	last, _ := session.Acting(req.Route)
	res, err := d.sessions.Disconnect(ctx, last, req.Apply)
	if err != nil {
		return failed(err)
	}
	var rest session.Operand
	if r, isRoute := req.Route.(session.Route); isRoute && r.HopCount() > 1 {
		prefixes := r.PrefixRoutes()
		rest = prefixes[len(prefixes)-1]
	}
	line := fmt.Sprintf("connection to %s closed", last.HostID)
	if !res.Disconnected {
		line = fmt.Sprintf("session %d on %s was already closed", last.ID, last.HostID)
	}
	out := ok(line)
	out.Context = &Context{Route: rest, Cwd: last.Source.Cwd}
	return out
}

func runFTP(d *Dispatcher, ctx context.Context, req Request, args []string) Result {
	if len(args) < 2 || len(args) > 3 || (args[0] != "get" && args[0] != "put") {
		return failed(model.Fail(model.CodeInvalidArgs, "usage: %s", d.builtins["ftp"].usage))
	}
	if req.Route == nil {
		return failed(model.Fail(model.CodeInvalidArgs, "ftp: not connected"))
	}
	origin, _ := session.LocalEndpoint(req.Route)
	if h, known := d.sessions.Hosts().Host(origin.HostID); !known || !isTool(h.FS, d.search.SystemPath("ftp")) {
		return failed(model.Fail(model.CodeToolMissing, "ftp: client not installed"))
	}

	tr := transfer.Request{Via: req.Route, Apply: req.Apply}
	if args[0] == "get" {
		tr.Direction, tr.Remote = policy.Download, args[1]
		if len(args) == 3 {
			tr.Local = args[2]
		}
	} else {
		tr.Direction, tr.Local = policy.Upload, args[1]
		if len(args) == 3 {
			tr.Remote = args[2]
		}
	}
	res, err := d.transfer.Run(ctx, tr)
	if err != nil {
		return failed(err)
	}
	return ok(
		fmt.Sprintf("%s %s:%s -> %s:%s", tr.Direction, res.RemoteHost, res.RemotePath, res.LocalHost, res.LocalPath),
		fmt.Sprintf("226 transfer complete (%s)", humanize.IBytes(uint64(res.Bytes))),
	)
}

func isTool(fs *vfs.FS, p string) bool {
	e, err := fs.Stat(p)
	return err == nil && !e.IsDir()
}

func runWho(d *Dispatcher, _ context.Context, req Request, _ []string) Result {
	h, _ := d.sessions.Hosts().Host(req.HostID)
	lines := []string{fmt.Sprintf("%-4s %-12s %-20s %s", "ID", "LOGIN", "FROM", "SINCE")}
	for _, s := range h.Sessions() {
		lines = append(lines, fmt.Sprintf("%-4d %-12s %-20s %s",
			s.ID, s.Login, s.SourceLogin+"@"+s.SourceHostID, humanize.Time(s.OpenedAt)))
	}
	return ok(lines...)
}

func runWhoami(_ *Dispatcher, _ context.Context, req Request, _ []string) Result {
	return ok(req.Login)
}

func runHostname(d *Dispatcher, _ context.Context, req Request, _ []string) Result {
	h, _ := d.sessions.Hosts().Host(req.HostID)
	return ok(h.Name)
}

func runPwd(_ *Dispatcher, _ context.Context, req Request, _ []string) Result {
	return ok(req.Cwd)
}

func runCd(d *Dispatcher, _ context.Context, req Request, args []string) Result {
	h, _ := d.sessions.Hosts().Host(req.HostID)
	dir := h.HomeDir(req.Login)
	if len(args) > 0 {
		dir = vfs.Clean(req.Cwd, args[0])
	}
	e, err := h.FS.Stat(dir)
	if err != nil {
		return failed(err)
	}
	if !e.IsDir() {
		return failed(model.Fail(model.CodeNotDirectory, "cd: %s: not a directory", dir))
	}
	res := ok()
	res.Context = &Context{Route: req.Route, Cwd: dir}
	return res
}

func runLs(d *Dispatcher, _ context.Context, req Request, args []string) Result {
	fs := newFlags("ls")
	long := fs.BoolP("long", "l", false, "long listing")
	if err := parseFlags(fs, args); err != nil {
		return failed(err)
	}
	h, _ := d.sessions.Hosts().Host(req.HostID)
	if err := policy.RequirePrivilege(h, req.Login, policy.NeedRead); err != nil {
		return failed(err)
	}
	target := req.Cwd
	if fs.NArg() > 0 {
		target = vfs.Clean(req.Cwd, fs.Arg(0))
	}
	entries, err := h.FS.List(target)
	if err != nil {
		return failed(err)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}
		if *long {
			kind := "-"
			if e.IsDir() {
				kind = "d"
			} else if e.Program != "" {
				kind = "x"
			}
			name = fmt.Sprintf("%s %8s %s", kind, humanize.IBytes(uint64(e.Size)), name)
		}
		lines = append(lines, name)
	}
	return ok(lines...)
}

func runCat(d *Dispatcher, _ context.Context, req Request, args []string) Result {
	if len(args) != 1 {
		return failed(model.Fail(model.CodeInvalidArgs, "usage: cat <file>"))
	}
	h, _ := d.sessions.Hosts().Host(req.HostID)
	if err := policy.RequirePrivilege(h, req.Login, policy.NeedRead); err != nil {
		return failed(err)
	}
	data, err := h.FS.ReadFile(vfs.Clean(req.Cwd, args[0]))
	if err != nil {
		return failed(err)
	}
	if !vfs.IsText(data) {
		return failed(model.Fail(model.CodeNotTextFile, "cat: %s: binary file", args[0]))
	}
	return ok(strings.Split(strings.TrimRight(string(data), "\n"), "\n")...)
}

func runEcho(_ *Dispatcher, _ context.Context, _ Request, args []string) Result {
	return ok(strings.Join(args, " "))
}

func runHelp(d *Dispatcher, _ context.Context, _ Request, _ []string) Result {
	lines := []string{"built-in commands:"}
	for _, name := range d.Builtins() {
		lines = append(lines, "  "+d.builtins[name].usage)
	}
	if tags := d.programs.Tags(); len(tags) > 0 {
		lines = append(lines, "programs in "+d.search.systemDir()+": "+strings.Join(tags, ", "))
	}
	return ok(lines...)
}
