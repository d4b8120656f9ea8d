package dispatch

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/session"
)

var noop = ProgramFunc(func(context.Context, Runtime, Invocation) error { return nil })

type fixture struct {
	d    *Dispatcher
	reg  *host.Registry
	home *host.Host
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := host.NewRegistry()

	home := host.New("home", "workstation")
	home.AddInterface("homenet", "192.168.1.2")
	home.AddUser(&host.User{Key: "u_player", Login: "player", Privileges: host.Privileges{Read: true, Write: true, Execute: true}, Home: "/home/player"})
	home.AddUser(&host.User{Key: "u_viewer", Login: "viewer", Privileges: host.Privileges{Read: true}})
	_ = home.FS.MkdirAll("/home/player/tools")
	_ = home.FS.MkdirAll("/bin")
	_ = home.FS.WriteProgram("/bin/scan", "netscan", nil)
	_ = home.FS.WriteProgram("/bin/blank", "", nil)
	_ = home.FS.WriteProgram("/bin/rogue", "unregistered", nil)
	_ = home.FS.WriteProgram("/home/player/tools/local", "netscan", nil)
	_ = home.FS.WriteFile("/home/player/notes.txt", []byte("line one\nline two\n"))

	gw := host.New("gateway", "")
	gw.AddInterface("internet", "203.0.113.10")
	gw.AddInterface("corp", "10.1.0.1")
	gw.AddPort(host.Port{Number: 22, Protocol: host.ProtoSSH, Exposure: host.ExposurePublic})
	gw.AddUser(&host.User{Key: "u_guest", Login: "guest", Password: "pw", Home: "/home/guest"})
	_ = gw.FS.MkdirAll("/home/guest")

	db := host.New("db", "")
	db.AddInterface("corp", "10.1.0.5")
	db.AddPort(host.Port{Number: 22, Protocol: host.ProtoSSH, Exposure: host.ExposureLAN})
	db.AddUser(&host.User{Key: "u_dba", Login: "dba", Password: "pw"})

	for _, h := range []*host.Host{home, gw, db} {
		if err := reg.Add(h); err != nil {
			t.Fatal(err)
		}
	}
	progs := NewPrograms()
	progs.Register(Spec{Tag: "netscan", Background: true, Program: noop})

	mgr := session.NewManager(session.Config{Hosts: reg, Logger: zerolog.Nop()})
	return &fixture{
		d:    New(Config{Sessions: mgr, Programs: progs, Logger: zerolog.Nop()}),
		reg:  reg,
		home: home,
	}
}

func (f *fixture) run(line string) Result {
	return f.d.Execute(context.Background(), Request{
		HostID: "home", Login: "player", Cwd: "/home/player", Line: line, TerminalID: "t1", Apply: true,
	})
}

func TestUnknownCommandMessageIsUniform(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"nosuch", "blank", "rogue"} {
		res := f.run(name)
		if res.Code != model.CodeUnknownCommand {
			t.Errorf("%s: expected unknown_command, got %s", name, res.Code)
			continue
		}
		if got, want := model.MessageOf(res.Err), name+": command not found"; got != want {
			t.Errorf("%s: message %q, want %q", name, got, want)
		}
	}
}

func TestProgramFallbackSearchOrder(t *testing.T) {
	f := newFixture(t)

	res := f.run("scan 10.1.0.0")
	if res.Err != nil || res.Launch == nil || res.Launch.Invocation.Path != "/bin/scan" {
		t.Fatalf("expected /bin/scan launch, got %+v", res)
	}
	if got := res.Launch.Invocation.Args; len(got) != 1 || got[0] != "10.1.0.0" {
		t.Errorf("unexpected args %v", got)
	}

	_ = f.home.FS.WriteProgram("/home/player/scan", "netscan", nil)
	res = f.run("scan")
	if res.Launch == nil || res.Launch.Invocation.Path != "/home/player/scan" {
		t.Errorf("cwd candidate must win, got %+v", res.Launch)
	}

	res = f.run("tools/local")
	if res.Launch == nil || res.Launch.Invocation.Path != "/home/player/tools/local" {
		t.Errorf("expected relative path resolution, got %+v", res)
	}
}

func TestPathNamesNeverFallBackToSystemDir(t *testing.T) {
	f := newFixture(t)
	res := f.run("./scan")
	if res.Code != model.CodeUnknownCommand {
		t.Fatalf("expected unknown_command, got %s", res.Code)
	}
	if got := (SearchPolicy{}).Candidates("/home/player", "sub/scan"); len(got) != 1 {
		t.Errorf("expected single candidate, got %v", got)
	}
}

func TestFoundProgramNeedsReadAndExecute(t *testing.T) {
	f := newFixture(t)
	res := f.d.Execute(context.Background(), Request{HostID: "home", Login: "viewer", Cwd: "/", Line: "scan"})
	if res.Code != model.CodePermissionDenied {
		t.Fatalf("expected permission_denied, got %s", res.Code)
	}
}

func TestNonProgramFileIsUnknownEvenWithoutExecute(t *testing.T) {
	f := newFixture(t)
	for _, line := range []string{"/home/player/notes.txt", "rogue", "blank"} {
		res := f.d.Execute(context.Background(), Request{HostID: "home", Login: "viewer", Cwd: "/home/player", Line: line})
		if res.Code != model.CodeUnknownCommand {
			t.Errorf("%s: expected unknown_command, got %s", line, res.Code)
		}
	}
}

func TestConnectDisconnectContexts(t *testing.T) {
	f := newFixture(t)
	res := f.run("connect guest@203.0.113.10 --password pw")
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	first := res.Context.Route
	if res.Context.Cwd != "/home/guest" {
		t.Errorf("expected guest home, got %s", res.Context.Cwd)
	}

	res = f.d.Execute(context.Background(), Request{
		HostID: "gateway", Login: "guest", Cwd: "/home/guest", Line: "connect db -l dba --password=pw -p 22",
		Route: first, Apply: true,
	})
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	route, ok := res.Context.Route.(session.Route)
	if !ok || route.HopCount() != 2 {
		t.Fatalf("expected 2-hop route, got %+v", res.Context.Route)
	}

	res = f.d.Execute(context.Background(), Request{HostID: "db", Login: "dba", Cwd: "/", Line: "disconnect", Route: route, Apply: true})
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	back, ok := res.Context.Route.(session.Route)
	if !ok || back.HopCount() != 1 || res.Context.Cwd != "/home/guest" {
		t.Errorf("expected pop to hop 1 in guest home, got %+v", res.Context)
	}

	res = f.d.Execute(context.Background(), Request{HostID: "gateway", Login: "guest", Cwd: "/", Line: "disconnect --all", Route: route, Apply: true})
	if res.Err != nil || res.Context.Route != nil || res.Context.Cwd != "/home/player" {
		t.Errorf("expected unwind to origin, got %+v %v", res.Context, res.Err)
	}
	if res.Output[0] != "closed 1 session(s)" {
		t.Errorf("unexpected output %v", res.Output)
	}
	gw, _ := f.reg.Host("gateway")
	if gw.SessionCount() != 0 {
		t.Error("expected who set to be empty")
	}
}

func TestBuiltinArgumentErrors(t *testing.T) {
	f := newFixture(t)
	for _, line := range []string{"connect", "connect gw --bogus", "ls --nope", "disconnect", "ftp get x", "ftp send a"} {
		if res := f.run(line); res.Code != model.CodeInvalidArgs {
			t.Errorf("%q: expected invalid_args, got %s (%v)", line, res.Code, res.Err)
		}
	}
}

func TestFTPRequiresTool(t *testing.T) {
	f := newFixture(t)
	res := f.run("connect guest@gateway --password pw")
	route := res.Context.Route
	res = f.d.Execute(context.Background(), Request{HostID: "gateway", Login: "guest", Cwd: "/", Line: "ftp get x", Route: route, Apply: true})
	if res.Code != model.CodeToolMissing {
		t.Fatalf("expected tool_missing, got %s (%v)", res.Code, res.Err)
	}
}

func TestSimpleBuiltins(t *testing.T) {
	f := newFixture(t)
	cases := map[string]string{
		"whoami":          "player",
		"hostname":        "workstation",
		"pwd":             "/home/player",
		`echo "a  b" c`:   "a  b c",
		"cat notes.txt":   "line one",
		"ls /home/player": "notes.txt",
	}
	for line, want := range cases {
		res := f.run(line)
		if res.Err != nil || len(res.Output) == 0 || res.Output[0] != want {
			t.Errorf("%q: got %v %v, want first line %q", line, res.Output, res.Err, want)
		}
	}
	if res := f.run("cd tools"); res.Context == nil || res.Context.Cwd != "/home/player/tools" {
		t.Errorf("unexpected cd result %+v", res)
	}
	if res := f.run("cd notes.txt"); res.Code != model.CodeNotDirectory {
		t.Errorf("expected not_directory, got %s", res.Code)
	}
	if res := f.run(""); res.Code != model.CodeOK || len(res.Output) != 0 {
		t.Errorf("empty line must be a no-op, got %+v", res)
	}
}

func TestResultLinesRendersError(t *testing.T) {
	res := failed(model.Fail(model.CodeNotFound, "x: missing"))
	if got := res.Lines(); len(got) != 1 || got[0] != "error: x: missing" {
		t.Errorf("unexpected %v", got)
	}
}
