package programs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/session"
)

type recordedCall struct {
	name string
	args map[string]any
}

// fakeRuntime answers intrinsic calls from a handler and records prints.
type fakeRuntime struct {
	calls   []recordedCall
	printed []string
	handle  func(name string, args map[string]any) (map[string]any, error)
}

func (f *fakeRuntime) Call(_ context.Context, name string, args map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, recordedCall{name: name, args: args})
	res, err := f.handle(name, args)
	if err != nil {
		return model.ResultMap(err), err
	}
	return res, nil
}

func (f *fakeRuntime) Print(line string) {
	f.printed = append(f.printed, line)
}

func TestRegisterBundlesEveryTag(t *testing.T) {
	p := Register(nil)
	for _, tag := range []string{TagScript, TagNetscan, TagSleep, TagFTP} {
		if _, ok := p.Lookup(tag); !ok {
			t.Errorf("expected %s registered", tag)
		}
	}
	if s, _ := p.Lookup(TagFTP); s.Background {
		t.Error("ftp client must run inline")
	}
	if s, _ := p.Lookup(TagScript); !s.Background {
		t.Error("script must run in the background")
	}
}

func TestScriptRunsLinesAndStopsOnFailure(t *testing.T) {
	rt := &fakeRuntime{handle: func(name string, args map[string]any) (map[string]any, error) {
		switch name {
		case intrinsic.NameFSRead:
			return map[string]any{"content": "# setup\necho one\n\nbad\necho never\n"}, nil
		case intrinsic.NameExec:
			if args["command"] == "bad" {
				return nil, model.Fail(model.CodeUnknownCommand, "bad: command not found")
			}
			return map[string]any{"output": []any{strings.TrimPrefix(args["command"].(string), "echo ")}}, nil
		}
		t.Fatalf("unexpected call %s", name)
		return nil, nil
	}}

	err := Script{}.Run(context.Background(), rt, dispatch.Invocation{Name: "sh", Args: []string{"run.txt"}})
	if model.CodeOf(err) != model.CodeUnknownCommand {
		t.Fatalf("expected unknown_command, got %v", err)
	}
	if !strings.Contains(err.Error(), "run.txt:4: bad: command not found") {
		t.Errorf("expected line number in error, got %q", err.Error())
	}
	if len(rt.printed) != 1 || rt.printed[0] != "one" {
		t.Errorf("unexpected output %v", rt.printed)
	}
	if len(rt.calls) != 3 {
		t.Errorf("expected read plus two execs, got %d calls", len(rt.calls))
	}
}

func TestScriptUsage(t *testing.T) {
	rt := &fakeRuntime{}
	err := Script{}.Run(context.Background(), rt, dispatch.Invocation{Name: "sh"})
	if model.CodeOf(err) != model.CodeInvalidArgs {
		t.Errorf("expected invalid_args, got %v", err)
	}
}

func TestNetscanScansNeighbors(t *testing.T) {
	rt := &fakeRuntime{handle: func(name string, args map[string]any) (map[string]any, error) {
		if args["target"] == nil {
			return map[string]any{"hosts": []any{
				map[string]any{"host": "gateway", "address": "10.1.0.1", "self": true},
				map[string]any{"host": "db", "address": "10.1.0.5", "self": false},
			}}, nil
		}
		return map[string]any{"host": "db", "address": "10.1.0.5", "ports": []any{
			map[string]any{"port": 22, "state": "open", "protocol": "ssh"},
			map[string]any{"port": 5432, "state": "closed"},
		}}, nil
	}}

	if err := (Netscan{}).Run(context.Background(), rt, dispatch.Invocation{Name: "netscan"}); err != nil {
		t.Fatal(err)
	}
	if len(rt.printed) != 2 {
		t.Fatalf("unexpected output %v", rt.printed)
	}
	if !strings.Contains(rt.printed[0], "db") || !strings.Contains(rt.printed[0], "22/ssh") {
		t.Errorf("unexpected host line %q", rt.printed[0])
	}
	if rt.printed[1] != "1 host(s) up" {
		t.Errorf("unexpected summary %q", rt.printed[1])
	}
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := runSleep(ctx, nil, dispatch.Invocation{Name: "sleep", Args: []string{"60"}})
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep ignored cancellation")
	}

	err = runSleep(context.Background(), nil, dispatch.Invocation{Name: "sleep", Args: []string{"soon"}})
	if model.CodeOf(err) != model.CodeInvalidArgs {
		t.Errorf("expected invalid_args, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"2", 2 * time.Second, false},
		{"0.5", 500 * time.Millisecond, false},
		{"150ms", 150 * time.Millisecond, false},
		{"-1", 0, true},
		{"-1s", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("parseDuration(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestFTPRequiresRoute(t *testing.T) {
	rt := &fakeRuntime{}
	err := runFTP(context.Background(), rt, dispatch.Invocation{Name: "ftp", Args: []string{"get", "x"}})
	if model.CodeOf(err) != model.CodeInvalidArgs {
		t.Errorf("expected invalid_args, got %v", err)
	}
}

func TestFTPGetUsesRoute(t *testing.T) {
	s := session.Session{
		HostID: "db", ID: 1, Login: "dba", Cwd: "/srv",
		Source: session.Source{HostID: "home", Login: "player", Cwd: "/home/player"},
	}
	rt := &fakeRuntime{handle: func(name string, args map[string]any) (map[string]any, error) {
		return map[string]any{
			"remote_host": "db", "remote_path": "/srv/dump.sql",
			"local_host": "home", "local_path": "/home/player/dump.sql", "bytes": 2048,
		}, nil
	}}
	err := runFTP(context.Background(), rt, dispatch.Invocation{Name: "ftp", Args: []string{"get", "dump.sql"}, Route: s})
	if err != nil {
		t.Fatal(err)
	}
	if rt.calls[0].name != intrinsic.NameFTPGet || rt.calls[0].args["remote"] != "dump.sql" {
		t.Errorf("unexpected call %+v", rt.calls[0])
	}
	via, _ := rt.calls[0].args["via"].(map[string]any)
	if via["kind"] != "session" || via["host"] != "db" {
		t.Errorf("unexpected via %v", via)
	}
	if len(rt.printed) != 2 || rt.printed[1] != "226 transfer complete (2.0 KiB)" {
		t.Errorf("unexpected output %v", rt.printed)
	}
}
