package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/ratelimit"
)

type fixture struct {
	reg    *host.Registry
	mgr    *Manager
	clock  time.Time
	caller Source
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{reg: host.NewRegistry(), clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	home := host.New("home", "")
	home.AddInterface("homenet", "192.168.1.2")
	home.AddUser(&host.User{Key: "u_player", Login: "player", Privileges: host.Privileges{Read: true, Write: true, Execute: true}, Home: "/home/player"})
	_ = home.FS.MkdirAll("/home/player/.ssh")

	gw := host.New("gateway", "")
	gw.AddInterface("internet", "203.0.113.10")
	gw.AddInterface("corp", "10.1.0.1")
	gw.AddPort(host.Port{Number: 22, Protocol: host.ProtoSSH, Exposure: host.ExposurePublic})
	gw.AddPort(host.Port{Number: 80, Protocol: host.ProtoHTTP, Exposure: host.ExposurePublic})
	gw.AddUser(&host.User{Key: "u_guest", Login: "guest", Auth: host.AuthStatic, Password: "pw", Home: "/home/guest"})
	_ = gw.FS.MkdirAll("/home/guest")

	db := host.New("db", "")
	db.AddInterface("corp", "10.1.0.5")
	db.AddPort(host.Port{Number: 22, Protocol: host.ProtoSSH, Exposure: host.ExposureLAN})
	db.AddUser(&host.User{Key: "u_dba", Login: "dba", Auth: host.AuthStatic, Password: "pw"})

	vault := host.New("vault", "")
	vault.AddInterface("corp", "10.1.0.9")
	vault.AddPort(host.Port{Number: 2222, Protocol: host.ProtoSSH, Exposure: host.ExposureLAN})
	vault.AddUser(&host.User{Key: "u_root", Login: "root", Auth: host.AuthStatic, Password: "toor"})
	vault.Limiter = ratelimit.NewConnLimiter(ratelimit.ConnConfig{
		Threshold: 3, RateLimit: 10, MonitorDuration: time.Minute, BlockDuration: time.Minute,
	})

	for _, h := range []*host.Host{home, gw, db, vault} {
		if err := f.reg.Add(h); err != nil {
			t.Fatal(err)
		}
	}
	f.mgr = NewManager(Config{Hosts: f.reg, Logger: zerolog.Nop(), Now: func() time.Time { return f.clock }})
	f.caller = Source{HostID: "home", Login: "player", Cwd: "/home/player"}
	return f
}

func (f *fixture) connect(t *testing.T, target, login, cred string, via Operand) Operand {
	t.Helper()
	op, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: target, Login: login, Credential: cred, Via: via, Caller: f.caller, Apply: true,
	})
	if err != nil {
		t.Fatalf("connect %s as %s: %v", target, login, err)
	}
	return op
}

func (f *fixture) openSessions() int {
	n := 0
	for _, h := range f.reg.Hosts() {
		n += h.SessionCount()
	}
	return n
}

func TestConnectStaticAuthCreatesOneSession(t *testing.T) {
	f := newFixture(t)
	op := f.connect(t, "203.0.113.10", "guest", "pw", nil)
	s, ok := op.(Session)
	if !ok {
		t.Fatalf("expected bare session, got %T", op)
	}
	if s.ID <= 0 || s.HostID != "gateway" || s.Cwd != "/home/guest" {
		t.Errorf("unexpected session %+v", s)
	}
	if s.Source != f.caller {
		t.Errorf("expected caller provenance, got %+v", s.Source)
	}
	gw, _ := f.reg.Host("gateway")
	if gw.SessionCount() != 1 || !gw.HasSession(s.ID) {
		t.Error("expected exactly one open session on gateway")
	}
}

func TestConnectStorageKeyIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: "gateway", Login: "u_guest", Credential: "pw", Caller: f.caller, Apply: true,
	})
	if model.CodeOf(err) != model.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if f.openSessions() != 0 {
		t.Error("no session may be opened")
	}
}

func TestConnectFailureCodes(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		req  ConnectRequest
		want model.Code
	}{
		{"unknown login", ConnectRequest{Target: "gateway", Login: "ghost", Credential: "pw"}, model.CodeAuthFailed},
		{"wrong password", ConnectRequest{Target: "gateway", Login: "guest", Credential: "nope"}, model.CodeAuthFailed},
		{"unknown host", ConnectRequest{Target: "10.9.9.9", Login: "guest"}, model.CodeNotFound},
		{"missing port", ConnectRequest{Target: "gateway", Port: 2200, Login: "guest", Credential: "pw"}, model.CodePortClosed},
		{"non ssh port", ConnectRequest{Target: "gateway", Port: 80, Login: "guest", Credential: "pw"}, model.CodePortClosed},
		{"lan from outside", ConnectRequest{Target: "10.1.0.5", Login: "dba", Credential: "pw"}, model.CodeNetDenied},
		{"missing target", ConnectRequest{Login: "guest"}, model.CodeInvalidArgs},
	}
	for _, tt := range tests {
		tt.req.Caller = f.caller
		tt.req.Apply = true
		_, err := f.mgr.Connect(context.Background(), tt.req)
		if got := model.CodeOf(err); got != tt.want {
			t.Errorf("%s: got %s (%v), want %s", tt.name, got, err, tt.want)
		}
	}
	if f.openSessions() != 0 {
		t.Errorf("expected no sessions, got %d", f.openSessions())
	}
}

func TestChainedConnectBuildsRoutes(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t, "gateway", "guest", "pw", nil).(Session)

	two, ok := f.connect(t, "10.1.0.5", "dba", "pw", first).(Route)
	if !ok || two.HopCount() != 2 {
		t.Fatalf("expected 2-hop route, got %+v", two)
	}
	if two.Last().Source != first.Target() {
		t.Errorf("hop 2 must start at hop 1's target, got %+v", two.Last().Source)
	}

	three, ok := f.connect(t, "10.1.0.1", "guest", "pw", two).(Route)
	if !ok || three.HopCount() != 3 {
		t.Fatalf("expected 3-hop route, got %+v", three)
	}
	prefixes := three.PrefixRoutes()
	if len(prefixes) != 2 || prefixes[1].HopCount() != 2 || prefixes[1].Last() != two.Last() {
		t.Errorf("expected prefixes to include the input route, got %+v", prefixes)
	}
	if two.HopCount() != 2 {
		t.Error("appending must not mutate the input route")
	}
}

func TestDisconnectRouteIsIdempotent(t *testing.T) {
	for n := 1; n <= 4; n++ {
		f := newFixture(t)
		var op Operand = f.connect(t, "gateway", "guest", "pw", nil)
		targets := []string{"db", "gateway"}
		logins := map[string]string{"db": "dba", "gateway": "guest"}
		for i := 1; i < n; i++ {
			tgt := targets[(i-1)%2]
			op = f.connect(t, tgt, logins[tgt], "pw", op)
		}
		route, ok := op.(Route)
		if !ok {
			route, _ = NewRoute(op.(Session))
		}

		res, err := f.mgr.Disconnect(context.Background(), route, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Summary.Requested != n || res.Summary.Closed != n || res.Summary.AlreadyClosed != 0 {
			t.Errorf("n=%d first disconnect: %+v", n, *res.Summary)
		}
		if f.openSessions() != 0 {
			t.Errorf("n=%d: who sets must reach empty", n)
		}

		res, err = f.mgr.Disconnect(context.Background(), route, true)
		if err != nil {
			t.Fatal(err)
		}
		if res.Summary.Closed != 0 || res.Summary.AlreadyClosed != n || res.Disconnected {
			t.Errorf("n=%d second disconnect: %+v", n, *res.Summary)
		}
	}
}

func TestDisconnectPartiallyClosedRoute(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t, "gateway", "guest", "pw", nil).(Session)
	route := f.connect(t, "db", "dba", "pw", first).(Route)

	res, _ := f.mgr.Disconnect(context.Background(), first, true)
	if !res.Disconnected {
		t.Fatal("expected session disconnect")
	}
	res, _ = f.mgr.Disconnect(context.Background(), route, true)
	if res.Summary.Closed != 1 || res.Summary.AlreadyClosed != 1 {
		t.Errorf("unexpected summary %+v", *res.Summary)
	}
	res, _ = f.mgr.Disconnect(context.Background(), first, true)
	if res.Disconnected {
		t.Error("closed session must report disconnected=false")
	}
}

func TestMalformedOperandsOpenNothing(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t, "gateway", "guest", "pw", nil).(Session)
	before := f.openSessions()

	bad := []Operand{
		Session{HostID: "gateway", ID: first.ID, Login: "guest", Cwd: "/", Source: Source{HostID: "home", Login: "player"}},
		Session{HostID: "gateway", ID: first.ID, Login: "guest", Cwd: "/", Source: Source{Login: "player", Cwd: "/"}},
		Session{HostID: "gateway", ID: 0, Login: "guest", Cwd: "/", Source: first.Source},
		Route{},
		Route{hops: []Session{first, {HostID: "db", ID: 1, Login: "dba", Cwd: "/", Source: Source{HostID: "home", Login: "player", Cwd: "/"}}}},
	}
	for i, via := range bad {
		_, err := f.mgr.Connect(context.Background(), ConnectRequest{
			Target: "db", Login: "dba", Credential: "pw", Via: via, Caller: f.caller, Apply: true,
		})
		if model.CodeOf(err) != model.CodeInvalidArgs {
			t.Errorf("case %d: expected invalid_args, got %v", i, err)
		}
		if _, err := f.mgr.Disconnect(context.Background(), via, true); model.CodeOf(err) != model.CodeInvalidArgs {
			t.Errorf("case %d: disconnect expected invalid_args, got %v", i, err)
		}
	}
	if f.openSessions() != before {
		t.Errorf("malformed operands opened sessions: %d -> %d", before, f.openSessions())
	}
}

func TestConnectFromClosedHopIsNotFound(t *testing.T) {
	f := newFixture(t)
	first := f.connect(t, "gateway", "guest", "pw", nil).(Session)
	f.mgr.Disconnect(context.Background(), first, true)

	_, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: "db", Login: "dba", Credential: "pw", Via: first, Caller: f.caller, Apply: true,
	})
	if model.CodeOf(err) != model.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestRateLimiterBlocksCorrectCredential(t *testing.T) {
	f := newFixture(t)
	gw := f.connect(t, "gateway", "guest", "pw", nil).(Session)
	for i := 0; i < 3; i++ {
		_, err := f.mgr.Connect(context.Background(), ConnectRequest{
			Target: "vault", Login: "root", Credential: "wrong", Via: gw, Caller: f.caller, Apply: true,
		})
		if model.CodeOf(err) != model.CodeAuthFailed {
			t.Fatalf("attempt %d: expected auth_failed, got %v", i, err)
		}
	}
	_, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: "vault", Login: "root", Credential: "toor", Via: gw, Caller: f.caller, Apply: true,
	})
	if model.CodeOf(err) != model.CodeRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
	vault, _ := f.reg.Host("vault")
	if vault.SessionCount() != 0 {
		t.Error("rate limited connect must open no session")
	}
}

func TestSandboxConnectOpensNothing(t *testing.T) {
	f := newFixture(t)
	op, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: "gateway", Login: "guest", Credential: "pw", Caller: f.caller,
	})
	if err != nil {
		t.Fatal(err)
	}
	s := op.(Session)
	if !s.Simulated || s.ID != 1 {
		t.Errorf("expected simulated session with next id, got %+v", s)
	}
	if f.openSessions() != 0 {
		t.Error("sandbox connect must not open sessions")
	}
	if _, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: "gateway", Login: "guest", Credential: "bad", Caller: f.caller,
	}); model.CodeOf(err) != model.CodeAuthFailed {
		t.Errorf("sandbox must still verify credentials, got %v", err)
	}
}

func TestConnectResolvesSSHConfigAlias(t *testing.T) {
	f := newFixture(t)
	home, _ := f.reg.Host("home")
	cfg := "Host gw\n  HostName 203.0.113.10\n  User guest\n  Port 22\n"
	if err := home.FS.WriteFile("/home/player/.ssh/config", []byte(cfg)); err != nil {
		t.Fatal(err)
	}
	op := f.connect(t, "gw", "", "pw", nil)
	if s := op.(Session); s.HostID != "gateway" || s.Login != "guest" {
		t.Errorf("expected alias to resolve to guest@gateway, got %+v", s)
	}
}

func TestSSHConfigAppliesToHostIDs(t *testing.T) {
	f := newFixture(t)
	gw, _ := f.reg.Host("gateway")
	_ = gw.FS.MkdirAll("/home/guest/.ssh")
	cfg := "Host db\n  HostName 10.1.0.5\n  User dba\n\nHost vault\n  Port 2222\n  User root\n"
	if err := gw.FS.WriteFile("/home/guest/.ssh/config", []byte(cfg)); err != nil {
		t.Fatal(err)
	}
	first := f.connect(t, "gateway", "guest", "pw", nil)

	op := f.connect(t, "db", "", "pw", first)
	if last := op.(Route).Last(); last.HostID != "db" || last.Login != "dba" {
		t.Errorf("expected config user on db, got %+v", last)
	}

	// A block without HostName still contributes user and port.
	op = f.connect(t, "vault", "", "toor", first)
	if last := op.(Route).Last(); last.HostID != "vault" || last.Login != "root" {
		t.Errorf("expected config user and port on vault, got %+v", last)
	}

	// Explicit request values win over the config.
	if _, err := f.mgr.Connect(context.Background(), ConnectRequest{
		Target: "db", Login: "guest", Credential: "pw", Via: first, Caller: f.caller, Apply: true,
	}); model.CodeOf(err) != model.CodeAuthFailed {
		t.Errorf("expected auth_failed for explicit login, got %v", err)
	}
}

func TestSandboxSessionsGetDistinctIDs(t *testing.T) {
	f := newFixture(t)
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		op, err := f.mgr.Connect(context.Background(), ConnectRequest{
			Target: "gateway", Login: "guest", Credential: "pw", Caller: f.caller,
		})
		if err != nil {
			t.Fatal(err)
		}
		id := op.(Session).ID
		if seen[id] {
			t.Errorf("sandbox id %d handed out twice", id)
		}
		seen[id] = true
	}
}

func TestSandboxDisconnectClosesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op, err := f.mgr.Connect(ctx, ConnectRequest{Target: "gateway", Login: "guest", Credential: "pw", Caller: f.caller})
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.mgr.Disconnect(ctx, op, false)
	if err != nil || !res.Disconnected {
		t.Fatalf("first sandbox disconnect: %+v, %v", res, err)
	}
	res, err = f.mgr.Disconnect(ctx, op, false)
	if err != nil || res.Disconnected {
		t.Errorf("second sandbox disconnect must report already closed: %+v, %v", res, err)
	}
	if f.mgr.IsOpen(op.(Session)) {
		t.Error("closed sandbox session still reported open")
	}
	if _, err := f.mgr.Connect(ctx, ConnectRequest{
		Target: "db", Login: "dba", Credential: "pw", Via: op, Caller: f.caller,
	}); model.CodeOf(err) != model.CodeNotFound {
		t.Errorf("expected not_found chaining from closed sandbox hop, got %v", err)
	}
}

func TestSimulatedHopsCannotActOnTheWorld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issued, err := f.mgr.Connect(ctx, ConnectRequest{Target: "gateway", Login: "guest", Credential: "pw", Caller: f.caller})
	if err != nil {
		t.Fatal(err)
	}
	forged := Session{HostID: "gateway", ID: 7, Login: "guest", Cwd: "/home/guest", Source: f.caller, Simulated: true}

	// Sandbox chaining from an issued hop still validates.
	if _, err := f.mgr.Connect(ctx, ConnectRequest{
		Target: "db", Login: "dba", Credential: "pw", Via: issued, Caller: f.caller,
	}); err != nil {
		t.Errorf("sandbox chain from issued hop: %v", err)
	}

	for name, via := range map[string]Session{"issued": issued.(Session), "forged": forged} {
		if _, _, err := f.mgr.ActingHost(via, true); model.CodeOf(err) != model.CodeInvalidArgs {
			t.Errorf("%s: applied acting host: expected invalid_args, got %v", name, err)
		}
		if _, err := f.mgr.Connect(ctx, ConnectRequest{
			Target: "db", Login: "dba", Credential: "pw", Via: via, Caller: f.caller, Apply: true,
		}); model.CodeOf(err) != model.CodeInvalidArgs {
			t.Errorf("%s: applied connect: expected invalid_args, got %v", name, err)
		}
		if _, err := f.mgr.Disconnect(ctx, via, true); model.CodeOf(err) != model.CodeInvalidArgs {
			t.Errorf("%s: applied disconnect: expected invalid_args, got %v", name, err)
		}
	}

	if _, _, err := f.mgr.ActingHost(forged, false); model.CodeOf(err) != model.CodeInvalidArgs {
		t.Errorf("forged sandbox hop: expected invalid_args, got %v", err)
	}
	if f.mgr.IsOpen(forged) {
		t.Error("forged simulated session reported open")
	}
	if f.openSessions() != 0 {
		t.Error("simulated hops must never open sessions")
	}
}

func TestLocalEndpointIsFirstHopOrigin(t *testing.T) {
	f := newFixture(t)
	var op Operand = f.connect(t, "gateway", "guest", "pw", nil)
	for hops := 2; hops <= 4; hops++ {
		if hops%2 == 0 {
			op = f.connect(t, "db", "dba", "pw", op)
		} else {
			op = f.connect(t, "gateway", "guest", "pw", op)
		}
		local, ok := LocalEndpoint(op)
		if !ok || local != f.caller {
			t.Errorf("hops=%d: local endpoint %+v, want %+v", hops, local, f.caller)
		}
		acting, _ := Acting(op)
		if acting != op.(Route).Last() {
			t.Errorf("hops=%d: acting hop must be the last hop", hops)
		}
	}
}
