package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/audit"
	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/policy"
)

// Config wires a Manager.
type Config struct {
	Hosts  *host.Registry
	Audit  audit.Recorder
	Logger zerolog.Logger
	Now    func() time.Time
}

// Manager opens and closes sessions against the host registry. It is not safe
// for concurrent use; the scheduler's owner loop is its only caller.
type Manager struct {
	hosts *host.Registry
	audit audit.Recorder
	log   zerolog.Logger
	now   func() time.Time

	// Sandbox sessions handed out by apply-false connects, keyed by their
	// manager-wide id. open is false once a sandbox disconnect ran.
	sandbox map[int]sandboxHop
	nextSim int
}

type sandboxHop struct {
	session Session
	open    bool
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Audit == nil {
		cfg.Audit = audit.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		hosts:   cfg.Hosts,
		audit:   cfg.Audit,
		log:     cfg.Logger.With().Str("component", "session").Logger(),
		now:     cfg.Now,
		sandbox: map[int]sandboxHop{},
		nextSim: 1,
	}
}

// Hosts exposes the registry the manager resolves against.
func (m *Manager) Hosts() *host.Registry {
	return m.hosts
}

// ConnectRequest describes one connect attempt.
type ConnectRequest struct {
	Target     string
	Port       int // 0 selects the lowest ssh port
	Login      string
	Credential string
	Via        Operand // nil connects from Caller
	Caller     Source
	Apply      bool // false validates fully but opens nothing
}

// Connect authenticates a new hop. With no Via it returns a bare Session;
// chaining from a Session or Route returns a Route ending in the new hop.
func (m *Manager) Connect(ctx context.Context, req ConnectRequest) (Operand, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.Wrap(model.CodeInternalError, err, "connect cancelled")
	}
	if req.Target == "" {
		return nil, model.Fail(model.CodeInvalidArgs, "connect: missing host")
	}
	if err := Validate(req.Via); err != nil {
		return nil, err
	}

	src, srcHost, err := m.sourceContext(req)
	if err != nil {
		return nil, err
	}

	target, port, login, err := m.resolveTarget(src, srcHost, req)
	entry := audit.Entry{
		Event:  audit.EventConnect,
		Source: audit.Endpoint{Host: src.HostID, Login: src.Login},
		Target: audit.Endpoint{Host: req.Target, Login: login},
		Port:   port,
	}
	if target != nil {
		entry.Target.Host = target.ID
	}
	if err != nil {
		m.record(entry, err)
		return nil, err
	}

	if err := m.authenticate(target, port, login, req.Credential, srcHost); err != nil {
		m.record(entry, err)
		return nil, err
	}

	next := Session{
		HostID: target.ID,
		Login:  login,
		Cwd:    target.HomeDir(login),
		Source: src,
	}
	if req.Apply {
		next.ID = target.OpenSession(host.SessionRecord{
			Login:        login,
			SourceHostID: src.HostID,
			SourceLogin:  src.Login,
			SourceCwd:    src.Cwd,
		}, m.now())
	} else {
		next.ID = m.nextSim
		next.Simulated = true
		m.nextSim++
		m.sandbox[next.ID] = sandboxHop{session: next, open: true}
	}
	entry.SessionID = next.ID
	entry.Simulated = next.Simulated
	m.record(entry, nil)

	m.log.Debug().
		Str("target", target.ID).
		Str("login", login).
		Int("session", next.ID).
		Bool("simulated", next.Simulated).
		Msg("session opened")

	var route Route
	switch via := req.Via.(type) {
	case Session:
		route, err = NewRoute(via, next)
	case Route:
		route, err = via.Append(next)
	default:
		return next, nil
	}
	if err != nil {
		return nil, err
	}
	return route, nil
}

// sourceContext derives the identity a connect starts from. A chained connect
// starts from the acting hop's target, which must still be open.
func (m *Manager) sourceContext(req ConnectRequest) (Source, *host.Host, error) {
	src := req.Caller
	if acting, ok := Acting(req.Via); ok {
		if _, err := m.liveHost(acting, req.Apply); err != nil {
			return Source{}, nil, err
		}
		src = acting.Target()
	}
	if src.HostID == "" || src.Login == "" {
		return Source{}, nil, model.Fail(model.CodeInvalidArgs, "connect: missing caller context")
	}
	if src.Cwd == "" {
		src.Cwd = "/"
	}
	h, ok := m.hosts.Host(src.HostID)
	if !ok {
		return Source{}, nil, model.Fail(model.CodeInvalidArgs, "connect: unknown source host %q", src.HostID)
	}
	return src, h, nil
}

// resolveTarget finds the target host, port and login. A matching Host block
// in the source login's ssh config fills in whatever the request left unset,
// also when the name is itself a host id or address.
func (m *Manager) resolveTarget(src Source, srcHost *host.Host, req ConnectRequest) (*host.Host, int, string, error) {
	name, number, login := req.Target, req.Port, req.Login
	a, found, err := lookupAlias(srcHost, src.Login, name)
	if err != nil {
		return nil, number, login, err
	}
	if found {
		name = a.HostName
		if login == "" {
			login = a.User
		}
		if number == 0 {
			number = a.Port
		}
	}
	if login == "" {
		login = src.Login
	}

	target, err := m.hosts.Lookup(name)
	if err != nil {
		return nil, number, login, err
	}

	var port *host.Port
	if number == 0 {
		p, ok := target.FirstPort(host.ProtoSSH)
		if !ok {
			return target, 0, login, model.Fail(model.CodePortClosed, "%s: no ssh service", name)
		}
		port = p
	} else {
		p, ok := target.Port(number)
		if !ok || !p.Open() {
			return target, number, login, model.Fail(model.CodePortClosed, "%s:%d: port closed", name, number)
		}
		if p.Protocol != host.ProtoSSH {
			return target, number, login, model.Fail(model.CodePortClosed, "%s:%d: not an ssh service (%s)", name, number, p.Protocol)
		}
		port = p
	}

	if !policy.CheckExposure(srcHost, target, port) {
		return target, port.Number, login, model.Fail(model.CodeNetDenied,
			"%s:%d: not reachable from %s", name, port.Number, srcHost.ID)
	}
	return target, port.Number, login, nil
}

// authenticate runs the limiter daemon, then the login lookup, then the
// credential check. Storage keys are never login input.
func (m *Manager) authenticate(target *host.Host, port int, login, credential string, from *host.Host) error {
	if target.Limiter != nil {
		v := target.Limiter.Observe(m.now())
		if !v.Allowed {
			m.log.Info().Str("target", target.ID).Str("from", from.ID).Str("reason", v.Reason).Msg("connect throttled")
			return model.Fail(model.CodeRateLimited, "%s: %s", target.ID, v.Reason)
		}
	}
	if target.IsStorageKey(login) {
		return model.Fail(model.CodeNotFound, "%s: no such login %q", target.ID, login)
	}
	u, ok := target.LookupLogin(login)
	if !ok || !u.Verify(credential) {
		return model.Fail(model.CodeAuthFailed, "%s@%s:%d: authentication failed", login, target.ID, port)
	}
	return nil
}

// DisconnectResult reports a disconnect. Summary is set for routes only.
type DisconnectResult struct {
	Disconnected bool     `json:"disconnected"`
	Summary      *Summary `json:"summary,omitempty"`
}

// Summary counts what a route disconnect did.
type Summary struct {
	Requested     int `json:"requested"`
	Closed        int `json:"closed"`
	AlreadyClosed int `json:"already_closed"`
}

// Disconnect closes a session or every hop of a route, last hop first.
// Closed hops are reported, never treated as errors. With apply false nothing
// is closed; the result describes what would happen.
func (m *Manager) Disconnect(ctx context.Context, op Operand, apply bool) (DisconnectResult, error) {
	if err := ctx.Err(); err != nil {
		return DisconnectResult{}, model.Wrap(model.CodeInternalError, err, "disconnect cancelled")
	}
	if op == nil {
		return DisconnectResult{}, model.Fail(model.CodeInvalidArgs, "disconnect: missing session or route")
	}
	if err := Validate(op); err != nil {
		return DisconnectResult{}, err
	}
	hops := Hops(op)
	hosts := make([]*host.Host, len(hops))
	for i, s := range hops {
		h, ok := m.hosts.Host(s.HostID)
		if !ok {
			return DisconnectResult{}, model.Fail(model.CodeInvalidArgs, "disconnect: unknown host %q", s.HostID)
		}
		if s.Simulated {
			if err := m.checkSandbox(s, apply); err != nil {
				return DisconnectResult{}, err
			}
		}
		hosts[i] = h
	}

	sum := Summary{Requested: len(hops)}
	for i := len(hops) - 1; i >= 0; i-- {
		if m.closeHop(hosts[i], hops[i], apply) {
			sum.Closed++
		} else {
			sum.AlreadyClosed++
		}
	}

	if _, isRoute := op.(Route); isRoute {
		return DisconnectResult{Disconnected: sum.Closed > 0, Summary: &sum}, nil
	}
	return DisconnectResult{Disconnected: sum.Closed == 1}, nil
}

func (m *Manager) closeHop(h *host.Host, s Session, apply bool) bool {
	if s.Simulated {
		hop := m.sandbox[s.ID]
		if !hop.open {
			return false
		}
		hop.open = false
		m.sandbox[s.ID] = hop
		return true
	}
	if !apply {
		return h.HasSession(s.ID)
	}
	rec, open := h.Session(s.ID)
	if !open || rec.Login != s.Login {
		return false
	}
	h.CloseSession(s.ID)
	m.record(audit.Entry{
		Event:     audit.EventDisconnect,
		Source:    audit.Endpoint{Host: s.Source.HostID, Login: s.Source.Login},
		Target:    audit.Endpoint{Host: h.ID, Login: s.Login},
		SessionID: s.ID,
	}, nil)
	m.log.Debug().Str("target", h.ID).Int("session", s.ID).Msg("session closed")
	return true
}

// IsOpen reports whether a session is still live on its target. A simulated
// session is open while this manager's sandbox still holds it.
func (m *Manager) IsOpen(s Session) bool {
	if s.Simulated {
		hop, issued := m.sandbox[s.ID]
		return issued && hop.open && hop.session.matches(s)
	}
	h, ok := m.hosts.Host(s.HostID)
	if !ok {
		return false
	}
	rec, open := h.Session(s.ID)
	return open && rec.Login == s.Login
}

// checkSandbox rejects a simulated hop in an applied operation, and any
// simulated hop this manager never issued.
func (m *Manager) checkSandbox(s Session, apply bool) error {
	if apply {
		return model.Fail(model.CodeInvalidArgs, "session %d on %s is simulated and cannot act on the world", s.ID, s.HostID)
	}
	hop, issued := m.sandbox[s.ID]
	if !issued || !hop.session.matches(s) {
		return model.Fail(model.CodeInvalidArgs, "session %d on %s was not issued by a sandbox connect", s.ID, s.HostID)
	}
	return nil
}

// liveHost returns the target host of an open hop.
func (m *Manager) liveHost(s Session, apply bool) (*host.Host, error) {
	h, ok := m.hosts.Host(s.HostID)
	if !ok {
		return nil, model.Fail(model.CodeInvalidArgs, "unknown host %q", s.HostID)
	}
	if s.Simulated {
		if err := m.checkSandbox(s, apply); err != nil {
			return nil, err
		}
	}
	if !m.IsOpen(s) {
		return nil, model.Fail(model.CodeNotFound, "session %d on %s is closed", s.ID, s.HostID)
	}
	return h, nil
}

// ActingHost validates an operand and resolves its acting hop to a live host
// for an operation running with the given apply mode.
func (m *Manager) ActingHost(op Operand, apply bool) (*host.Host, Session, error) {
	if err := Validate(op); err != nil {
		return nil, Session{}, err
	}
	s, ok := Acting(op)
	if !ok {
		return nil, Session{}, model.Fail(model.CodeInvalidArgs, "missing session or route")
	}
	h, err := m.liveHost(s, apply)
	if err != nil {
		return nil, Session{}, err
	}
	return h, s, nil
}

// record writes an audit entry. Audit failures are logged, never surfaced.
func (m *Manager) record(e audit.Entry, err error) {
	e.Outcome = string(model.CodeOf(err))
	if err != nil {
		e.Reason = model.MessageOf(err)
	}
	if rerr := m.audit.Record(e); rerr != nil {
		m.log.Warn().Err(rerr).Msg("audit record failed")
	}
}
