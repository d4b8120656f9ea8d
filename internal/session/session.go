// Package session models authenticated hops between hosts and the routes that
// chain them. Sessions and routes are plain values: connecting or appending
// returns a new value and never mutates an existing one.
package session

import (
	"github.com/ppiankov/netshell/internal/model"
)

// Kind tags the two operand shapes.
type Kind string

const (
	KindSession Kind = "session"
	KindRoute   Kind = "route"
)

// Source is the execution context a session was opened from.
type Source struct {
	HostID string `json:"host"`
	Login  string `json:"login"`
	Cwd    string `json:"cwd"`
}

// Session is one authenticated hop onto HostID as Login.
type Session struct {
	HostID    string
	ID        int
	Login     string
	Cwd       string
	Source    Source
	Simulated bool
}

// Operand is either a Session or a Route. The unexported method closes the set.
type Operand interface {
	Kind() Kind
	sealed()
}

func (Session) Kind() Kind { return KindSession }
func (Session) sealed()    {}

// Target returns the context a hop chained from this session starts in.
func (s Session) Target() Source {
	return Source{HostID: s.HostID, Login: s.Login, Cwd: s.Cwd}
}

// matches compares everything but the cwd, which a hop's holder may move.
func (s Session) matches(o Session) bool {
	return s.HostID == o.HostID && s.ID == o.ID && s.Login == o.Login && s.Source == o.Source
}

func (s Session) validate() error {
	switch {
	case s.HostID == "":
		return model.Fail(model.CodeInvalidArgs, "session: missing host")
	case s.ID <= 0:
		return model.Fail(model.CodeInvalidArgs, "session: invalid id %d", s.ID)
	case s.Login == "":
		return model.Fail(model.CodeInvalidArgs, "session: missing login")
	case s.Source.HostID == "":
		return model.Fail(model.CodeInvalidArgs, "session: missing source host")
	case s.Source.Login == "":
		return model.Fail(model.CodeInvalidArgs, "session: missing source login")
	case s.Source.Cwd == "":
		return model.Fail(model.CodeInvalidArgs, "session: missing source cwd")
	}
	return nil
}

// Route is an immutable, non-empty chain of hops. Hop i+1 always starts from
// hop i's target context.
type Route struct {
	hops []Session
}

func (Route) Kind() Kind { return KindRoute }
func (Route) sealed()    {}

// NewRoute builds a route from hops, enforcing shape and chain continuity.
func NewRoute(hops ...Session) (Route, error) {
	if len(hops) == 0 {
		return Route{}, model.Fail(model.CodeInvalidArgs, "route: no hops")
	}
	for i, h := range hops {
		if err := h.validate(); err != nil {
			return Route{}, model.Wrap(model.CodeInvalidArgs, err, "route: hop %d", i+1)
		}
		if i == 0 {
			continue
		}
		prev := hops[i-1]
		if h.Source.HostID != prev.HostID || h.Source.Login != prev.Login {
			return Route{}, model.Fail(model.CodeInvalidArgs,
				"route: hop %d starts from %s@%s, previous hop ends at %s@%s",
				i+1, h.Source.Login, h.Source.HostID, prev.Login, prev.HostID)
		}
	}
	out := make([]Session, len(hops))
	copy(out, hops)
	return Route{hops: out}, nil
}

// Append returns a new route extended by s.
func (r Route) Append(s Session) (Route, error) {
	hops := make([]Session, 0, len(r.hops)+1)
	hops = append(hops, r.hops...)
	hops = append(hops, s)
	return NewRoute(hops...)
}

// Sessions returns a copy of the hops, first to last.
func (r Route) Sessions() []Session {
	out := make([]Session, len(r.hops))
	copy(out, r.hops)
	return out
}

// Last is the hop a route acts as.
func (r Route) Last() Session {
	if len(r.hops) == 0 {
		return Session{}
	}
	return r.hops[len(r.hops)-1]
}

// First is hop 1.
func (r Route) First() Session {
	if len(r.hops) == 0 {
		return Session{}
	}
	return r.hops[0]
}

// HopCount returns the number of hops.
func (r Route) HopCount() int {
	return len(r.hops)
}

// PrefixRoutes returns every strict non-empty prefix, shortest first.
func (r Route) PrefixRoutes() []Route {
	if len(r.hops) < 2 {
		return nil
	}
	out := make([]Route, 0, len(r.hops)-1)
	for n := 1; n < len(r.hops); n++ {
		out = append(out, Route{hops: r.hops[:n:n]})
	}
	return out
}

// Validate checks an operand's shape. A nil operand is valid (no chaining).
func Validate(op Operand) error {
	switch v := op.(type) {
	case nil:
		return nil
	case Session:
		return v.validate()
	case Route:
		_, err := NewRoute(v.hops...)
		return err
	default:
		return model.Fail(model.CodeInvalidArgs, "unsupported operand %T", op)
	}
}

// Acting returns the hop an operand acts as: the session itself or the
// route's last hop.
func Acting(op Operand) (Session, bool) {
	switch v := op.(type) {
	case Session:
		return v, true
	case Route:
		if v.HopCount() == 0 {
			return Session{}, false
		}
		return v.Last(), true
	}
	return Session{}, false
}

// LocalEndpoint returns the local side of a transfer: a session's source, or
// hop 1's source for a route. It is never a route's tail.
func LocalEndpoint(op Operand) (Source, bool) {
	switch v := op.(type) {
	case Session:
		return v.Source, true
	case Route:
		if v.HopCount() == 0 {
			return Source{}, false
		}
		return v.First().Source, true
	}
	return Source{}, false
}

// Hops flattens an operand into its sessions.
func Hops(op Operand) []Session {
	switch v := op.(type) {
	case Session:
		return []Session{v}
	case Route:
		return v.Sessions()
	}
	return nil
}
