package session

import (
	"encoding/json"
	"math"

	"github.com/ppiankov/netshell/internal/model"
)

// ToMap renders an operand in its script-visible form.
func ToMap(op Operand) map[string]any {
	switch v := op.(type) {
	case Session:
		return sessionMap(v)
	case Route:
		hops := make([]any, len(v.hops))
		for i, h := range v.hops {
			hops[i] = sessionMap(h)
		}
		return map[string]any{
			"kind":      string(KindRoute),
			"sessions":  hops,
			"last":      sessionMap(v.Last()),
			"hop_count": v.HopCount(),
		}
	}
	return nil
}

func sessionMap(s Session) map[string]any {
	m := map[string]any{
		"kind":  string(KindSession),
		"host":  s.HostID,
		"id":    s.ID,
		"login": s.Login,
		"cwd":   s.Cwd,
		"source": map[string]any{
			"host":  s.Source.HostID,
			"login": s.Source.Login,
			"cwd":   s.Source.Cwd,
		},
	}
	if s.Simulated {
		m["simulated"] = true
	}
	return m
}

// FromMap decodes a script-visible operand. Decoding is strict: a missing or
// mistyped field is invalid_args.
func FromMap(m map[string]any) (Operand, error) {
	if m == nil {
		return nil, model.Fail(model.CodeInvalidArgs, "operand: expected a session or route map")
	}
	kind, ok := m["kind"].(string)
	if !ok {
		return nil, model.Fail(model.CodeInvalidArgs, "operand: missing kind")
	}
	switch Kind(kind) {
	case KindSession:
		s, err := decodeSession(m)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindRoute:
		return decodeRoute(m)
	default:
		return nil, model.Fail(model.CodeInvalidArgs, "operand: unknown kind %q", kind)
	}
}

// FromValue decodes an operand from any script value: a map, or JSON text of one.
func FromValue(v any) (Operand, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return FromMap(t)
	case Operand:
		return t, Validate(t)
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err != nil {
			return nil, model.Fail(model.CodeInvalidArgs, "operand: not a session or route")
		}
		return FromMap(m)
	default:
		return nil, model.Fail(model.CodeInvalidArgs, "operand: unsupported type %T", v)
	}
}

func decodeRoute(m map[string]any) (Operand, error) {
	raw, ok := m["sessions"].([]any)
	if !ok {
		return nil, model.Fail(model.CodeInvalidArgs, "route: missing sessions")
	}
	hops := make([]Session, 0, len(raw))
	for i, h := range raw {
		hm, ok := h.(map[string]any)
		if !ok {
			return nil, model.Fail(model.CodeInvalidArgs, "route: hop %d is not a session", i+1)
		}
		if k, _ := hm["kind"].(string); k != "" && k != string(KindSession) {
			return nil, model.Fail(model.CodeInvalidArgs, "route: hop %d has kind %q", i+1, k)
		}
		s, err := decodeSession(hm)
		if err != nil {
			return nil, model.Wrap(model.CodeInvalidArgs, err, "route: hop %d", i+1)
		}
		hops = append(hops, s)
	}
	if hc, present := m["hop_count"]; present {
		n, ok := toInt(hc)
		if !ok || n != len(hops) {
			return nil, model.Fail(model.CodeInvalidArgs, "route: hop_count does not match sessions")
		}
	}
	return NewRoute(hops...)
}

func decodeSession(m map[string]any) (Session, error) {
	var s Session
	var err error
	if s.HostID, err = requireString(m, "host"); err != nil {
		return Session{}, err
	}
	id, ok := toInt(m["id"])
	if !ok {
		return Session{}, model.Fail(model.CodeInvalidArgs, "session: id must be an integer")
	}
	s.ID = id
	if s.Login, err = requireString(m, "login"); err != nil {
		return Session{}, err
	}
	if s.Cwd, err = requireString(m, "cwd"); err != nil {
		return Session{}, err
	}
	src, ok := m["source"].(map[string]any)
	if !ok {
		return Session{}, model.Fail(model.CodeInvalidArgs, "session: missing source")
	}
	if s.Source.HostID, err = requireString(src, "host"); err != nil {
		return Session{}, err
	}
	if s.Source.Login, err = requireString(src, "login"); err != nil {
		return Session{}, err
	}
	if s.Source.Cwd, err = requireString(src, "cwd"); err != nil {
		return Session{}, err
	}
	if v, present := m["simulated"]; present {
		b, ok := v.(bool)
		if !ok {
			return Session{}, model.Fail(model.CodeInvalidArgs, "session: simulated must be a bool")
		}
		s.Simulated = b
	}
	return s, s.validate()
}

func requireString(m map[string]any, key string) (string, error) {
	v, ok := m[key].(string)
	if !ok || v == "" {
		return "", model.Fail(model.CodeInvalidArgs, "session: missing %s", key)
	}
	return v, nil
}

// toInt accepts the integer shapes a map can carry after a JSON round trip.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
