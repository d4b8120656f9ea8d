package intrinsic

import (
	"context"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/policy"
)

type viaArgs struct {
	Via any `json:"via"`
}

type scanArgs struct {
	Target string `json:"target"`
	Via    any    `json:"via"`
}

type inspectArgs struct {
	Target string `json:"target" validate:"required"`
	Port   int    `json:"port" validate:"required,min=1,max=65535"`
	Via    any    `json:"via"`
}

func netInterfaces(_ context.Context, env *Env, call *Call, a viaArgs) (map[string]any, error) {
	act, err := env.resolve(call, a.Via)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(act.host.Interfaces))
	for i, iface := range act.host.Interfaces {
		out[i] = map[string]any{"net": iface.NetID, "address": iface.Address}
	}
	return map[string]any{"host": act.host.ID, "interfaces": out}, nil
}

// netScan port-scans a host, or lists the hosts on a segment the acting host
// is attached to. An empty target lists every attached segment.
func netScan(_ context.Context, env *Env, call *Call, a scanArgs) (map[string]any, error) {
	act, err := env.resolve(call, a.Via)
	if err != nil {
		return nil, err
	}
	if a.Target != "" {
		if target, ok := env.Sessions.Hosts().Resolve(a.Target); ok {
			return scanPorts(act.host, target), nil
		}
		if !act.host.OnSegment(a.Target) {
			return nil, model.Fail(model.CodeNotFound, "%s: no such host or attached network", a.Target)
		}
	}

	var neighbors []any
	for _, iface := range act.host.Interfaces {
		if a.Target != "" && iface.NetID != a.Target {
			continue
		}
		for _, h := range env.Sessions.Hosts().Hosts() {
			for _, hi := range h.Interfaces {
				if hi.NetID != iface.NetID {
					continue
				}
				neighbors = append(neighbors, map[string]any{
					"host":    h.ID,
					"name":    h.Name,
					"net":     hi.NetID,
					"address": hi.Address,
					"self":    h.ID == act.host.ID,
				})
			}
		}
	}
	if neighbors == nil {
		neighbors = []any{}
	}
	return map[string]any{"from": act.host.ID, "hosts": neighbors}, nil
}

func scanPorts(from, target *host.Host) map[string]any {
	ports := make([]any, 0, len(target.Ports))
	for _, p := range target.SortedPorts() {
		state := "filtered"
		switch {
		case !p.Open():
			state = "closed"
		case policy.CheckExposure(from, target, p):
			state = "open"
		}
		entry := map[string]any{"port": p.Number, "state": state}
		if state == "open" {
			entry["protocol"] = string(p.Protocol)
		}
		ports = append(ports, entry)
	}
	return map[string]any{"host": target.ID, "address": target.PrimaryAddress(), "ports": ports}
}

// netInspect reads one port's service details. It is throttled by the global
// probe limiter before any lookup happens.
func netInspect(_ context.Context, env *Env, call *Call, a inspectArgs) (map[string]any, error) {
	act, err := env.resolve(call, a.Via)
	if err != nil {
		return nil, err
	}
	if env.Probe != nil {
		if err := env.Probe.Allow(env.now()); err != nil {
			return nil, err
		}
	}
	target, err := env.Sessions.Hosts().Lookup(a.Target)
	if err != nil {
		return nil, err
	}
	port, err := policy.Reach(act.host, target, a.Port)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"host":     target.ID,
		"port":     port.Number,
		"protocol": string(port.Protocol),
		"exposure": string(port.Exposure),
		"banner":   port.Banner,
	}, nil
}

func netSessions(_ context.Context, env *Env, call *Call, a viaArgs) (map[string]any, error) {
	act, err := env.resolve(call, a.Via)
	if err != nil {
		return nil, err
	}
	recs := act.host.Sessions()
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = map[string]any{
			"id":           r.ID,
			"login":        r.Login,
			"source_host":  r.SourceHostID,
			"source_login": r.SourceLogin,
		}
	}
	return map[string]any{"host": act.host.ID, "sessions": out}, nil
}
