package host

import (
	"sort"

	"github.com/ppiankov/netshell/internal/model"
)

// Registry maps host ids and interface addresses to hosts.
type Registry struct {
	hosts  map[string]*Host
	byAddr map[string]*Host
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		hosts:  make(map[string]*Host),
		byAddr: make(map[string]*Host),
	}
}

// Add registers a host. Ids and addresses must be unique across the world.
func (r *Registry) Add(h *Host) error {
	if h == nil || h.ID == "" {
		return model.Fail(model.CodeInvalidArgs, "host id is required")
	}
	if _, exists := r.hosts[h.ID]; exists {
		return model.Fail(model.CodeAlreadyExists, "duplicate host id %q", h.ID)
	}
	for _, i := range h.Interfaces {
		if other, exists := r.byAddr[i.Address]; exists {
			return model.Fail(model.CodeAlreadyExists, "address %s already used by %s", i.Address, other.ID)
		}
	}
	r.hosts[h.ID] = h
	for _, i := range h.Interfaces {
		r.byAddr[i.Address] = h
	}
	return nil
}

// Host returns a host by id.
func (r *Registry) Host(id string) (*Host, bool) {
	h, ok := r.hosts[id]
	return h, ok
}

// ByAddress returns the host owning an interface address.
func (r *Registry) ByAddress(addr string) (*Host, bool) {
	h, ok := r.byAddr[addr]
	return h, ok
}

// Resolve finds a host by address first, then by id.
func (r *Registry) Resolve(target string) (*Host, bool) {
	if h, ok := r.byAddr[target]; ok {
		return h, true
	}
	return r.Host(target)
}

// Lookup resolves a target or returns a not_found failure.
func (r *Registry) Lookup(target string) (*Host, error) {
	h, ok := r.Resolve(target)
	if !ok {
		return nil, model.Fail(model.CodeNotFound, "%s: host not found", target)
	}
	return h, nil
}

// Hosts returns all hosts ordered by id.
func (r *Registry) Hosts() []*Host {
	out := make([]*Host, 0, len(r.hosts))
	for _, h := range r.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of hosts.
func (r *Registry) Len() int {
	return len(r.hosts)
}
