// Package host holds the logical machines of a world: their interfaces, ports,
// users, filesystem, open sessions and optional connection limiter daemon.
package host

import (
	"sort"
	"time"

	"github.com/ppiankov/netshell/internal/ratelimit"
	"github.com/ppiankov/netshell/internal/vfs"
)

// Exposure is a port's reachability rule.
type Exposure string

const (
	ExposurePublic    Exposure = "public"
	ExposureLAN       Exposure = "lan"
	ExposureLocalhost Exposure = "localhost"
)

// Valid reports whether e is a known exposure.
func (e Exposure) Valid() bool {
	switch e {
	case ExposurePublic, ExposureLAN, ExposureLocalhost:
		return true
	}
	return false
}

// Protocol is the service type bound to a port.
type Protocol string

const (
	ProtoNone Protocol = "none"
	ProtoSSH  Protocol = "ssh"
	ProtoFTP  Protocol = "ftp"
	ProtoHTTP Protocol = "http"
)

// Interface attaches a host to a network segment.
type Interface struct {
	NetID   string `json:"net_id"`
	Address string `json:"address"`
}

// Port is one entry of a host's port table.
type Port struct {
	Number   int      `json:"number"`
	Protocol Protocol `json:"protocol"`
	Exposure Exposure `json:"exposure"`
	Banner   string   `json:"banner,omitempty"`
}

// Open reports whether the port runs any service at all.
func (p *Port) Open() bool {
	return p != nil && p.Protocol != ProtoNone && p.Protocol != ""
}

// SessionRecord is an open session as seen from its target host.
type SessionRecord struct {
	ID           int
	Login        string
	SourceHostID string
	SourceLogin  string
	SourceCwd    string
	OpenedAt     time.Time
}

// Host is a logical machine.
type Host struct {
	ID         string
	Name       string
	Interfaces []Interface
	Ports      map[int]*Port
	Users      map[string]*User // keyed by internal storage key
	FS         *vfs.FS
	Limiter    *ratelimit.ConnLimiter

	sessions    map[int]SessionRecord
	nextSession int
}

// New creates a host with empty tables and a fresh filesystem.
func New(id, name string) *Host {
	if name == "" {
		name = id
	}
	return &Host{
		ID:       id,
		Name:     name,
		Ports:    make(map[int]*Port),
		Users:    make(map[string]*User),
		FS:       vfs.New(),
		sessions: make(map[int]SessionRecord),
	}
}

// AddInterface attaches the host to a segment.
func (h *Host) AddInterface(netID, address string) {
	h.Interfaces = append(h.Interfaces, Interface{NetID: netID, Address: address})
}

// AddPort adds or replaces a port table entry.
func (h *Host) AddPort(p Port) {
	h.Ports[p.Number] = &p
}

// AddUser adds or replaces a user by its internal key.
func (h *Host) AddUser(u *User) {
	h.Users[u.Key] = u
}

// Port returns the port entry for number.
func (h *Host) Port(number int) (*Port, bool) {
	p, ok := h.Ports[number]
	return p, ok
}

// FirstPort returns the lowest-numbered port running proto.
func (h *Host) FirstPort(proto Protocol) (*Port, bool) {
	for _, p := range h.SortedPorts() {
		if p.Protocol == proto {
			return p, true
		}
	}
	return nil, false
}

// SortedPorts returns the port table ordered by number.
func (h *Host) SortedPorts() []*Port {
	out := make([]*Port, 0, len(h.Ports))
	for _, p := range h.Ports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// PrimaryAddress returns the first interface address, or "" for an isolated host.
func (h *Host) PrimaryAddress() string {
	if len(h.Interfaces) == 0 {
		return ""
	}
	return h.Interfaces[0].Address
}

// OnSegment reports whether the host has an interface on netID.
func (h *Host) OnSegment(netID string) bool {
	for _, i := range h.Interfaces {
		if i.NetID == netID {
			return true
		}
	}
	return false
}

// SharedInterface returns the first interface of h on a segment that other also
// sits on, falling back to h's primary interface.
func (h *Host) SharedInterface(other *Host) (Interface, bool) {
	for _, i := range h.Interfaces {
		if other.OnSegment(i.NetID) {
			return i, true
		}
	}
	if len(h.Interfaces) > 0 {
		return h.Interfaces[0], false
	}
	return Interface{}, false
}

// LookupLogin finds a user by public login identifier. Internal keys never match.
func (h *Host) LookupLogin(login string) (*User, bool) {
	for _, u := range h.Users {
		if u.Login == login {
			return u, true
		}
	}
	return nil, false
}

// IsStorageKey reports whether s names a user's internal key without being
// anyone's login.
func (h *Host) IsStorageKey(s string) bool {
	if _, isLogin := h.LookupLogin(s); isLogin {
		return false
	}
	_, ok := h.Users[s]
	return ok
}

// HomeDir returns the working directory a login starts in on this host.
func (h *Host) HomeDir(login string) string {
	if u, ok := h.LookupLogin(login); ok && u.Home != "" && h.FS.IsDir(u.Home) {
		return u.Home
	}
	return "/"
}
