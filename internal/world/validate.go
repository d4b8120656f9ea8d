package world

import (
	"fmt"
	"path"

	"github.com/ppiankov/netshell/internal/host"
)

// toolTags maps installable tool names to program tags.
var toolTags = map[string]string{
	"sh":      "script",
	"ftp":     "ftp",
	"netscan": "netscan",
	"sleep":   "sleep",
}

// Validate checks that a blueprint is well-formed and self-consistent.
func Validate(bp *Blueprint) error {
	if bp.Name == "" {
		return fmt.Errorf("world name is required")
	}
	if len(bp.Hosts) == 0 {
		return fmt.Errorf("world %q has no hosts", bp.Name)
	}

	ids := make(map[string]bool)
	addrs := make(map[string]string)
	for i, h := range bp.Hosts {
		where := fmt.Sprintf("hosts[%d]", i)
		if h.ID == "" {
			return fmt.Errorf("%s: id is required", where)
		}
		where = fmt.Sprintf("hosts[%d] (%s)", i, h.ID)
		if ids[h.ID] {
			return fmt.Errorf("%s: duplicate host id", where)
		}
		ids[h.ID] = true

		for j, iface := range h.Interfaces {
			if iface.Net == "" || iface.Address == "" {
				return fmt.Errorf("%s: interfaces[%d]: net and address are required", where, j)
			}
			if other, dup := addrs[iface.Address]; dup {
				return fmt.Errorf("%s: address %s already used by %s", where, iface.Address, other)
			}
			addrs[iface.Address] = h.ID
		}

		ports := make(map[int]bool)
		for j, p := range h.Ports {
			if p.Port < 1 || p.Port > 65535 {
				return fmt.Errorf("%s: ports[%d]: port %d out of range", where, j, p.Port)
			}
			if ports[p.Port] {
				return fmt.Errorf("%s: ports[%d]: duplicate port %d", where, j, p.Port)
			}
			ports[p.Port] = true
			if !validProtocol(p.Protocol) {
				return fmt.Errorf("%s: ports[%d]: unknown protocol %q", where, j, p.Protocol)
			}
			if !host.Exposure(p.Exposure).Valid() {
				return fmt.Errorf("%s: ports[%d]: unknown exposure %q", where, j, p.Exposure)
			}
		}

		keys := make(map[string]bool)
		logins := make(map[string]bool)
		for j, u := range h.Users {
			if u.Key == "" || u.Login == "" {
				return fmt.Errorf("%s: users[%d]: key and login are required", where, j)
			}
			if keys[u.Key] || logins[u.Login] {
				return fmt.Errorf("%s: users[%d]: duplicate user %q", where, j, u.Login)
			}
			keys[u.Key], logins[u.Login] = true, true
			if _, err := host.ParsePrivileges(u.Privileges); err != nil {
				return fmt.Errorf("%s: users[%d]: %w", where, j, err)
			}
			if !validAuth(u.Auth) {
				return fmt.Errorf("%s: users[%d]: unknown auth mode %q", where, j, u.Auth)
			}
		}
		for _, u := range h.Users {
			if logins[u.Key] && u.Key != u.Login {
				return fmt.Errorf("%s: storage key %q collides with a login", where, u.Key)
			}
		}

		for j, f := range h.Files {
			if !path.IsAbs(f.Path) {
				return fmt.Errorf("%s: files[%d]: path %q must be absolute", where, j, f.Path)
			}
		}
		for _, d := range h.Dirs {
			if !path.IsAbs(d) {
				return fmt.Errorf("%s: dir %q must be absolute", where, d)
			}
		}
		for _, tool := range h.Tools {
			if _, ok := toolTags[tool]; !ok {
				return fmt.Errorf("%s: unknown tool %q", where, tool)
			}
		}
	}

	if !ids[bp.Start.Host] {
		return fmt.Errorf("start host %q is not defined", bp.Start.Host)
	}
	for _, h := range bp.Hosts {
		if h.ID != bp.Start.Host {
			continue
		}
		for _, u := range h.Users {
			if u.Login == bp.Start.Login {
				return nil
			}
		}
	}
	return fmt.Errorf("start login %q does not exist on %s", bp.Start.Login, bp.Start.Host)
}

func validProtocol(p string) bool {
	switch host.Protocol(p) {
	case host.ProtoNone, host.ProtoSSH, host.ProtoFTP, host.ProtoHTTP:
		return true
	}
	return false
}

func validAuth(a string) bool {
	switch host.AuthMode(a) {
	case "", host.AuthStatic, host.AuthHashed, host.AuthNone, host.AuthDisabled:
		return true
	}
	return false
}
