// Package policy answers the two orthogonal questions gating every cross-host
// operation: is this identity allowed to do it (privilege), and can this caller
// reach that port at all (exposure).
package policy

import (
	"strings"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
)

// Need is one bit of the read/write/execute triple.
type Need string

const (
	NeedRead    Need = "read"
	NeedWrite   Need = "write"
	NeedExecute Need = "execute"
)

// CheckPrivilege reports whether login holds every requested privilege on h.
// Unknown logins hold nothing.
func CheckPrivilege(h *host.Host, login string, needs ...Need) bool {
	if h == nil {
		return false
	}
	u, ok := h.LookupLogin(login)
	if !ok {
		return false
	}
	for _, n := range needs {
		switch n {
		case NeedRead:
			if !u.Privileges.Read {
				return false
			}
		case NeedWrite:
			if !u.Privileges.Write {
				return false
			}
		case NeedExecute:
			if !u.Privileges.Execute {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// RequirePrivilege is CheckPrivilege returning a permission_denied failure.
func RequirePrivilege(h *host.Host, login string, needs ...Need) error {
	if CheckPrivilege(h, login, needs...) {
		return nil
	}
	names := make([]string, len(needs))
	for i, n := range needs {
		names[i] = string(n)
	}
	hostID := ""
	if h != nil {
		hostID = h.ID
	}
	return model.Fail(model.CodePermissionDenied, "permission denied: %s@%s lacks %s",
		login, hostID, strings.Join(names, "+"))
}
