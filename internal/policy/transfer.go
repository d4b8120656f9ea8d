package policy

import "github.com/ppiankov/netshell/internal/host"

// Direction of a two-endpoint transfer, seen from the local endpoint.
type Direction string

const (
	Download Direction = "download" // remote -> local
	Upload   Direction = "upload"   // local -> remote
)

// Endpoint is one side of a transfer: a host and the identity acting on it.
type Endpoint struct {
	Host  *host.Host
	Login string
}

// CheckTransfer requires read at the content source and write at the content
// destination. Both checks are independent; the source is checked first.
func CheckTransfer(dir Direction, local, remote Endpoint) error {
	src, dst := remote, local
	if dir == Upload {
		src, dst = local, remote
	}
	if err := RequirePrivilege(src.Host, src.Login, NeedRead); err != nil {
		return err
	}
	return RequirePrivilege(dst.Host, dst.Login, NeedWrite)
}
