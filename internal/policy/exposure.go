package policy

import (
	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
)

// ExposureAllows is the primitive reachability rule: the calling interface's
// segment, whether caller and target are the same host, and the port's policy.
// A port running protocol "none" is always closed.
func ExposureAllows(iface host.Interface, sameHost bool, target *host.Host, port *host.Port) bool {
	if !port.Open() {
		return false
	}
	if sameHost {
		return true
	}
	switch port.Exposure {
	case host.ExposurePublic:
		return true
	case host.ExposureLAN:
		return iface.NetID != "" && target.OnSegment(iface.NetID)
	default:
		return false
	}
}

// CheckExposure evaluates reachability from a source host, picking the source
// interface that shares a segment with the target when one exists.
func CheckExposure(from, target *host.Host, port *host.Port) bool {
	if from == nil || target == nil {
		return false
	}
	iface, _ := from.SharedInterface(target)
	return ExposureAllows(iface, from.ID == target.ID, target, port)
}

// Reach resolves a port on target and checks it is reachable from from.
// Missing or closed ports are port_closed; unreachable ones are net_denied.
func Reach(from, target *host.Host, number int) (*host.Port, error) {
	port, ok := target.Port(number)
	if !ok || !port.Open() {
		return nil, model.Fail(model.CodePortClosed, "%s:%d: port closed", target.PrimaryAddress(), number)
	}
	if !CheckExposure(from, target, port) {
		return nil, model.Fail(model.CodeNetDenied, "%s:%d: not reachable from %s (%s)",
			target.PrimaryAddress(), number, from.ID, port.Exposure)
	}
	return port, nil
}

// ReachService finds the lowest port running proto on target and checks reachability.
func ReachService(from, target *host.Host, proto host.Protocol) (*host.Port, error) {
	port, ok := target.FirstPort(proto)
	if !ok {
		return nil, model.Fail(model.CodePortClosed, "%s: no %s service", target.PrimaryAddress(), proto)
	}
	return Reach(from, target, port.Number)
}
