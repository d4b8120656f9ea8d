package policy

import (
	"testing"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
)

func network() (home, gateway, db *host.Host) {
	home = host.New("home", "")
	home.AddInterface("homenet", "192.168.1.2")

	gateway = host.New("gateway", "")
	gateway.AddInterface("internet", "203.0.113.10")
	gateway.AddInterface("corp", "10.1.0.1")
	gateway.AddPort(host.Port{Number: 22, Protocol: host.ProtoSSH, Exposure: host.ExposurePublic})
	gateway.AddPort(host.Port{Number: 8080, Protocol: host.ProtoHTTP, Exposure: host.ExposureLocalhost})

	db = host.New("db", "")
	db.AddInterface("corp", "10.1.0.5")
	db.AddPort(host.Port{Number: 22, Protocol: host.ProtoSSH, Exposure: host.ExposureLAN})
	db.AddPort(host.Port{Number: 21, Protocol: host.ProtoFTP, Exposure: host.ExposureLAN})
	db.AddPort(host.Port{Number: 7, Protocol: host.ProtoNone, Exposure: host.ExposurePublic})
	return home, gateway, db
}

func TestExposureMatrix(t *testing.T) {
	home, gateway, db := network()
	dbSSH, _ := db.Port(22)
	gwSSH, _ := gateway.Port(22)
	gwLocal, _ := gateway.Port(8080)
	dbNone, _ := db.Port(7)

	tests := []struct {
		name         string
		from, target *host.Host
		port         *host.Port
		want         bool
	}{
		{"public from anywhere", home, gateway, gwSSH, true},
		{"lan from other segment", home, db, dbSSH, false},
		{"lan from same segment", gateway, db, dbSSH, true},
		{"localhost from remote", home, gateway, gwLocal, false},
		{"localhost from same host", gateway, gateway, gwLocal, true},
		{"protocol none always closed", gateway, db, dbNone, false},
		{"protocol none closed on same host", db, db, dbNone, false},
	}
	for _, tt := range tests {
		if got := CheckExposure(tt.from, tt.target, tt.port); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestExposureAllowsInterfaceLevel(t *testing.T) {
	_, _, db := network()
	port, _ := db.Port(22)
	if !ExposureAllows(host.Interface{NetID: "corp"}, false, db, port) {
		t.Error("expected corp interface to reach lan port")
	}
	if ExposureAllows(host.Interface{NetID: "homenet"}, false, db, port) {
		t.Error("expected homenet interface to be denied")
	}
	if ExposureAllows(host.Interface{}, false, db, port) {
		t.Error("expected interface without segment to be denied")
	}
}

func TestReachCodes(t *testing.T) {
	home, gateway, db := network()

	if _, err := Reach(home, gateway, 22); err != nil {
		t.Errorf("expected gateway ssh reachable, got %v", err)
	}
	if _, err := Reach(home, db, 22); model.CodeOf(err) != model.CodeNetDenied {
		t.Errorf("expected net_denied, got %v", err)
	}
	if _, err := Reach(gateway, db, 443); model.CodeOf(err) != model.CodePortClosed {
		t.Errorf("expected port_closed for missing port, got %v", err)
	}
	if _, err := Reach(gateway, db, 7); model.CodeOf(err) != model.CodePortClosed {
		t.Errorf("expected port_closed for protocol none, got %v", err)
	}
}

func TestReachService(t *testing.T) {
	_, gateway, db := network()
	p, err := ReachService(gateway, db, host.ProtoFTP)
	if err != nil || p.Number != 21 {
		t.Fatalf("expected ftp on 21, got %v %v", p, err)
	}
	if _, err := ReachService(db, gateway, host.ProtoFTP); model.CodeOf(err) != model.CodePortClosed {
		t.Errorf("expected port_closed for missing service, got %v", err)
	}
}
