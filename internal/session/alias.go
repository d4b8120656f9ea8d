package session

import (
	"bytes"
	"path"
	"strconv"

	"github.com/kevinburke/ssh_config"

	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/model"
)

// alias is what a "Host" block of ~/.ssh/config contributes to a connect.
type alias struct {
	HostName string
	User     string
	Port     int
}

// lookupAlias reads <home>/.ssh/config on the source host and resolves name.
// A block that sets any of HostName, User or Port matches; HostName defaults
// to name. A missing config file or an unmatched name is not an error.
func lookupAlias(src *host.Host, login, name string) (alias, bool, error) {
	cfgPath := path.Join(src.HomeDir(login), ".ssh", "config")
	data, err := src.FS.ReadFile(cfgPath)
	if err != nil {
		return alias{}, false, nil
	}
	cfg, err := ssh_config.Decode(bytes.NewReader(data))
	if err != nil {
		return alias{}, false, model.Wrap(model.CodeInvalidArgs, err, "%s: malformed ssh config", cfgPath)
	}

	hostName, _ := cfg.Get(name, "HostName")
	user, _ := cfg.Get(name, "User")
	port, _ := cfg.Get(name, "Port")
	if hostName == "" && user == "" && port == "" {
		return alias{}, false, nil
	}
	a := alias{HostName: hostName, User: user}
	if a.HostName == "" {
		a.HostName = name
	}
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return alias{}, false, model.Fail(model.CodeInvalidArgs, "%s: bad port %q for %s", cfgPath, port, name)
		}
		a.Port = n
	}
	return a, true, nil
}
