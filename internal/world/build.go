package world

import (
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/audit"
	"github.com/ppiankov/netshell/internal/host"
	"github.com/ppiankov/netshell/internal/programs"
	"github.com/ppiankov/netshell/internal/ratelimit"
	"github.com/ppiankov/netshell/internal/scheduler"
	"github.com/ppiankov/netshell/internal/session"
)

// Options configures Build.
type Options struct {
	Settings scheduler.Settings
	Audit    audit.Recorder
	Logger   zerolog.Logger
	Now      func() time.Time
}

// World is a composed network ready to serve terminals.
type World struct {
	Name      string
	Start     Start
	Hosts     *host.Registry
	Sessions  *session.Manager
	Scheduler *scheduler.Scheduler
}

// Build validates bp and wires hosts, sessions, programs and the scheduler.
func Build(bp *Blueprint, opts Options) (*World, error) {
	if err := Validate(bp); err != nil {
		return nil, err
	}
	settings := opts.Settings
	if settings == (scheduler.Settings{}) {
		settings = scheduler.DefaultSettings()
	}

	hosts, err := BuildHosts(bp, settings.SystemDir)
	if err != nil {
		return nil, err
	}
	mgr := session.NewManager(session.Config{
		Hosts:  hosts,
		Audit:  opts.Audit,
		Logger: opts.Logger,
		Now:    opts.Now,
	})
	sched, err := scheduler.New(scheduler.Config{
		Sessions: mgr,
		Programs: programs.Register(nil),
		Settings: settings,
		Logger:   opts.Logger,
		Now:      opts.Now,
	})
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug().Str("world", bp.Name).Int("hosts", hosts.Len()).Msg("world built")
	return &World{
		Name:      bp.Name,
		Start:     bp.Start,
		Hosts:     hosts,
		Sessions:  mgr,
		Scheduler: sched,
	}, nil
}

// BuildHosts materializes the blueprint's hosts into a registry.
func BuildHosts(bp *Blueprint, systemDir string) (*host.Registry, error) {
	if systemDir == "" {
		systemDir = "/bin"
	}
	reg := host.NewRegistry()
	for _, spec := range bp.Hosts {
		h, err := buildHost(spec, systemDir)
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", spec.ID, err)
		}
		if err := reg.Add(h); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildHost(spec HostSpec, systemDir string) (*host.Host, error) {
	h := host.New(spec.ID, spec.Name)
	for _, i := range spec.Interfaces {
		h.AddInterface(i.Net, i.Address)
	}
	for _, p := range spec.Ports {
		h.AddPort(host.Port{
			Number:   p.Port,
			Protocol: host.Protocol(p.Protocol),
			Exposure: host.Exposure(p.Exposure),
			Banner:   p.Banner,
		})
	}

	for _, d := range spec.Dirs {
		if err := h.FS.MkdirAll(d); err != nil {
			return nil, err
		}
	}
	for _, u := range spec.Users {
		user, err := buildUser(u)
		if err != nil {
			return nil, err
		}
		if user.Home != "" {
			if err := h.FS.MkdirAll(user.Home); err != nil {
				return nil, err
			}
		}
		h.AddUser(user)
	}
	for _, f := range spec.Files {
		if err := h.FS.MkdirAll(path.Dir(f.Path)); err != nil {
			return nil, err
		}
		if f.Program != "" {
			err := h.FS.WriteProgram(f.Path, f.Program, []byte(f.Content))
			if err != nil {
				return nil, err
			}
			continue
		}
		if err := h.FS.WriteFile(f.Path, []byte(f.Content)); err != nil {
			return nil, err
		}
	}
	if len(spec.Tools) > 0 {
		if err := h.FS.MkdirAll(systemDir); err != nil {
			return nil, err
		}
	}
	for _, tool := range spec.Tools {
		if err := h.FS.WriteProgram(path.Join(systemDir, tool), toolTags[tool], nil); err != nil {
			return nil, err
		}
	}

	if spec.Limiter != nil {
		cfg := *spec.Limiter
		if cfg == (ratelimit.ConnConfig{}) {
			cfg = ratelimit.DefaultConnConfig()
		}
		h.Limiter = ratelimit.NewConnLimiter(cfg)
	}
	return h, nil
}

func buildUser(u UserSpec) (*host.User, error) {
	privs, err := host.ParsePrivileges(u.Privileges)
	if err != nil {
		return nil, err
	}
	user := &host.User{
		Key:        u.Key,
		Login:      u.Login,
		Privileges: privs,
		Auth:       host.AuthMode(u.Auth),
		Home:       u.Home,
	}
	if user.Auth == "" {
		user.Auth = host.AuthStatic
	}
	switch {
	case u.PasswordHash != "":
		user.PasswordHash = []byte(u.PasswordHash)
	case user.Auth == host.AuthHashed:
		hash, err := host.HashPassword(u.Password)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", u.Login, err)
		}
		user.PasswordHash = hash
	default:
		user.Password = u.Password
	}
	return user, nil
}
