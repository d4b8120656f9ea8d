// Package world loads network blueprints and composes them into a running
// scheduler.
package world

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/netshell/internal/ratelimit"
)

// DefaultName is the built-in world used when none is given.
const DefaultName = "corp"

// Blueprint describes a whole network.
type Blueprint struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Start       Start      `yaml:"start"`
	Hosts       []HostSpec `yaml:"hosts"`
}

// Start is where the operator's first terminal opens.
type Start struct {
	Host  string `yaml:"host"`
	Login string `yaml:"login"`
}

// HostSpec describes one host.
type HostSpec struct {
	ID         string          `yaml:"id"`
	Name       string          `yaml:"name"`
	Interfaces []InterfaceSpec `yaml:"interfaces"`
	Ports      []PortSpec      `yaml:"ports"`
	Users      []UserSpec      `yaml:"users"`
	Dirs       []string        `yaml:"dirs"`
	Files      []FileSpec      `yaml:"files"`
	// Tools are installed under the system directory by name.
	Tools []string `yaml:"tools"`
	// Limiter enables the connection limiter daemon. An empty mapping selects
	// the default tuning.
	Limiter *ratelimit.ConnConfig `yaml:"limiter,omitempty"`
}

// InterfaceSpec attaches a host to a segment.
type InterfaceSpec struct {
	Net     string `yaml:"net"`
	Address string `yaml:"address"`
}

// PortSpec is one port table entry.
type PortSpec struct {
	Port     int    `yaml:"port"`
	Protocol string `yaml:"protocol"`
	Exposure string `yaml:"exposure"`
	Banner   string `yaml:"banner"`
}

// UserSpec is one account. Auth "hashed" with a plain password hashes it at
// build time; PasswordHash takes a bcrypt hash as-is.
type UserSpec struct {
	Key          string `yaml:"key"`
	Login        string `yaml:"login"`
	Privileges   string `yaml:"privileges"`
	Auth         string `yaml:"auth"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
	Home         string `yaml:"home"`
}

// FileSpec is a file placed in a host's filesystem. Program marks an
// executable payload by tag.
type FileSpec struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content"`
	Program string `yaml:"program"`
}

// Parse decodes a blueprint. Unknown keys are rejected.
func Parse(data []byte) (*Blueprint, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var bp Blueprint
	if err := dec.Decode(&bp); err != nil {
		return nil, fmt.Errorf("failed to parse blueprint: %w", err)
	}
	return &bp, nil
}

// Load returns a blueprint by built-in name, file path, or user world name
// under ~/.netshell/worlds. An empty name selects DefaultName.
func Load(name string) (*Blueprint, error) {
	if name == "" {
		name = DefaultName
	}
	if data, ok := builtinWorlds[name]; ok {
		bp, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("built-in world %q: %w", name, err)
		}
		return bp, nil
	}

	path := name
	if !strings.ContainsRune(name, os.PathSeparator) && filepath.Ext(name) == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("world %q not found (no built-in, cannot determine home dir)", name)
		}
		path = filepath.Join(home, ".netshell", "worlds", name+".yaml")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("world %q not found", name)
		}
		return nil, fmt.Errorf("read world %s: %w", path, err)
	}
	bp, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", path, err)
	}
	return bp, nil
}

// List returns the sorted names of built-in and user worlds.
func List() []string {
	seen := make(map[string]bool)
	for name := range builtinWorlds {
		seen[name] = true
	}
	if home, err := os.UserHomeDir(); err == nil {
		entries, err := os.ReadDir(filepath.Join(home, ".netshell", "worlds"))
		if err == nil {
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				n := e.Name()
				if ext := filepath.Ext(n); ext == ".yaml" || ext == ".yml" {
					seen[n[:len(n)-len(ext)]] = true
				}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
