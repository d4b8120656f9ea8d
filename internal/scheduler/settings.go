package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/netshell/internal/ratelimit"
)

// Settings are the scheduler's tunables. They can be replaced at runtime.
type Settings struct {
	// QueueTimeout bounds how long a background intrinsic call waits for the
	// owner loop before it is cancelled.
	QueueTimeout time.Duration `yaml:"queue_timeout"`
	QueueSize    int           `yaml:"queue_size"`
	// ApplyBackground false runs background intrinsics in sandbox mode: full
	// validation, no effects.
	ApplyBackground bool                  `yaml:"apply_background"`
	Probe           ratelimit.ProbeConfig `yaml:"probe"`
	MaxTransfer     int64                 `yaml:"max_transfer"`
	SystemDir       string                `yaml:"system_dir"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		QueueTimeout:    2 * time.Second,
		QueueSize:       256,
		ApplyBackground: true,
		Probe:           ratelimit.DefaultProbeConfig(),
		MaxTransfer:     1 << 20,
		SystemDir:       "/bin",
	}
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.QueueTimeout <= 0 {
		s.QueueTimeout = d.QueueTimeout
	}
	if s.QueueSize <= 0 {
		s.QueueSize = d.QueueSize
	}
	if s.MaxTransfer <= 0 {
		s.MaxTransfer = d.MaxTransfer
	}
	if s.SystemDir == "" {
		s.SystemDir = d.SystemDir
	}
	return s
}

// LoadSettings reads settings from a YAML file and returns them with the
// SHA-256 of the raw bytes. Missing file returns defaults. Invalid YAML is an
// error.
func LoadSettings(path string) (Settings, string, error) {
	empty := sha256.Sum256(nil)
	if path == "" {
		return DefaultSettings(), "sha256:" + hex.EncodeToString(empty[:]), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), "sha256:" + hex.EncodeToString(empty[:]), nil
		}
		return Settings{}, "", fmt.Errorf("failed to read settings: %w", err)
	}

	h := sha256.Sum256(data)
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, "", fmt.Errorf("failed to parse settings: %w", err)
	}
	return s.normalized(), "sha256:" + hex.EncodeToString(h[:]), nil
}
