package netshell

import "github.com/rs/zerolog"

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	world        string
	settingsPath string
	auditPath    string
	logger       zerolog.Logger
}

// WithWorld selects a built-in world by name or a blueprint YAML path.
func WithWorld(name string) Option {
	return func(c *clientConfig) { c.world = name }
}

// WithSettings sets the path to a scheduler settings YAML file.
func WithSettings(path string) Option {
	return func(c *clientConfig) { c.settingsPath = path }
}

// WithAuditLog records session events to a hash-chained JSONL file.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) { c.auditPath = path }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l zerolog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
