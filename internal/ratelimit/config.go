package ratelimit

import "time"

// ConnConfig configures a host's connection limiter daemon.
// Zero Threshold or zero RateLimit disables that sub-state.
type ConnConfig struct {
	Threshold       int           `yaml:"threshold"`
	RateLimit       int           `yaml:"rate_limit"`
	MonitorDuration time.Duration `yaml:"monitor"`
	BlockDuration   time.Duration `yaml:"block"`
}

// DefaultConnConfig returns the daemon settings used when a blueprint enables the
// limiter without tuning it.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		Threshold:       5,
		RateLimit:       3,
		MonitorDuration: 30 * time.Second,
		BlockDuration:   60 * time.Second,
	}
}

// ProbeConfig configures the global probe limiter.
type ProbeConfig struct {
	Window   time.Duration `yaml:"window"`
	MaxCalls int           `yaml:"max_calls"`
}

// DefaultProbeConfig returns the built-in probe budget.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Window:   10 * time.Second,
		MaxCalls: 20,
	}
}

// HasLimit returns true if the probe budget is enforced.
func (c ProbeConfig) HasLimit() bool {
	return c.MaxCalls > 0 && c.Window > 0
}
