package ratelimit

import (
	"fmt"
	"time"

	"github.com/ppiankov/netshell/internal/model"
)

// ProbeLimiter is the single global fixed-window limiter for inspect probes.
// The scheduler owns the only instance and calls it from its owner loop.
type ProbeLimiter struct {
	cfg         ProbeConfig
	windowStart time.Time
	calls       int
}

// NewProbeLimiter creates a limiter with an empty window.
func NewProbeLimiter(cfg ProbeConfig) *ProbeLimiter {
	return &ProbeLimiter{cfg: cfg}
}

// Reconfigure replaces the budget. The current window is kept.
func (p *ProbeLimiter) Reconfigure(cfg ProbeConfig) {
	p.cfg = cfg
}

// Snapshot returns the call count in the current window, rolling the window
// over when it has expired.
func (p *ProbeLimiter) Snapshot(now time.Time) int {
	if p.windowStart.IsZero() || now.Sub(p.windowStart) >= p.cfg.Window {
		p.windowStart = now
		p.calls = 0
	}
	return p.calls
}

// Allow counts one probe at now. Once the window holds more than MaxCalls
// probes, every probe fails until the window rolls over.
func (p *ProbeLimiter) Allow(now time.Time) error {
	if !p.cfg.HasLimit() {
		return nil
	}
	p.Snapshot(now)
	p.calls++
	if p.calls > p.cfg.MaxCalls {
		return model.Fail(model.CodeRateLimited,
			"probe rate limit exceeded: %d/%d probes in %s window", p.calls, p.cfg.MaxCalls, p.cfg.Window)
	}
	return nil
}

// String renders the limiter state for diagnostics.
func (p *ProbeLimiter) String() string {
	return fmt.Sprintf("probe %d/%d since %s", p.calls, p.cfg.MaxCalls, p.windowStart.Format(time.RFC3339))
}
