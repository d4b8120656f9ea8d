package ratelimit

import (
	"fmt"
	"time"
)

// ConnState is the sliding-window state of one host's connection limiter.
type ConnState struct {
	WindowStart     time.Time
	Count           int
	BlockedUntil    time.Time
	OverloadedUntil time.Time
}

// Verdict is the outcome of one observed connection attempt.
type Verdict struct {
	Allowed    bool
	Blocked    bool
	Overloaded bool
	Count      int
	Reason     string
}

// ConnLimiter throttles connection attempts against one host.
// Blocking and overload are tracked independently.
type ConnLimiter struct {
	cfg   ConnConfig
	state ConnState
}

// NewConnLimiter creates a limiter with empty state.
func NewConnLimiter(cfg ConnConfig) *ConnLimiter {
	return &ConnLimiter{cfg: cfg}
}

// Config returns the limiter configuration.
func (l *ConnLimiter) Config() ConnConfig {
	return l.cfg
}

// State returns a copy of the current state.
func (l *ConnLimiter) State() ConnState {
	return l.state
}

// Observe records one connection attempt at now and decides whether it may
// proceed to authentication.
//
// Order (must not be changed):
//  1. Active block rejects without advancing counters.
//  2. The observation is counted, resetting an expired window.
//  3. Exceeding RateLimit enters overload; the triggering attempt still passes,
//     attempts arriving while already overloaded do not.
//  4. Exceeding Threshold blocks this and every attempt until BlockedUntil.
func (l *ConnLimiter) Observe(now time.Time) Verdict {
	if now.Before(l.state.BlockedUntil) {
		return Verdict{
			Blocked: true,
			Count:   l.state.Count,
			Reason:  fmt.Sprintf("connection blocked for %s", l.state.BlockedUntil.Sub(now).Round(time.Second)),
		}
	}

	if l.state.WindowStart.IsZero() || now.Sub(l.state.WindowStart) > l.cfg.MonitorDuration {
		l.state.WindowStart = now
		l.state.Count = 1
	} else {
		l.state.Count++
	}

	wasOverloaded := now.Before(l.state.OverloadedUntil)

	v := Verdict{Allowed: true, Count: l.state.Count}
	if l.cfg.RateLimit > 0 && l.state.Count > l.cfg.RateLimit {
		l.state.OverloadedUntil = now.Add(l.cfg.BlockDuration)
		v.Overloaded = true
	}

	if l.cfg.Threshold > 0 && l.state.Count > l.cfg.Threshold {
		l.state.BlockedUntil = now.Add(l.cfg.BlockDuration)
		v.Allowed = false
		v.Blocked = true
		v.Reason = fmt.Sprintf("too many connection attempts: %d in %s window", l.state.Count, l.cfg.MonitorDuration)
		return v
	}

	if wasOverloaded {
		v.Allowed = false
		v.Overloaded = true
		v.Reason = "host overloaded, try again later"
	}
	return v
}

// Blocked reports whether the host currently rejects every attempt.
func (l *ConnLimiter) Blocked(now time.Time) bool {
	return now.Before(l.state.BlockedUntil)
}

// Overloaded reports whether the host is in overload mode.
func (l *ConnLimiter) Overloaded(now time.Time) bool {
	return now.Before(l.state.OverloadedUntil)
}
