// Package intrinsic implements the typed operations scripts call into:
// sessions, files, network probes, transfers and terminal output. Handlers run
// on the scheduler's owner loop and receive the caller's resolved context.
package intrinsic

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/netshell/internal/model"
)

// Handler executes one intrinsic call.
type Handler func(ctx context.Context, env *Env, call *Call) (map[string]any, error)

// Middleware wraps a Handler. The first registered middleware is outermost.
type Middleware func(next Handler) Handler

// Option configures a Registry under construction.
type Option func(*builder)

type builder struct {
	handlers   map[string]Handler
	middleware []Middleware
	errors     []error
}

// Registry is an immutable set of named intrinsics.
type Registry struct {
	handlers map[string]Handler
	names    []string
}

// NewRegistry builds a registry. Registering a name twice is an error.
func NewRegistry(opts ...Option) (*Registry, error) {
	b := &builder{handlers: make(map[string]Handler)}
	for _, opt := range opts {
		opt(b)
	}
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.handlers))
	wrapped := make(map[string]Handler, len(b.handlers))
	for name, h := range b.handlers {
		names = append(names, name)
		for i := len(b.middleware) - 1; i >= 0; i-- {
			h = b.middleware[i](h)
		}
		wrapped[name] = h
	}
	sort.Strings(names)
	return &Registry{handlers: wrapped, names: names}, nil
}

// WithHandler registers a handler under name.
func WithHandler(name string, h Handler) Option {
	return func(b *builder) {
		if name == "" {
			b.errors = append(b.errors, fmt.Errorf("intrinsic name cannot be empty"))
			return
		}
		if _, exists := b.handlers[name]; exists {
			b.errors = append(b.errors, fmt.Errorf("duplicate intrinsic: %q", name))
			return
		}
		b.handlers[name] = h
	}
}

// WithMiddleware appends middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *builder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// Invoke runs name. Failures come back both as the error and as the
// script-visible result map.
func (r *Registry) Invoke(ctx context.Context, env *Env, call *Call) (map[string]any, error) {
	h, ok := r.handlers[call.Name]
	if !ok {
		err := model.Fail(model.CodeUnknownCommand, "%s: no such intrinsic", call.Name)
		return model.ResultMap(err), err
	}
	res, err := h(ctx, env, call)
	if err != nil {
		return model.ResultMap(err), err
	}
	if res == nil {
		res = make(map[string]any)
	}
	res["ok"] = true
	return res, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns registered names in order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
