package intrinsic

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/netshell/internal/model"
)

// Recovery converts a handler panic into an internal_error failure.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env, call *Call) (res map[string]any, err error) {
			defer func() {
				if r := recover(); r != nil {
					res = nil
					err = model.Wrap(model.CodeInternalError, fmt.Errorf("panic: %v", r), "%s: engine fault", call.Name)
				}
			}()
			return next(ctx, env, call)
		}
	}
}

// Cancellation refuses calls whose context is already done, so nothing runs
// for an interrupted or expired caller.
func Cancellation() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env, call *Call) (map[string]any, error) {
			if err := ctx.Err(); err != nil {
				return nil, model.Wrap(model.CodeInternalError, err, "%s: caller gone", call.Name)
			}
			return next(ctx, env, call)
		}
	}
}

// Logging records every call on the env logger at debug level.
func Logging() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, env *Env, call *Call) (map[string]any, error) {
			start := time.Now()
			res, err := next(ctx, env, call)
			ev := env.Logger.Debug()
			if err != nil && model.ClassOf(model.CodeOf(err)) == model.ClassInfrastructure {
				ev = env.Logger.Warn().Err(err)
			}
			ev.Str("intrinsic", call.Name).
				Str("host", call.Caller.HostID).
				Str("terminal", call.Caller.TerminalID).
				Bool("apply", call.Apply).
				Str("code", string(model.CodeOf(err))).
				Dur("took", time.Since(start)).
				Msg("intrinsic")
			return res, err
		}
	}
}
