package intrinsic

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/netshell/internal/model"
)

var validate = validator.New()

// Typed adapts a handler taking a decoded argument struct. Arguments pass
// through a JSON round trip into Req and are then checked against its
// validate tags; any failure is invalid_args.
func Typed[Req any](fn func(ctx context.Context, env *Env, call *Call, req Req) (map[string]any, error)) Handler {
	return func(ctx context.Context, env *Env, call *Call) (map[string]any, error) {
		var req Req
		if err := decodeArgs(call.Name, call.Args, &req); err != nil {
			return nil, err
		}
		return fn(ctx, env, call, req)
	}
}

func decodeArgs(name string, args map[string]any, target any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return model.Wrap(model.CodeInvalidArgs, err, "%s: arguments are not serializable", name)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return model.Wrap(model.CodeInvalidArgs, err, "%s: bad arguments", name)
	}
	if err := validate.Struct(target); err != nil {
		return model.Wrap(model.CodeInvalidArgs, err, "%s: invalid arguments", name)
	}
	return nil
}
