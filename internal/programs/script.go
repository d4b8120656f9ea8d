package programs

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
	"github.com/ppiankov/netshell/internal/model"
)

// Script runs a text file as a sequence of command lines. Blank lines and
// lines starting with '#' are skipped. The first failing line stops the run.
type Script struct{}

func (Script) Run(ctx context.Context, rt dispatch.Runtime, inv dispatch.Invocation) error {
	if len(inv.Args) != 1 {
		return model.Fail(model.CodeInvalidArgs, "usage: %s <file>", inv.Name)
	}
	res, err := rt.Call(ctx, intrinsic.NameFSRead, map[string]any{"path": inv.Args[0]})
	if err != nil {
		return err
	}
	content, _ := res["content"].(string)

	for n, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := rt.Call(ctx, intrinsic.NameExec, map[string]any{"command": line})
		printLines(rt, out["output"])
		if err != nil {
			return model.Wrap(model.CodeOf(err), err, "%s:%d: %s", inv.Args[0], n+1, model.MessageOf(err))
		}
	}
	return nil
}

func printLines(rt dispatch.Runtime, v any) {
	lines, _ := v.([]any)
	for _, l := range lines {
		rt.Print(fmt.Sprint(l))
	}
}
