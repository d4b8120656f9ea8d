package programs

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/session"
)

// runFTP is the ftp client run by path or from scripts. It transfers over the
// terminal's route; the local side is the route's origin.
func runFTP(ctx context.Context, rt dispatch.Runtime, inv dispatch.Invocation) error {
	args := inv.Args
	if len(args) < 2 || len(args) > 3 || (args[0] != "get" && args[0] != "put") {
		return model.Fail(model.CodeInvalidArgs, "usage: %s get|put <path> [dest]", inv.Name)
	}
	if inv.Route == nil {
		return model.Fail(model.CodeInvalidArgs, "%s: not connected", inv.Name)
	}

	call := map[string]any{"via": session.ToMap(inv.Route)}
	name := intrinsic.NameFTPGet
	if args[0] == "get" {
		call["remote"] = args[1]
		if len(args) == 3 {
			call["local"] = args[2]
		}
	} else {
		name = intrinsic.NameFTPPut
		call["local"] = args[1]
		if len(args) == 3 {
			call["remote"] = args[2]
		}
	}

	res, err := rt.Call(ctx, name, call)
	if err != nil {
		return err
	}
	size, _ := res["bytes"].(int)
	rt.Print(fmt.Sprintf("%v:%v -> %v:%v", res["remote_host"], res["remote_path"], res["local_host"], res["local_path"]))
	rt.Print(fmt.Sprintf("226 transfer complete (%s)", humanize.IBytes(uint64(size))))
	return nil
}
