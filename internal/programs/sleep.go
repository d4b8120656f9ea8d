package programs

import (
	"context"
	"strconv"
	"time"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/model"
)

// runSleep waits for a duration given as seconds or a Go duration string.
func runSleep(ctx context.Context, _ dispatch.Runtime, inv dispatch.Invocation) error {
	if len(inv.Args) != 1 {
		return model.Fail(model.CodeInvalidArgs, "usage: %s <duration>", inv.Name)
	}
	d, err := parseDuration(inv.Args[0])
	if err != nil {
		return model.Wrap(model.CodeInvalidArgs, err, "%s: invalid duration %q", inv.Name, inv.Args[0])
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return 0, strconv.ErrRange
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err == nil && d < 0 {
		return 0, strconv.ErrRange
	}
	return d, err
}
