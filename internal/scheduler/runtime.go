package scheduler

import (
	"context"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
	"github.com/ppiankov/netshell/internal/model"
)

// queueRuntime is what a background program sees: every intrinsic call
// becomes a queue request with a deadline, served by the owner loop.
type queueRuntime struct {
	s      *Scheduler
	exec   *Execution
	caller intrinsic.Caller
	apply  bool
	print  func(string)
}

func (rt *queueRuntime) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	settings := rt.s.Settings()
	rctx, cancel := context.WithTimeout(ctx, settings.QueueTimeout)
	defer cancel()

	call := &intrinsic.Call{Name: name, Caller: rt.caller, Args: args, Apply: rt.apply, Output: rt.print}
	var res map[string]any
	var err error
	req := newRequest(rctx, rt.exec, name, func(ctx context.Context) {
		res, err = rt.s.intrinsics.Invoke(ctx, rt.s.env, call)
	})
	req.queue = true
	if serr := submit(rt.s.queue, req); serr != nil {
		return model.ResultMap(serr), serr
	}
	return rt.s.afterCall(ctx, rt, res, err)
}

func (rt *queueRuntime) Print(line string) {
	if rt.print != nil {
		rt.print(line)
	}
}

// directRuntime runs intrinsics in place. It is only used on the owner loop,
// for inline programs started by a synchronous command.
type directRuntime struct {
	s      *Scheduler
	caller intrinsic.Caller
	print  func(string)
}

func (rt *directRuntime) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	call := &intrinsic.Call{Name: name, Caller: rt.caller, Args: args, Apply: true, Output: rt.print}
	res, err := rt.s.intrinsics.Invoke(ctx, rt.s.env, call)
	return rt.s.afterCall(ctx, rt, res, err)
}

func (rt *directRuntime) Print(line string) {
	if rt.print != nil {
		rt.print(line)
	}
}

// captureRuntime forwards calls and collects printed lines.
type captureRuntime struct {
	dispatch.Runtime
	lines []string
}

func (c *captureRuntime) Print(line string) {
	c.lines = append(c.lines, line)
}

// afterCall runs a program an exec call resolved. It runs on the caller's
// goroutine through rt, and its printed lines are appended to the exec
// result's output.
func (s *Scheduler) afterCall(ctx context.Context, rt dispatch.Runtime, res map[string]any, err error) (map[string]any, error) {
	if err != nil {
		return res, err
	}
	launch := intrinsic.TakeLaunch(res)
	if launch == nil {
		return res, nil
	}
	capture := &captureRuntime{Runtime: rt}
	perr := launch.Spec.Program.Run(ctx, capture, launch.Invocation)

	output, _ := res["output"].([]any)
	for _, l := range capture.lines {
		output = append(output, l)
	}
	if perr != nil {
		out := model.ResultMap(perr)
		out["output"] = output
		return out, perr
	}
	res["output"] = output
	return res, nil
}
