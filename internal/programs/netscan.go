package programs

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/netshell/internal/dispatch"
	"github.com/ppiankov/netshell/internal/intrinsic"
)

// Netscan lists the hosts on the segments the acting host is attached to, or
// on the one named by its argument, and scans each for open ports.
type Netscan struct{}

func (Netscan) Run(ctx context.Context, rt dispatch.Runtime, inv dispatch.Invocation) error {
	args := map[string]any{}
	if len(inv.Args) > 0 {
		args["target"] = inv.Args[0]
	}
	res, err := rt.Call(ctx, intrinsic.NameNetScan, args)
	if err != nil {
		return err
	}

	// A host target answers with its port table directly.
	if ports, ok := res["ports"].([]any); ok {
		rt.Print(formatHost(res["address"], res["host"], ports))
		return nil
	}

	hosts, _ := res["hosts"].([]any)
	found := 0
	for _, h := range hosts {
		entry, _ := h.(map[string]any)
		if self, _ := entry["self"].(bool); self {
			continue
		}
		scan, err := rt.Call(ctx, intrinsic.NameNetScan, map[string]any{"target": entry["address"]})
		if err != nil {
			return err
		}
		ports, _ := scan["ports"].([]any)
		rt.Print(formatHost(entry["address"], entry["host"], ports))
		found++
	}
	rt.Print(fmt.Sprintf("%d host(s) up", found))
	return nil
}

func formatHost(addr, id any, ports []any) string {
	var open []string
	for _, p := range ports {
		entry, _ := p.(map[string]any)
		if entry["state"] == "open" {
			open = append(open, fmt.Sprintf("%v/%v", entry["port"], entry["protocol"]))
		}
	}
	if len(open) == 0 {
		open = []string{"no open ports"}
	}
	return fmt.Sprintf("%-15v %-12v %s", addr, id, strings.Join(open, " "))
}
