package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/netshell/internal/audit"
	"github.com/ppiankov/netshell/internal/scheduler"
	"github.com/ppiankov/netshell/internal/world"
)

// worldFlags are shared by every command that builds a world.
type worldFlags struct {
	name     string
	settings string
	auditLog string
}

func (f *worldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "world", "w", world.DefaultName, "Built-in world name or blueprint YAML path")
	cmd.Flags().StringVar(&f.settings, "settings", "", "Path to scheduler settings YAML")
	cmd.Flags().StringVar(&f.auditLog, "audit-log", "", "Path to audit log JSONL file")
}

// build loads the blueprint and settings and composes the world. The
// returned cleanup closes the audit log.
func (f *worldFlags) build() (*world.World, func(), error) {
	bp, err := world.Load(f.name)
	if err != nil {
		return nil, nil, err
	}
	settings, _, err := scheduler.LoadSettings(f.settings)
	if err != nil {
		return nil, nil, err
	}

	opts := world.Options{Settings: settings, Logger: logger}
	cleanup := func() {}
	if f.auditLog != "" {
		lg, err := audit.Open(f.auditLog)
		if err != nil {
			return nil, nil, err
		}
		opts.Audit = lg
		cleanup = func() { _ = lg.Close() }
	}

	w, err := world.Build(bp, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return w, cleanup, nil
}

// runWorld runs the scheduler's owner loop next to fn and stops it once fn
// returns.
func runWorld(ctx context.Context, w *world.World, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(worldCmd)
	worldCmd.AddCommand(worldListCmd)
	worldCmd.AddCommand(worldValidateCmd)
	worldCmd.AddCommand(worldShowCmd)
}

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Inspect world blueprints",
}

var worldListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and user worlds",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range world.List() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var worldValidateCmd = &cobra.Command{
	Use:   "validate <name|path>",
	Short: "Validate a world blueprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bp, err := world.Load(args[0])
		if err != nil {
			return err
		}
		if err := world.Validate(bp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d hosts)\n", bp.Name, len(bp.Hosts))
		return nil
	},
}

var worldShowCmd = &cobra.Command{
	Use:   "show <name|path>",
	Short: "Print the hosts, addresses and ports of a world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bp, err := world.Load(args[0])
		if err != nil {
			return err
		}
		hosts, err := world.BuildHosts(bp, scheduler.DefaultSettings().SystemDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", bp.Name, bp.Description)
		fmt.Fprintf(out, "start: %s@%s\n\n", bp.Start.Login, bp.Start.Host)
		for _, h := range hosts.Hosts() {
			var addrs []string
			for _, i := range h.Interfaces {
				addrs = append(addrs, i.NetID+"/"+i.Address)
			}
			fmt.Fprintf(out, "%-10s %s\n", h.ID, strings.Join(addrs, " "))
			for _, p := range h.SortedPorts() {
				fmt.Fprintf(out, "  %-6d %-5s %s\n", p.Number, p.Protocol, p.Exposure)
			}
			if h.Limiter != nil {
				fmt.Fprintln(out, "  limiter: on")
			}
			if files, size := h.FS.Usage(); files > 0 {
				fmt.Fprintf(out, "  files: %d (%s)\n", files, humanize.IBytes(uint64(size)))
			}
		}
		return nil
	},
}
