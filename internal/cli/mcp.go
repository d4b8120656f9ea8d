package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	netmcp "github.com/ppiankov/netshell/internal/mcp"
)

var mcpFlags worldFlags

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpFlags.register(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs netshell as an MCP (Model Context Protocol) server over stdio.\nExposes one terminal at the world's start host through the netshell_* tools.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	w, cleanup, err := mcpFlags.build()
	if err != nil {
		return err
	}
	defer cleanup()

	srv := netmcp.New(w.Scheduler, netmcp.Config{
		Host:    w.Start.Host,
		Login:   w.Start.Login,
		Version: version,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "netshell MCP server running on stdio (world %s)\n", w.Name)
	return runWorld(ctx, w, srv.Run)
}
