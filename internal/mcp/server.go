// Package mcp exposes a world's operator terminal as MCP tools over stdio.
package mcp

import (
	"context"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/ppiankov/netshell/internal/scheduler"
)

// Config holds MCP server configuration.
type Config struct {
	// Host and Login are where the server's terminal opens.
	Host    string
	Login   string
	Version string
	Logger  zerolog.Logger
}

// Server wraps the MCP SDK server around one terminal of a scheduler. The
// scheduler's owner loop must be run separately.
type Server struct {
	mcpServer *mcpsdk.Server
	sched     *scheduler.Scheduler
	cfg       Config
	log       zerolog.Logger

	mu       sync.Mutex
	terminal string
}

// New creates an MCP server with the netshell tools registered.
func New(sched *scheduler.Scheduler, cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{
		sched: sched,
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "mcp").Logger(),
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "netshell",
			Version: cfg.Version,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// terminalID opens the server's terminal on first use.
func (s *Server) terminalID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal != "" {
		return s.terminal, nil
	}
	st, err := s.sched.OpenTerminal(ctx, s.cfg.Host, s.cfg.Login)
	if err != nil {
		return "", err
	}
	s.terminal = st.TerminalID
	s.log.Debug().Str("terminal", st.TerminalID).Msg("terminal opened")
	return s.terminal, nil
}

// registerTools adds all netshell tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "netshell_command",
		Description: "Run one command line on the operator terminal (connect, disconnect, ls, cat, ftp, programs). Failures are reported in code and lines.",
	}, s.handleCommand)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "netshell_call",
		Description: "Call one intrinsic (connect, exec, fs.read, net.scan, ftp.get, ...) as the terminal's acting identity. Returns the script-visible result map.",
	}, s.handleCall)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "netshell_status",
		Description: "Show the terminal's host, login, route depth and running program.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "netshell_output",
		Description: "Collect output written by the terminal's background program since the last call.",
	}, s.handleOutput)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "netshell_interrupt",
		Description: "Kill the terminal's background program.",
	}, s.handleInterrupt)
}
