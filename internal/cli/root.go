package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/netshell/internal/logging"
)

var (
	logLevel string
	logJSON  bool

	logger = zerolog.Nop()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON instead of console text")
}

var rootCmd = &cobra.Command{
	Use:   "netshell",
	Short: "Simulated network shell",
	Long:  "Drives terminals on a simulated network of hosts: hop between machines over\nssh-like sessions, move files over ftp, and run background programs.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.Init("netshell", logging.Options{Level: logLevel, JSON: logJSON})
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
