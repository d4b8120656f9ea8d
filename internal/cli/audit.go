package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/netshell/internal/audit"
)

var (
	auditHost   string
	auditEvent  string
	auditFrom   string
	auditTo     string
	auditFormat string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditShowCmd)
	auditShowCmd.Flags().StringVar(&auditHost, "host", "", "Only entries with this source or target host")
	auditShowCmd.Flags().StringVar(&auditEvent, "event", "", "Only this event (connect|disconnect|transfer)")
	auditShowCmd.Flags().StringVar(&auditFrom, "from", "", "Start time filter (RFC3339)")
	auditShowCmd.Flags().StringVar(&auditTo, "to", "", "End time filter (RFC3339)")
	auditShowCmd.Flags().StringVarP(&auditFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained session audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Render the session timeline from an audit log",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{Host: auditHost, Event: audit.Event(auditEvent)}
	if auditFrom != "" {
		from, err := time.Parse(time.RFC3339, auditFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", auditFrom, err)
		}
		filter.From = from
	}
	if auditTo != "" {
		to, err := time.Parse(time.RFC3339, auditTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", auditTo, err)
		}
		filter.To = to
	}

	result, err := audit.Replay(args[0], filter)
	if err != nil {
		return err
	}

	switch auditFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	}
	return nil
}
