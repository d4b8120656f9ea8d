package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/netshell/internal/model"
	"github.com/ppiankov/netshell/internal/scheduler"
)

var (
	execFlags    worldFlags
	execFile     string
	execContinue bool
)

func init() {
	rootCmd.AddCommand(execCmd)
	execFlags.register(execCmd)
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "Read command lines from a file ('-' for stdin)")
	execCmd.Flags().BoolVarP(&execContinue, "keep-going", "k", false, "Keep running after a failed line")
}

var execCmd = &cobra.Command{
	Use:   "exec [line...]",
	Short: "Run command lines on a fresh terminal and exit",
	Long:  "Runs each argument (or each line of --file) on a terminal at the world's start host.\nBackground programs are waited for before the next line. Exits 1 on the first failure.",
	RunE: func(cmd *cobra.Command, args []string) error {
		lines := args
		if execFile != "" {
			read, err := readLines(execFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			lines = append(lines, read...)
		}
		if len(lines) == 0 {
			return fmt.Errorf("nothing to run: pass command lines or --file")
		}

		w, cleanup, err := execFlags.build()
		if err != nil {
			return err
		}
		defer cleanup()

		return runWorld(cmd.Context(), w, func(ctx context.Context) error {
			id, err := startTerminal(ctx, w)
			if err != nil {
				return err
			}
			return runLines(ctx, w.Scheduler, id, lines, execContinue, cmd.OutOrStdout())
		})
	},
}

// runLines runs each line in order, echoing it with the prompt the way an
// interactive session would show it.
func runLines(ctx context.Context, sched *scheduler.Scheduler, terminalID string, lines []string, keepGoing bool, out io.Writer) error {
	failures := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		st, err := sched.Status(terminalID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", st.Prompt, line)

		res, err := sched.Command(ctx, terminalID, line)
		if err != nil {
			return err
		}
		printLines(out, res.Lines)
		code := res.Code
		if res.RunID != "" {
			werr := sched.Wait(ctx, terminalID)
			if err := flush(sched, terminalID, out); err != nil {
				return err
			}
			if werr != nil {
				code = model.CodeOf(werr)
			}
		}
		if code != model.CodeOK {
			failures++
			if !keepGoing {
				return fmt.Errorf("%q failed: %s", line, code)
			}
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d line(s) failed", failures)
	}
	return nil
}

func readLines(path string, stdin io.Reader) ([]string, error) {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}
	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
