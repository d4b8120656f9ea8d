package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/netshell/internal/scheduler"
	"github.com/ppiankov/netshell/internal/world"
)

var runFlags worldFlags

func init() {
	rootCmd.AddCommand(runCmd)
	runFlags.register(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open an interactive terminal on a world",
	Long:  "Opens a terminal at the world's start host and reads command lines from stdin.\nCtrl-C kills the running background program; 'exit' or EOF quits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, cleanup, err := runFlags.build()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()

		return runWorld(ctx, w, func(ctx context.Context) error {
			id, err := startTerminal(ctx, w)
			if err != nil {
				return err
			}
			go interruptOnSignal(ctx, w.Scheduler, id)
			fmt.Fprintf(os.Stderr, "netshell: world %s, terminal %s\n", w.Name, id)
			return repl(ctx, w.Scheduler, id, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

// interruptOnSignal turns SIGINT into a program interrupt instead of exiting.
func interruptOnSignal(ctx context.Context, sched *scheduler.Scheduler, terminalID string) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			_, _ = sched.Interrupt(terminalID)
		}
	}
}

// repl reads lines from in until EOF or "exit", printing background output
// that arrived since the previous prompt before each new one.
func repl(ctx context.Context, sched *scheduler.Scheduler, terminalID string, in io.Reader, out io.Writer) error {
	st, err := sched.Status(terminalID)
	if err != nil {
		return err
	}
	prompt := st.Prompt

	scanner := bufio.NewScanner(in)
	for {
		if err := flush(sched, terminalID, out); err != nil {
			return err
		}
		fmt.Fprint(out, prompt+" ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		res, err := sched.Command(ctx, terminalID, line)
		if err != nil {
			return err
		}
		printLines(out, res.Lines)
		if res.RunID != "" {
			fmt.Fprintf(out, "[%s] started\n", res.RunID)
		}
		prompt = res.Prompt
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func flush(sched *scheduler.Scheduler, terminalID string, out io.Writer) error {
	lines, err := sched.Drain(terminalID)
	if err != nil {
		return err
	}
	printLines(out, lines)
	return nil
}

func printLines(out io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}

// startTerminal opens a terminal at the world's start host.
func startTerminal(ctx context.Context, w *world.World) (string, error) {
	st, err := w.Scheduler.OpenTerminal(ctx, w.Start.Host, w.Start.Login)
	if err != nil {
		return "", err
	}
	return st.TerminalID, nil
}
