package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/netshell/internal/server"
)

var (
	serveFlags worldFlags
	serveAddr  string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "gRPC listen address")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a world's terminals over gRPC",
	Long:  "Runs the world as a gRPC service (netshell.v1.Terminal).\nClients open terminals and send command lines; the settings file is hot-reloaded.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	w, cleanup, err := serveFlags.build()
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(w.Scheduler, server.Config{
		Addr:         serveAddr,
		SettingsPath: serveFlags.settings,
		Logger:       logger,
	})

	reloader, err := server.NewReloader(srv, []string{serveFlags.settings})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: hot-reload disabled: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Scheduler.Run(gctx)
	})
	if reloader != nil {
		g.Go(func() error {
			return reloader.Run(gctx)
		})
	}
	g.Go(func() error {
		return srv.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "\nShutting down netshell server...")
		srv.GracefulStop()
		return nil
	})
	g.Go(func() error {
		if err := srv.ReloadSettings(gctx); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "netshell serving world %s on %s\n", w.Name, serveAddr)
		if serveFlags.settings != "" {
			fmt.Fprintf(os.Stderr, "Settings: %s (%s)\n", serveFlags.settings, srv.SettingsHash())
		}
		return nil
	})

	return g.Wait()
}
