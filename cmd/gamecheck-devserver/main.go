// gamecheck-devserver runs an in-memory game test backend for trying
// gamecheck locally.
//
//	go run ./cmd/gamecheck-devserver --fail-every 3
//	gamecheck --server http://localhost:3000/api watch
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thruflo/gamecheck/internal/devserver"
	"github.com/thruflo/gamecheck/internal/logging"
)

func main() {
	cfg := devserver.DefaultConfig()
	var logLevel string

	cmd := &cobra.Command{
		Use:          "gamecheck-devserver",
		Short:        "Run an in-memory game test backend",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logging.SetLevel(level)

			srv, err := devserver.NewServer(&cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(ctx) }()

			fmt.Fprintf(cmd.OutOrStdout(), "Backend running on %s\n", cfg.Addr)
			fmt.Fprintln(cmd.OutOrStdout(), "Point gamecheck at it with --server http://localhost"+cfg.Addr+"/api")

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
			if err := srv.Stop(); err != nil {
				return err
			}
			return <-errCh
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.DurationVar(&cfg.StepInterval, "step", cfg.StepInterval, "time between launch progress steps")
	f.IntVar(&cfg.FailEvery, "fail-every", 0, "fail every nth test (0 = never)")
	f.DurationVar(&cfg.StreamLifetime, "stream-lifetime", 0, "close event streams after this long to exercise reconnects (0 = never)")
	f.IntVar(&cfg.RateLimit.MaxRequests, "rate-limit", cfg.RateLimit.MaxRequests, "submissions allowed per client per window")
	f.DurationVar(&cfg.RateLimit.Window, "rate-window", cfg.RateLimit.Window, "rate limit window")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
