//go:build integration || e2e

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thruflo/gamecheck/internal/devserver"
)

// startBackend runs a dev backend on a free local port until the test ends.
func startBackend(t *testing.T, mutate func(*devserver.Config)) *devserver.Server {
	t.Helper()

	cfg := devserver.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.StepInterval = 5 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := devserver.NewServer(&cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.ListenAddr() != "" }, 5*time.Second, time.Millisecond,
		"dev backend did not start")

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("dev backend did not stop")
		}
	})
	return srv
}
