//go:build integration || e2e

// Package integration runs gamecheck against a live dev backend.
//
// Tests tagged "integration" wire the packages together in process. Tests
// tagged "e2e" build the gamecheck binary and drive it as a user would.
// Set GAMECHECK_LOG_LEVEL to see component logs.
package integration

import (
	"fmt"
	"os"
	"testing"

	"github.com/thruflo/gamecheck/internal/config"
	"github.com/thruflo/gamecheck/internal/logging"
)

func TestMain(m *testing.M) {
	if v := os.Getenv(config.EnvLogLevel); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else {
			logging.SetLevel(level)
		}
	}
	os.Exit(m.Run())
}
