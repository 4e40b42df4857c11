package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the backend is reachable",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	e, err := setup(ctx)
	if err != nil {
		return err
	}

	status, err := e.client.ServerStatus(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", e.client.BaseURL(), status)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	return nil
}
