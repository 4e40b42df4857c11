package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Re-run the launch test for a game",
	Long: `Resubmits a game at retry priority. The game is looked up in the
backend's current collection; its catalogueGameId is sent when known, the ID
itself otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	e, err := setup(ctx)
	if err != nil {
		return err
	}
	ctrl, err := e.controller(nil)
	if err != nil {
		return err
	}
	if err := ctrl.Refresh(ctx); err != nil {
		return err
	}

	resp, err := ctrl.Retry(ctx, args[0])
	if err != nil {
		return err
	}

	if resp.Acknowledged() {
		fmt.Fprintf(cmd.OutOrStdout(), "Retry queued for %s (test %s)\n", args[0], resp.TestID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Retry sent for %s\n", args[0])
	}
	return nil
}
