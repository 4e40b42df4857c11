package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the backend's queue and test history",
	Long: `Asks the backend to reset: pending tests are dropped and recorded
results are cleared. This cannot be undone, so --yes is required.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("refusing to reset without --yes")
	}

	ctx := commandContext(cmd)
	e, err := setup(ctx)
	if err != nil {
		return err
	}

	msg, err := e.client.ResetServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset server: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}
