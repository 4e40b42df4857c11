package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thruflo/gamecheck/internal/model"
	"github.com/thruflo/gamecheck/internal/store"
	"github.com/thruflo/gamecheck/internal/tui"
)

var (
	statusFilter store.FilterOptions
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current test results",
	Long: `Fetches the full collection from the backend and prints it as a table
with success, failed and pending counts.

Example:
  gamecheck status
  gamecheck status --status failed --provider netent
  gamecheck status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	addFilterFlags(statusCmd, &statusFilter)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print items and counts as JSON")
	rootCmd.AddCommand(statusCmd)
}

// addFilterFlags registers the table filter flags on cmd.
func addFilterFlags(cmd *cobra.Command, f *store.FilterOptions) {
	cmd.Flags().StringVar(&f.Name, "name", "", "show games whose title contains this text")
	cmd.Flags().StringVar(&f.Provider, "provider", "", "show games from this provider")
	cmd.Flags().StringVar(&f.Category, "category", "", "show games in this category")
	cmd.Flags().StringVar(&f.Status, "status", "", "show games in this bucket: success, failed or pending")
}

func validateFilter(f store.FilterOptions) error {
	switch f.Status {
	case "", model.BucketSuccess, model.BucketFailed, model.BucketPending:
		return nil
	}
	return fmt.Errorf("invalid --status %q: must be success, failed or pending", f.Status)
}

type statusOutput struct {
	Stats model.Stats  `json:"stats"`
	Items []model.Item `json:"items"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := validateFilter(statusFilter); err != nil {
		return err
	}

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

	view := ctrl.View()
	if statusJSON {
		out := statusOutput{Stats: view.Stats, Items: store.Filter(view.Items, statusFilter)}
		if out.Items == nil {
			out.Items = []model.Item{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return tui.NewDashboard(tui.NewScreen(cmd.OutOrStdout()), statusFilter).Print(view)
}
