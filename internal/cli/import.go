package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/gamecheck/internal/config"
	"github.com/thruflo/gamecheck/internal/dashboard"
	"github.com/thruflo/gamecheck/internal/logging"
	"github.com/thruflo/gamecheck/internal/tui"
)

var (
	importDelay    time.Duration
	importPriority int
	importWatch    bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a catalogue spreadsheet and submit its games",
	Long: `Reads an .xlsx (first sheet) or .csv catalogue and submits every row
with a catalogueGameId to the backend, one at a time and in file order, waiting
--delay between submissions. Rows without a catalogueGameId are listed but not
submitted. Press Ctrl-C to stop; games already submitted stay queued.

Example:
  gamecheck import games.xlsx
  gamecheck import games.csv --delay 10s --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().DurationVar(&importDelay, "delay", 0, "wait between submissions (default from config, 30s)")
	importCmd.Flags().IntVar(&importPriority, "priority", 0, "queue priority sent with each game (default from config, 1)")
	importCmd.Flags().BoolVar(&importWatch, "watch", false, "follow live results while submitting")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	var renderer dashboard.Renderer
	if importWatch {
		renderer = tui.NewDashboard(tui.NewScreen(out), watchFilter)
	}

	ctrl, err := liveController(ctx, renderer, func(cfg *config.Config) error {
		if cmd.Flags().Changed("delay") {
			if importDelay < 0 {
				return errors.New("--delay cannot be negative")
			}
			cfg.Dispatch.Delay = importDelay
		}
		if cmd.Flags().Changed("priority") {
			if importPriority <= 0 {
				return errors.New("--priority must be positive")
			}
			cfg.Dispatch.Priority = importPriority
		}
		return nil
	})
	if err != nil {
		return err
	}

	if importWatch {
		go func() {
			if err := ignoreCanceled(ctrl.Watch(ctx)); err != nil {
				logging.Warn("watch stopped", "error", err)
			}
		}()
	}

	res, err := ctrl.Import(ctx, args[0])
	if res.RunID == "" {
		// Nothing was dispatched; the file could not be read.
		return err
	}

	fmt.Fprintf(out, "Submitted %d games (%d accepted, %d failed, %d skipped without catalogueGameId)\n",
		res.Submitted, res.Acknowledged, len(res.Failures), res.Skipped)
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  %s: %v\n", f.ItemID, f.Err)
	}
	if err != nil {
		fmt.Fprintln(out, "Import canceled.")
	}
	return ignoreCanceled(err)
}
