package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/thruflo/gamecheck/internal/config"
	"github.com/thruflo/gamecheck/internal/dashboard"
	"github.com/thruflo/gamecheck/internal/store"
	"github.com/thruflo/gamecheck/internal/stream"
	"github.com/thruflo/gamecheck/internal/tui"
)

var watchFilter store.FilterOptions

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow test results live",
	Long: `Loads the current results, then follows pushed updates and redraws the
table as tests progress. If the event stream drops, it is reopened after the
configured reconnect interval and the full collection is fetched again.

Press Ctrl-C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addFilterFlags(watchCmd, &watchFilter)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := validateFilter(watchFilter); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	view := tui.NewDashboard(tui.NewScreen(cmd.OutOrStdout()), watchFilter)

	ctrl, err := liveController(ctx, view, nil)
	if err != nil {
		return err
	}
	return ignoreCanceled(ctrl.Watch(ctx))
}

// liveController builds a controller whose view tracks the push channel
// state. adjust, if set, may amend the loaded config first.
func liveController(ctx context.Context, r dashboard.Renderer, adjust func(*config.Config) error) (*dashboard.Controller, error) {
	var ctrl *dashboard.Controller
	e, err := setup(ctx, stream.WithStateHook(func(s stream.ConnState) {
		if ctrl != nil {
			ctrl.ObserveConnState(s)
		}
	}))
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		if err := adjust(e.cfg); err != nil {
			return nil, err
		}
	}
	ctrl, err = e.controller(r)
	return ctrl, err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
