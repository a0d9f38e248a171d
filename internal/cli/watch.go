package cli

import (
	"github.com/spf13/cobra"

	"stocks-watcher/internal/app"
)

var (
	watchLevels       []float64
	watchDisabled     bool
	watchSkipValidate bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage watched tickers",
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListWatches(cmd.Context())
	},
}

var watchAddCmd = &cobra.Command{
	Use:   "add TICKER",
	Short: "Create or replace a watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().AddWatch(cmd.Context(), app.WatchAddOptions{
			Ticker:       args[0],
			Levels:       watchLevels,
			Disabled:     watchDisabled,
			SkipValidate: watchSkipValidate,
		})
	},
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove TICKER",
	Short: "Delete a watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveWatch(cmd.Context(), args[0])
	},
}

func init() {
	watchAddCmd.Flags().Float64SliceVar(&watchLevels, "levels", nil, "Comma-separated trigger levels")
	watchAddCmd.Flags().BoolVar(&watchDisabled, "disabled", false, "Store the watch without polling it")
	watchAddCmd.Flags().BoolVar(&watchSkipValidate, "skip-validate", false, "Do not check the ticker with the provider")

	watchCmd.AddCommand(watchListCmd, watchAddCmd, watchRemoveCmd)
}
