package cli

import (
	"github.com/spf13/cobra"

	"stocks-watcher/internal/app"
)

var showRefresh bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current status of every watch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{Refresh: showRefresh})
	},
}

func init() {
	showCmd.Flags().BoolVar(&showRefresh, "refresh", false, "Fetch fresh prices instead of using the cache")
}
