package cli

import (
	"github.com/spf13/cobra"

	"stocks-watcher/internal/app"
)

var tickIgnoreWeekend bool

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one watch cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Tick(cmd.Context(), app.TickOptions{IgnoreWeekend: tickIgnoreWeekend})
	},
}

func init() {
	tickCmd.Flags().BoolVar(&tickIgnoreWeekend, "ignore-weekend", false, "Run even on Saturday/Sunday (UTC)")
}
