package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stocks-watcher/internal/app"
)

var (
	exportPNGPath string
	exportCSVPath string
	exportMaxRows int
	exportRefresh bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export watch statuses as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportMaxRows < 0 {
			return fmt.Errorf("--max-rows cannot be negative")
		}
		opts := app.ExportOptions{
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			MaxRows: exportMaxRows,
			Refresh: exportRefresh,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export (defaults to config)")
	exportCmd.Flags().BoolVar(&exportRefresh, "refresh", false, "Fetch fresh prices before exporting")
}
