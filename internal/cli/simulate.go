package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"stocks-watcher/internal/app"
)

var (
	simulateTicker string
	simulatePrice  float64
	simulateLevels []float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "以指定价格模拟一次告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateTicker == "" {
			return errors.New("--ticker 不能为空")
		}
		if simulatePrice <= 0 {
			return errors.New("--price 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Ticker: simulateTicker,
			Price:  simulatePrice,
			Levels: simulateLevels,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateTicker, "ticker", "", "Ticker to simulate")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Simulated last price")
	simulateCmd.Flags().Float64SliceVar(&simulateLevels, "levels", nil, "Trigger levels (defaults to the stored watch)")
}
