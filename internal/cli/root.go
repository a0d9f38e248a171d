package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stocks-watcher/internal/app"
	"stocks-watcher/internal/config"
	"stocks-watcher/internal/logging"
)

var (
	cfgFile    string
	logLevel   string
	prettyLogs bool
	appHandle  *app.App
)

var rootCmd = &cobra.Command{
	Use:   "stockswatcher",
	Short: "Watch stock prices against trigger levels and alert when they get close",
	Long: `stockswatcher polls quotes for a list of tickers, compares each price with
its trigger levels, sends one Telegram alert per approach and streams every
cycle's status to websocket subscribers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if prettyLogs {
			cfg.Logging.PrettyPrint = true
		}

		logger := logging.NewLogger(cfg.Logging)
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable console logs")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
