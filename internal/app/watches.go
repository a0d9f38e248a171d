package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"stocks-watcher/internal/storage"
)

// WatchAddOptions configure the watch add command.
type WatchAddOptions struct {
	Ticker       string
	Levels       []float64
	Disabled     bool
	SkipValidate bool
}

// ListWatches prints every stored watch.
func (a *App) ListWatches(ctx context.Context) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	watches, err := st.watches.ListWatches(ctx)
	if err != nil {
		return err
	}
	if len(watches) == 0 {
		fmt.Fprintln(a.stdout(), "no watches found")
		return nil
	}

	writer := tabwriter.NewWriter(a.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Ticker\tLevels\tEnabled\tAlerted")
	for _, w := range watches {
		levels := make([]string, len(w.Levels))
		for i, l := range w.Levels {
			levels[i] = formatFloat(l, 2)
		}
		fmt.Fprintf(writer, "%s\t%s\t%t\t%t\n", w.Ticker, strings.Join(levels, ","), w.Enabled, w.LastAlertHash != nil)
	}
	return writer.Flush()
}

// AddWatch creates or replaces a watch after validating the ticker with the provider.
func (a *App) AddWatch(ctx context.Context, opts WatchAddOptions) error {
	ticker := strings.ToUpper(strings.TrimSpace(opts.Ticker))
	if ticker == "" {
		return errors.New("ticker is required")
	}
	for _, level := range opts.Levels {
		if level <= 0 || math.IsNaN(level) || math.IsInf(level, 0) {
			return fmt.Errorf("level %v must be a positive number", level)
		}
	}

	if !opts.SkipValidate {
		if err := a.newFetcher().ValidateTicker(ctx, ticker); err != nil {
			return fmt.Errorf("ticker %s not found on provider: %w", ticker, err)
		}
	}

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	levels := opts.Levels
	if levels == nil {
		levels = []float64{}
	}
	saved, err := st.watches.UpsertWatch(ctx, storage.Watch{Ticker: ticker, Levels: levels, Enabled: !opts.Disabled})
	if err != nil {
		return err
	}
	a.Logger.Info().Str("ticker", saved.Ticker).Int("levels", len(saved.Levels)).Bool("enabled", saved.Enabled).Msg("watch saved")
	return nil
}

// RemoveWatch deletes the watch for ticker.
func (a *App) RemoveWatch(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := st.watches.DeleteWatch(ctx, ticker)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("watch %s not found", ticker)
	}
	a.Logger.Info().Str("ticker", ticker).Msg("watch removed")
	return nil
}
