package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stocks-watcher/internal/fetcher"
	"stocks-watcher/internal/pricecache"
	"stocks-watcher/internal/service"
	"stocks-watcher/internal/storage"
)

// SimulateAlert 以给定价格模拟一次完整的告警流程，不修改持久化状态。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	ticker := strings.ToUpper(strings.TrimSpace(opts.Ticker))
	if ticker == "" {
		return errors.New("--ticker is required")
	}
	if opts.Price <= 0 {
		return errors.New("--price must be positive")
	}

	levels := opts.Levels
	if len(levels) == 0 {
		st, err := a.openStores(ctx)
		if err != nil {
			return err
		}
		watch, err := st.watches.GetWatch(ctx, ticker)
		st.Close()
		if err != nil {
			return err
		}
		if watch == nil {
			return fmt.Errorf("watch %s not found; pass --levels to simulate without one", ticker)
		}
		levels = watch.Levels
	}

	sandbox := storage.NewMemoryStore()
	if _, err := sandbox.UpsertWatch(ctx, storage.Watch{Ticker: ticker, Levels: levels, Enabled: true}); err != nil {
		return err
	}

	cfg := *a.Config
	cfg.Scheduler.SkipWeekends = false

	quotes := &staticQuoteFetcher{price: opts.Price}
	cache := pricecache.New(sandbox, quotes, a.Logger)
	svc := service.New(&cfg, nil, sandbox, cache, a.newNotifier(), nil, a.Logger)

	if err := svc.Tick(ctx, time.Now().UTC()); err != nil {
		return err
	}

	watch, err := sandbox.GetWatch(ctx, ticker)
	if err != nil {
		return err
	}
	if watch == nil || watch.LastAlertHash == nil {
		fmt.Fprintf(a.stdout(), "%s at %s is not near any level; no alert sent\n", ticker, formatFloat(opts.Price, 2))
		return nil
	}
	fmt.Fprintf(a.stdout(), "alert dispatched for %s (hash %s)\n", ticker, *watch.LastAlertHash)
	return nil
}

// staticQuoteFetcher answers every ticker with a fixed price. It reports no
// market state, so session status falls back to the exchange calendar.
type staticQuoteFetcher struct {
	price float64
}

func (s *staticQuoteFetcher) FetchQuote(ctx context.Context, ticker string) (fetcher.Quote, error) {
	return fetcher.Quote{Symbol: ticker, Price: s.price, AsOf: time.Now().UTC()}, nil
}

var _ fetcher.QuoteFetcher = (*staticQuoteFetcher)(nil)
