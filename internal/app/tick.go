package app

import (
	"context"
	"time"

	"stocks-watcher/internal/pricecache"
	"stocks-watcher/internal/service"
)

// Tick runs a single watch cycle immediately, without subscribers.
func (a *App) Tick(ctx context.Context, opts TickOptions) error {
	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := *a.Config
	if opts.IgnoreWeekend {
		cfg.Scheduler.SkipWeekends = false
	}

	cache := pricecache.New(st.prices, a.newFetcher(), a.Logger)
	svc := service.New(&cfg, nil, st.watches, cache, a.newNotifier(), nil, a.Logger)

	bucket := time.Now().UTC()
	if err := svc.Tick(ctx, bucket); err != nil {
		return err
	}
	a.Logger.Info().Time("completed", svc.LastUpdate()).Msg("tick finished")
	return nil
}
