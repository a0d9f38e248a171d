package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"stocks-watcher/internal/pricecache"
	"stocks-watcher/internal/proximity"
	"stocks-watcher/internal/service"
)

// Show prints the current status of every watch.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	views, err := a.statuses(ctx, opts.Refresh)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Fprintln(a.stdout(), "no watches found")
		return nil
	}

	writer := tabwriter.NewWriter(a.stdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Ticker\tPrice\tCurrency\tNearest\tDistance%\tNear\tChange%")
	for _, v := range views {
		near := ""
		if v.Near {
			near = "yes"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Ticker,
			formatFloat(v.Price, 2),
			v.Currency,
			formatOptional(v.NearestLevel, 2),
			formatFloat(v.DistancePct*100, 2),
			near,
			formatOptional(v.PriceChangePct, 2),
		)
	}
	return writer.Flush()
}

func (a *App) statuses(ctx context.Context, refresh bool) ([]proximity.View, error) {
	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	cache := pricecache.New(st.prices, a.newFetcher(), a.Logger)
	svc := service.New(a.Config, nil, st.watches, cache, a.newNotifier(), nil, a.Logger)
	return svc.Statuses(ctx, refresh)
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatOptional(v *float64, places int32) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v, places)
}
