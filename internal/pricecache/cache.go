package pricecache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"stocks-watcher/internal/fetcher"
	"stocks-watcher/internal/storage"
)

// ErrFetch marks a failed or unusable provider response. The ticker is retried on the next tick.
var ErrFetch = errors.New("fetch error")

const (
	defaultCurrency = "USD"
	defaultExchange = "Unknown"
	defaultTimezone = "America/New_York"
)

// Cache holds the latest quote per ticker and refreshes it from the provider.
type Cache struct {
	store   storage.PriceStore
	fetcher fetcher.QuoteFetcher
	group   singleflight.Group
	logger  zerolog.Logger
}

// New constructs a price cache over store and fetcher.
func New(store storage.PriceStore, quotes fetcher.QuoteFetcher, logger zerolog.Logger) *Cache {
	return &Cache{
		store:   store,
		fetcher: quotes,
		logger:  logger.With().Str("component", "price_cache").Logger(),
	}
}

// Get returns the cached snapshot, or nil when none has been recorded.
func (c *Cache) Get(ctx context.Context, ticker string) (*storage.PriceSnapshot, error) {
	snap, err := c.store.GetPrice(ctx, normalize(ticker))
	if err != nil {
		return nil, storageErr("get price", ticker, err)
	}
	return snap, nil
}

// Refresh fetches a fresh quote, persists it and returns it.
// Concurrent refreshes of one ticker share a single provider call. The shared
// call is detached from any one caller's cancellation; each caller stops
// waiting when its own ctx is done.
func (c *Cache) Refresh(ctx context.Context, ticker string) (storage.PriceSnapshot, error) {
	ticker = normalize(ticker)
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ticker, func() (any, error) {
		return c.refresh(flightCtx, ticker)
	})

	select {
	case <-ctx.Done():
		return storage.PriceSnapshot{}, fmt.Errorf("%w: %s: %w", ErrFetch, ticker, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return storage.PriceSnapshot{}, res.Err
		}
		if res.Shared {
			c.logger.Debug().Str("ticker", ticker).Msg("refresh shared with concurrent caller")
		}
		snap := res.Val.(storage.PriceSnapshot)
		return snap.Clone(), nil
	}
}

// GetOrRefresh returns the cached snapshot unless force is set or nothing is cached.
// The boolean reports whether the provider was called.
func (c *Cache) GetOrRefresh(ctx context.Context, ticker string, force bool) (storage.PriceSnapshot, bool, error) {
	if !force {
		snap, err := c.Get(ctx, ticker)
		if err != nil {
			return storage.PriceSnapshot{}, false, err
		}
		if snap != nil {
			return *snap, false, nil
		}
	}
	snap, err := c.Refresh(ctx, ticker)
	if err != nil {
		return storage.PriceSnapshot{}, false, err
	}
	return snap, true, nil
}

func (c *Cache) refresh(ctx context.Context, ticker string) (storage.PriceSnapshot, error) {
	quote, err := c.fetcher.FetchQuote(ctx, ticker)
	if err != nil {
		return storage.PriceSnapshot{}, fmt.Errorf("%w: %s: %w", ErrFetch, ticker, err)
	}
	if quote.Price <= 0 {
		return storage.PriceSnapshot{}, fmt.Errorf("%w: %s: %w", ErrFetch, ticker, fetcher.ErrNoData)
	}

	snap := storage.PriceSnapshot{
		Ticker:      ticker,
		Price:       quote.Price,
		AsOf:        quote.AsOf.UTC(),
		Currency:    orDefault(quote.Currency, defaultCurrency),
		Exchange:    orDefault(quote.Exchange, defaultExchange),
		Timezone:    orDefault(quote.Timezone, defaultTimezone),
		MarketState: quote.MarketState,
		OpenPrice:   quote.OpenPrice,
	}

	if err := c.store.SetPrice(ctx, snap); err != nil {
		return storage.PriceSnapshot{}, storageErr("set price", ticker, err)
	}

	c.logger.Debug().Str("ticker", ticker).
		Float64("price", snap.Price).
		Str("exchange", snap.Exchange).
		Time("asof", snap.AsOf).
		Msg("price refreshed")
	return snap, nil
}

// storageErr tags err with storage.ErrStorage unless the backend already did.
func storageErr(op, ticker string, err error) error {
	if errors.Is(err, storage.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", storage.ErrStorage, op, ticker, err)
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
