package fetcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrNoData is returned when the provider answers without a usable price.
var ErrNoData = errors.New("fetcher: no data")

// ErrInvalidRange is returned for a history period or interval the provider does not accept.
var ErrInvalidRange = errors.New("fetcher: invalid history range")

const (
	DefaultHistoryPeriod   = "1y"
	DefaultHistoryInterval = "1d"
)

var (
	historyPeriods   = []string{"1d", "5d", "1mo", "3mo", "6mo", "1y", "2y", "5y", "10y", "ytd", "max"}
	historyIntervals = []string{"1m", "2m", "5m", "15m", "30m", "60m", "90m", "1h", "1d", "5d", "1wk", "1mo", "3mo"}
)

// ValidateHistoryRange checks period and interval against the provider's accepted values.
func ValidateHistoryRange(period, interval string) error {
	if !slices.Contains(historyPeriods, period) {
		return fmt.Errorf("%w: period %q", ErrInvalidRange, period)
	}
	if !slices.Contains(historyIntervals, interval) {
		return fmt.Errorf("%w: interval %q", ErrInvalidRange, interval)
	}
	return nil
}

// Quote is a single price observation from the market-data provider.
type Quote struct {
	Symbol      string
	Price       float64
	AsOf        time.Time
	Currency    string
	Exchange    string
	Timezone    string
	MarketState string
	OpenPrice   *float64
}

// QuoteFetcher retrieves the latest quote for a ticker.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, ticker string) (Quote, error)
}

// TickerValidator checks that the provider knows a ticker.
type TickerValidator interface {
	ValidateTicker(ctx context.Context, ticker string) error
}

// Bar is one OHLCV sample of a price history.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// HistoryFetcher retrieves historical bars for charting.
type HistoryFetcher interface {
	History(ctx context.Context, ticker, period, interval string) ([]Bar, error)
}
