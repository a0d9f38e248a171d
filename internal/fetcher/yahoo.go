package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const chartPath = "/v8/finance/chart/"

// YahooOptions parameterise the Yahoo Finance chart fetcher.
type YahooOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// TickerMap resolves user-facing aliases to provider symbols (e.g. STM -> STMMI.MI).
	TickerMap map[string]string
}

// Yahoo fetches intraday quotes from the Yahoo Finance chart endpoint.
type Yahoo struct {
	opts    YahooOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewYahoo constructs a Yahoo Finance fetcher.
func NewYahoo(opts YahooOptions, logger zerolog.Logger) *Yahoo {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	return &Yahoo{
		opts:    opts,
		logger:  logger.With().Str("component", "quote_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Symbol maps a ticker through the alias table.
func (y *Yahoo) Symbol(ticker string) string {
	if symbol, ok := y.opts.TickerMap[strings.ToUpper(ticker)]; ok {
		return symbol
	}
	return ticker
}

// FetchQuote returns the last one-minute close of the current session.
func (y *Yahoo) FetchQuote(ctx context.Context, ticker string) (Quote, error) {
	if strings.TrimSpace(ticker) == "" {
		return Quote{}, fmt.Errorf("ticker is required")
	}
	symbol := y.Symbol(ticker)

	res, err := y.chart(ctx, symbol, "1d", "1m")
	if err != nil {
		return Quote{}, err
	}

	quote, err := res.quote()
	if err != nil {
		return Quote{}, fmt.Errorf("%s: %w", ticker, err)
	}

	y.logger.Debug().Str("ticker", ticker).
		Str("symbol", symbol).
		Float64("price", quote.Price).
		Str("exchange", quote.Exchange).
		Str("market_state", quote.MarketState).
		Msg("quote fetched")
	return quote, nil
}

// ValidateTicker reports whether the provider has chart data for ticker.
func (y *Yahoo) ValidateTicker(ctx context.Context, ticker string) error {
	_, err := y.FetchQuote(ctx, ticker)
	return err
}

// History returns OHLCV bars for ticker over period sampled at interval.
// Bars without a close are skipped; an empty series is not an error.
func (y *Yahoo) History(ctx context.Context, ticker, period, interval string) ([]Bar, error) {
	if strings.TrimSpace(ticker) == "" {
		return nil, fmt.Errorf("ticker is required")
	}
	if period == "" {
		period = DefaultHistoryPeriod
	}
	if interval == "" {
		interval = DefaultHistoryInterval
	}
	if err := ValidateHistoryRange(period, interval); err != nil {
		return nil, err
	}
	symbol := y.Symbol(ticker)

	res, err := y.chart(ctx, symbol, period, interval)
	if errors.Is(err, ErrNoData) {
		return []Bar{}, nil
	}
	if err != nil {
		return nil, err
	}

	bars := res.bars()
	y.logger.Debug().Str("ticker", ticker).
		Str("symbol", symbol).
		Str("period", period).
		Str("interval", interval).
		Int("bars", len(bars)).
		Msg("history fetched")
	return bars, nil
}

func (y *Yahoo) chart(ctx context.Context, symbol, period, interval string) (chartResult, error) {
	query := url.Values{}
	query.Set("interval", interval)
	query.Set("range", period)
	endpoint := y.baseURL + chartPath + url.PathEscape(symbol) + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return chartResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(y.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "stockswatcher/1.0")
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return chartResult{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return chartResult{}, err
	}

	var parsed chartResponse
	decodeErr := json.Unmarshal(payload, &parsed)

	if resp.StatusCode != http.StatusOK {
		return chartResult{}, parseHTTPError(resp.StatusCode, parsed, decodeErr, payload)
	}
	if decodeErr != nil {
		return chartResult{}, fmt.Errorf("decode chart response: %w", decodeErr)
	}
	if parsed.Chart.Error != nil {
		return chartResult{}, fmt.Errorf("yahoo chart error: %s", parsed.Chart.Error.String())
	}
	if len(parsed.Chart.Result) == 0 {
		return chartResult{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return parsed.Chart.Result[0], nil
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e chartError) String() string {
	switch {
	case e.Description != "" && e.Code != "":
		return e.Code + ": " + e.Description
	case e.Description != "":
		return e.Description
	default:
		return e.Code
	}
}

type chartResult struct {
	Meta struct {
		Currency             string   `json:"currency"`
		Symbol               string   `json:"symbol"`
		ExchangeName         string   `json:"exchangeName"`
		ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
		RegularMarketPrice   *float64 `json:"regularMarketPrice"`
		RegularMarketTime    int64    `json:"regularMarketTime"`
		RegularMarketOpen    *float64 `json:"regularMarketOpen"`
		MarketState          string   `json:"marketState"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (r chartResult) quote() (Quote, error) {
	q := Quote{
		Symbol:      r.Meta.Symbol,
		Currency:    r.Meta.Currency,
		Exchange:    r.Meta.ExchangeName,
		Timezone:    r.Meta.ExchangeTimezoneName,
		MarketState: r.Meta.MarketState,
	}

	var opens, closes []*float64
	if len(r.Indicators.Quote) > 0 {
		opens = r.Indicators.Quote[0].Open
		closes = r.Indicators.Quote[0].Close
	}

	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil && *closes[i] > 0 {
			q.Price = *closes[i]
			if i < len(r.Timestamp) {
				q.AsOf = time.Unix(r.Timestamp[i], 0).UTC()
			}
			break
		}
	}
	if q.Price <= 0 && r.Meta.RegularMarketPrice != nil {
		q.Price = *r.Meta.RegularMarketPrice
	}
	if q.Price <= 0 {
		return Quote{}, ErrNoData
	}
	if q.AsOf.IsZero() && r.Meta.RegularMarketTime > 0 {
		q.AsOf = time.Unix(r.Meta.RegularMarketTime, 0).UTC()
	}
	if q.AsOf.IsZero() {
		q.AsOf = time.Now().UTC()
	}

	if r.Meta.RegularMarketOpen != nil && *r.Meta.RegularMarketOpen > 0 {
		open := *r.Meta.RegularMarketOpen
		q.OpenPrice = &open
	} else {
		for _, o := range opens {
			if o != nil && *o > 0 {
				open := *o
				q.OpenPrice = &open
				break
			}
		}
	}
	return q, nil
}

func (r chartResult) bars() []Bar {
	out := []Bar{}
	if len(r.Indicators.Quote) == 0 {
		return out
	}
	q := r.Indicators.Quote[0]
	for i, ts := range r.Timestamp {
		closePx := at(q.Close, i)
		if closePx == nil {
			continue
		}
		bar := Bar{Date: time.Unix(ts, 0).UTC(), Close: *closePx}
		if v := at(q.Open, i); v != nil {
			bar.Open = *v
		}
		if v := at(q.High, i); v != nil {
			bar.High = *v
		}
		if v := at(q.Low, i); v != nil {
			bar.Low = *v
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		out = append(out, bar)
	}
	return out
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func parseHTTPError(status int, parsed chartResponse, decodeErr error, payload []byte) error {
	if decodeErr == nil && parsed.Chart.Error != nil {
		return fmt.Errorf("yahoo api error (%d): %s", status, parsed.Chart.Error.String())
	}
	if len(payload) > 0 {
		body := strings.TrimSpace(string(payload))
		if len(body) > 200 {
			body = body[:200]
		}
		return fmt.Errorf("yahoo api error (%d): %s", status, body)
	}
	return fmt.Errorf("yahoo api error (%d)", status)
}

var (
	_ QuoteFetcher    = (*Yahoo)(nil)
	_ TickerValidator = (*Yahoo)(nil)
	_ HistoryFetcher  = (*Yahoo)(nil)
)
