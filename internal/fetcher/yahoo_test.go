package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func chartServer(t *testing.T, status int, body any) (*httptest.Server, *string) {
	t.Helper()
	var lastPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &lastPath
}

func TestYahooFetchSuccess(t *testing.T) {
	body := map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{
					"currency":             "EUR",
					"symbol":               "STMMI.MI",
					"exchangeName":         "MIL",
					"exchangeTimezoneName": "Europe/Rome",
					"regularMarketPrice":   40.0,
					"regularMarketTime":    1710252000,
				},
				"timestamp": []int64{1710230400, 1710230460, 1710230520},
				"indicators": map[string]any{
					"quote": []any{map[string]any{
						"open":  []any{nil, 39.5, 39.7},
						"close": []any{39.6, 39.8, nil},
					}},
				},
			}},
			"error": nil,
		},
	}
	srv, path := chartServer(t, http.StatusOK, body)

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, Timeout: time.Second, TickerMap: map[string]string{"STM": "STMMI.MI"}}, noopLogger())
	q, err := y.FetchQuote(context.Background(), "STM")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.HasSuffix(*path, "/v8/finance/chart/STMMI.MI") {
		t.Fatalf("alias not resolved, path %s", *path)
	}
	if q.Price != 39.8 {
		t.Fatalf("expected last non-null close 39.8, got %v", q.Price)
	}
	if !q.AsOf.Equal(time.Unix(1710230460, 0)) {
		t.Fatalf("asof should match the close timestamp, got %s", q.AsOf)
	}
	if q.OpenPrice == nil || *q.OpenPrice != 39.5 {
		t.Fatalf("expected first non-null open, got %v", q.OpenPrice)
	}
	if q.Currency != "EUR" || q.Exchange != "MIL" || q.Timezone != "Europe/Rome" {
		t.Fatalf("meta not mapped: %+v", q)
	}
	if q.MarketState != "" {
		t.Fatalf("market state should be empty when absent, got %q", q.MarketState)
	}
}

func TestYahooFetchFallsBackToMeta(t *testing.T) {
	body := map[string]any{
		"chart": map[string]any{
			"result": []any{map[string]any{
				"meta": map[string]any{
					"symbol":             "TXN",
					"regularMarketPrice": 170.25,
					"regularMarketTime":  1710252000,
					"regularMarketOpen":  168.0,
					"marketState":        "POST",
				},
			}},
		},
	}
	srv, _ := chartServer(t, http.StatusOK, body)

	q, err := NewYahoo(YahooOptions{BaseURL: srv.URL}, noopLogger()).FetchQuote(context.Background(), "TXN")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if q.Price != 170.25 || q.OpenPrice == nil || *q.OpenPrice != 168 || q.MarketState != "POST" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if !q.AsOf.Equal(time.Unix(1710252000, 0)) {
		t.Fatalf("asof = %s", q.AsOf)
	}
}

func TestYahooFetchNoData(t *testing.T) {
	body := map[string]any{"chart": map[string]any{"result": []any{map[string]any{"meta": map[string]any{"symbol": "X"}}}}}
	srv, _ := chartServer(t, http.StatusOK, body)

	_, err := NewYahoo(YahooOptions{BaseURL: srv.URL}, noopLogger()).FetchQuote(context.Background(), "X")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestYahooFetchHTTPError(t *testing.T) {
	body := map[string]any{"chart": map[string]any{"result": nil, "error": map[string]string{"code": "Not Found", "description": "No data found, symbol may be delisted"}}}
	srv, _ := chartServer(t, http.StatusNotFound, body)

	y := NewYahoo(YahooOptions{BaseURL: srv.URL}, noopLogger())
	err := y.ValidateTicker(context.Background(), "NOPE")
	if err == nil || !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "delisted") {
		t.Fatalf("expected descriptive 404 error, got %v", err)
	}
}

func TestYahooFetchEmptyTicker(t *testing.T) {
	if _, err := NewYahoo(YahooOptions{}, noopLogger()).FetchQuote(context.Background(), " "); err == nil {
		t.Fatal("empty ticker should fail")
	}
}

func TestYahooHistory(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"chart": map[string]any{
				"result": []any{map[string]any{
					"meta":      map[string]any{"symbol": "ENI.MI"},
					"timestamp": []int64{1710115200, 1710201600, 1710288000},
					"indicators": map[string]any{
						"quote": []any{map[string]any{
							"open":   []any{14.1, nil, 14.4},
							"high":   []any{14.5, nil, 14.6},
							"low":    []any{14.0, nil, 14.2},
							"close":  []any{14.3, nil, 14.5},
							"volume": []any{1200, nil, 900},
						}},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	y := NewYahoo(YahooOptions{BaseURL: srv.URL, TickerMap: map[string]string{"ENI": "ENI.MI"}}, noopLogger())
	bars, err := y.History(context.Background(), "ENI", "", "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(query, "range=1y") || !strings.Contains(query, "interval=1d") {
		t.Fatalf("defaults not sent, query %s", query)
	}
	if len(bars) != 2 {
		t.Fatalf("bars without a close should be skipped, got %d", len(bars))
	}
	if bars[1].Close != 14.5 || bars[1].High != 14.6 || bars[1].Volume != 900 || !bars[1].Date.Equal(time.Unix(1710288000, 0)) {
		t.Fatalf("unexpected bar: %+v", bars[1])
	}
}

func TestYahooHistoryRejectsUnknownRange(t *testing.T) {
	y := NewYahoo(YahooOptions{BaseURL: "http://127.0.0.1:0"}, noopLogger())
	if _, err := y.History(context.Background(), "TXN", "7y", "1d"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for period, got %v", err)
	}
	if _, err := y.History(context.Background(), "TXN", "1y", "3h"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange for interval, got %v", err)
	}
}

func TestYahooHistoryEmpty(t *testing.T) {
	srv, _ := chartServer(t, http.StatusOK, map[string]any{"chart": map[string]any{"result": []any{}}})

	bars, err := NewYahoo(YahooOptions{BaseURL: srv.URL}, noopLogger()).History(context.Background(), "X", "5d", "1h")
	if err != nil || bars == nil || len(bars) != 0 {
		t.Fatalf("expected empty series, got %v %v", bars, err)
	}
}
