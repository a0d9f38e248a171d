package pricecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stocks-watcher/internal/fetcher"
	"stocks-watcher/internal/storage"
)

type stubFetcher struct {
	calls atomic.Int32
	gate  chan struct{}
	quote fetcher.Quote
	err   error
}

func (s *stubFetcher) FetchQuote(ctx context.Context, ticker string) (fetcher.Quote, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return fetcher.Quote{}, ctx.Err()
		}
	}
	if s.err != nil {
		return fetcher.Quote{}, s.err
	}
	q := s.quote
	q.Symbol = ticker
	return q, nil
}

type failingStore struct{}

func (failingStore) GetPrice(context.Context, string) (*storage.PriceSnapshot, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) SetPrice(context.Context, storage.PriceSnapshot) error {
	return errors.New("connection reset")
}

func TestRefreshAppliesDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	stub := &stubFetcher{quote: fetcher.Quote{Price: 101.5, AsOf: time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)}}
	cache := New(store, stub, zerolog.Nop())

	snap, err := cache.Refresh(context.Background(), "txn")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.Ticker != "TXN" || snap.Currency != "USD" || snap.Exchange != "Unknown" || snap.Timezone != "America/New_York" {
		t.Fatalf("defaults not applied: %+v", snap)
	}

	stored, err := cache.Get(context.Background(), "TXN")
	if err != nil || stored == nil || stored.Price != 101.5 {
		t.Fatalf("snapshot not persisted: %+v %v", stored, err)
	}
}

func TestRefreshRejectsUnusablePrice(t *testing.T) {
	cache := New(storage.NewMemoryStore(), &stubFetcher{quote: fetcher.Quote{Price: 0}}, zerolog.Nop())

	_, err := cache.Refresh(context.Background(), "ENI")
	if !errors.Is(err, ErrFetch) || !errors.Is(err, fetcher.ErrNoData) {
		t.Fatalf("expected ErrFetch wrapping ErrNoData, got %v", err)
	}
	if snap, _ := cache.Get(context.Background(), "ENI"); snap != nil {
		t.Fatalf("nothing should be stored, got %+v", snap)
	}
}

func TestRefreshFetchFailure(t *testing.T) {
	cause := errors.New("timeout")
	cache := New(storage.NewMemoryStore(), &stubFetcher{err: cause}, zerolog.Nop())

	_, err := cache.Refresh(context.Background(), "ENEL")
	if !errors.Is(err, ErrFetch) || !errors.Is(err, cause) {
		t.Fatalf("expected ErrFetch wrapping cause, got %v", err)
	}
}

func TestRefreshStorageFailure(t *testing.T) {
	cache := New(failingStore{}, &stubFetcher{quote: fetcher.Quote{Price: 10}}, zerolog.Nop())

	if _, err := cache.Refresh(context.Background(), "INTC"); !errors.Is(err, storage.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if _, err := cache.Get(context.Background(), "INTC"); !errors.Is(err, storage.ErrStorage) {
		t.Fatalf("expected ErrStorage on read, got %v", err)
	}
}

func TestGetOrRefresh(t *testing.T) {
	stub := &stubFetcher{quote: fetcher.Quote{Price: 50, Currency: "EUR"}}
	cache := New(storage.NewMemoryStore(), stub, zerolog.Nop())
	ctx := context.Background()

	if _, refreshed, err := cache.GetOrRefresh(ctx, "STM", false); err != nil || !refreshed {
		t.Fatalf("cold cache should refresh: %v %v", refreshed, err)
	}
	if _, refreshed, err := cache.GetOrRefresh(ctx, "STM", false); err != nil || refreshed {
		t.Fatalf("warm cache should not refresh: %v %v", refreshed, err)
	}
	if _, refreshed, err := cache.GetOrRefresh(ctx, "STM", true); err != nil || !refreshed {
		t.Fatalf("force should refresh: %v %v", refreshed, err)
	}
	if got := stub.calls.Load(); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestRefreshCollapsesConcurrentCalls(t *testing.T) {
	stub := &stubFetcher{gate: make(chan struct{}), quote: fetcher.Quote{Price: 12}}
	cache := New(storage.NewMemoryStore(), stub, zerolog.Nop())

	const callers = 5
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	errs := make(chan error, callers)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			_, err := cache.Refresh(context.Background(), "ENI")
			errs <- err
		}()
	}
	started.Wait()

	// let every caller reach the singleflight group before releasing the fetch
	deadline := time.Now().Add(time.Second)
	for stub.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(stub.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	if got := stub.calls.Load(); got < 1 || got >= callers {
		t.Fatalf("expected concurrent refreshes to share provider calls, got %d", got)
	}
}

func TestRefreshSurvivesCancelledSharer(t *testing.T) {
	stub := &stubFetcher{gate: make(chan struct{}), quote: fetcher.Quote{Price: 14.3}}
	cache := New(storage.NewMemoryStore(), stub, zerolog.Nop())

	reqCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.Refresh(reqCtx, "ENI")
		first <- err
	}()
	for stub.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	second := make(chan error, 1)
	go func() {
		_, err := cache.Refresh(context.Background(), "ENI")
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) || !errors.Is(err, ErrFetch) {
		t.Fatalf("cancelled caller should stop waiting, got %v", err)
	}

	close(stub.gate)
	if err := <-second; err != nil {
		t.Fatalf("live caller must not inherit another caller's cancellation: %v", err)
	}
	if snap, _ := cache.Get(context.Background(), "ENI"); snap == nil || snap.Price != 14.3 {
		t.Fatalf("shared refresh should still persist, got %+v", snap)
	}
}
