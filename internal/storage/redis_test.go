package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"stocks-watcher/internal/config"
)

// TestRedisPriceStore runs against a live Redis when STOCKSWATCHER_TEST_REDIS is set.
func TestRedisPriceStore(t *testing.T) {
	addr := os.Getenv("STOCKSWATCHER_TEST_REDIS")
	if addr == "" {
		t.Skip("STOCKSWATCHER_TEST_REDIS not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefix := "stockswatcher:test:" + time.Now().Format("150405.000") + ":"
	store, err := NewRedisPriceStore(ctx, config.RedisConfig{Addr: addr, KeyPrefix: prefix})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	defer store.client.Del(context.Background(), store.key("ENI"))

	if snap, err := store.GetPrice(ctx, "ENI"); err != nil || snap != nil {
		t.Fatalf("missing key should be nil,nil: %v %v", snap, err)
	}

	open := 14.1
	in := PriceSnapshot{Ticker: "ENI", Price: 14.32, Currency: "EUR", Exchange: "MIL", Timezone: "Europe/Rome", MarketState: "REGULAR", OpenPrice: &open}
	if err := store.SetPrice(ctx, in); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := store.GetPrice(ctx, "ENI")
	if err != nil || out == nil {
		t.Fatalf("get: %v %v", out, err)
	}
	if out.Price != 14.32 || out.MarketState != "REGULAR" || out.OpenPrice == nil || *out.OpenPrice != 14.1 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestRedisPriceStoreMissingAddr(t *testing.T) {
	if _, err := NewRedisPriceStore(context.Background(), config.RedisConfig{}); err == nil {
		t.Fatal("empty address should fail")
	}
}
