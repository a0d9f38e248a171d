package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a single subscriber delivery.
const DefaultTimeout = 5 * time.Second

// Subscriber receives serialized broadcast payloads.
type Subscriber interface {
	Send(ctx context.Context, payload []byte) error
}

// Hub fans a payload out to every registered subscriber.
type Hub struct {
	mu      sync.RWMutex
	subs    map[Subscriber]struct{}
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHub constructs a hub with the given per-subscriber delivery timeout.
func NewHub(timeout time.Duration, logger zerolog.Logger) *Hub {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Hub{
		subs:    make(map[Subscriber]struct{}),
		timeout: timeout,
		logger:  logger.With().Str("component", "broadcast_hub").Logger(),
	}
}

// Register adds sub. Registering twice is a no-op.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.logger.Debug().Int("subscribers", n).Msg("subscriber registered")
}

// Unregister removes sub if present.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		h.logger.Debug().Int("subscribers", n).Msg("subscriber removed")
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast encodes v once and delivers it to every subscriber concurrently.
// Subscribers that fail or exceed the timeout are evicted. Only an encoding error is returned.
func (h *Hub) Broadcast(ctx context.Context, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}

	subs := h.snapshot()
	if len(subs) == 0 {
		return nil
	}

	type result struct {
		sub Subscriber
		err error
	}

	sendCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	results := make(chan result, len(subs))
	for _, sub := range subs {
		go func(sub Subscriber) {
			results <- result{sub: sub, err: sub.Send(sendCtx, payload)}
		}(sub)
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	pending := make(map[Subscriber]struct{}, len(subs))
	for _, sub := range subs {
		pending[sub] = struct{}{}
	}

	var failed []Subscriber
	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.sub)
			if r.err != nil {
				h.logger.Warn().Err(r.err).Msg("subscriber delivery failed")
				failed = append(failed, r.sub)
			}
		case <-timer.C:
			for sub := range pending {
				h.logger.Warn().Dur("timeout", h.timeout).Msg("subscriber delivery timed out")
				failed = append(failed, sub)
			}
			pending = nil
		}
	}

	for _, sub := range failed {
		h.Unregister(sub)
		if c, ok := sub.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}

	h.logger.Debug().Int("delivered", len(subs)-len(failed)).
		Int("evicted", len(failed)).
		Msg("broadcast complete")
	return nil
}

func (h *Hub) snapshot() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		out = append(out, sub)
	}
	return out
}
