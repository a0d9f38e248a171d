package alerting

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"stocks-watcher/internal/proximity"
	"stocks-watcher/internal/storage"
)

// Outcome reports what Process did for one watch.
type Outcome string

const (
	OutcomeNotified   Outcome = "notified"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeCleared    Outcome = "cleared"
	OutcomeIdle       Outcome = "idle"
)

// Deduper sends a proximity alert once per distinct message and re-arms when price moves away.
type Deduper struct {
	notifier Notifier
	store    storage.WatchStore
	logger   zerolog.Logger
}

// NewDeduper constructs a deduper persisting alert digests through store.
func NewDeduper(notifier Notifier, store storage.WatchStore, logger zerolog.Logger) *Deduper {
	return &Deduper{
		notifier: notifier,
		store:    store,
		logger:   logger.With().Str("component", "alert_deduper").Logger(),
	}
}

// Process applies the alert transition for watch given its evaluated view.
// Delivery failures are logged and the digest is still persisted; only storage errors are returned.
func (d *Deduper) Process(ctx context.Context, watch storage.Watch, view proximity.View) (Outcome, error) {
	if view.Near && view.NearestLevel != nil {
		text := RenderAlert(watch.Ticker, view.Price, *view.NearestLevel, view.DistancePct)
		digest := Digest(text)
		if watch.LastAlertHash != nil && *watch.LastAlertHash == digest {
			return OutcomeSuppressed, nil
		}

		hash, err := d.notifier.Send(ctx, text)
		if err != nil {
			d.logger.Warn().Err(err).Str("ticker", watch.Ticker).Bool("delivery", errors.Is(err, ErrDelivery)).Msg("alert delivery failed")
		}
		if hash == "" {
			hash = digest
		}
		if err := d.store.UpdateAlertHash(ctx, watch.Ticker, &hash); err != nil {
			return OutcomeNotified, err
		}

		d.logger.Info().Str("ticker", watch.Ticker).
			Float64("price", view.Price).
			Float64("level", *view.NearestLevel).
			Float64("distance_pct", view.DistancePct).
			Msg("proximity alert raised")
		return OutcomeNotified, nil
	}

	if watch.LastAlertHash == nil {
		return OutcomeIdle, nil
	}
	if err := d.store.UpdateAlertHash(ctx, watch.Ticker, nil); err != nil {
		return OutcomeCleared, err
	}
	d.logger.Debug().Str("ticker", watch.Ticker).Msg("alert re-armed")
	return OutcomeCleared, nil
}
