package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stocks-watcher/internal/alerting"
	"stocks-watcher/internal/config"
	"stocks-watcher/internal/market"
	"stocks-watcher/internal/pricecache"
	"stocks-watcher/internal/proximity"
	"stocks-watcher/internal/scheduler"
	"stocks-watcher/internal/storage"
)

// ErrCycleInProgress is returned when a tick is triggered while another is still running.
var ErrCycleInProgress = errors.New("watch cycle already in progress")

// StatusMessage is the payload pushed to subscribers after each cycle.
type StatusMessage struct {
	Type string           `json:"type"`
	Data []proximity.View `json:"data"`
}

// Info summarises scheduler timing and aggregate market state.
type Info struct {
	LastUpdate           *time.Time               `json:"last_update"`
	NextUpdate           time.Time                `json:"next_update"`
	CheckIntervalMinutes int                      `json:"check_interval_minutes"`
	MarketStatus         market.Status            `json:"market_status"`
	Markets              map[string]market.Status `json:"markets"`
}

// Publisher fans a message out to live subscribers.
type Publisher interface {
	Broadcast(ctx context.Context, v any) error
}

// Service orchestrates price refresh, proximity evaluation, alerting and broadcast.
type Service struct {
	scheduler *scheduler.Scheduler
	watches   storage.WatchStore
	prices    *pricecache.Cache
	engine    proximity.Engine
	deduper   *alerting.Deduper
	hub       Publisher
	logger    zerolog.Logger

	interval     time.Duration
	workers      int
	skipWeekends bool
	locker       storage.AdvisoryLocker
	lockKey      int64
	now          func() time.Time

	cycle sync.Mutex

	mu         sync.RWMutex
	lastUpdate time.Time
}

// New constructs the watch service.
func New(cfg *config.Config, sched *scheduler.Scheduler, watches storage.WatchStore, prices *pricecache.Cache, notifier alerting.Notifier, hub Publisher, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := watches.(storage.AdvisoryLocker); ok {
		locker = l
	}

	workers := cfg.Scheduler.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Service{
		scheduler:    sched,
		watches:      watches,
		prices:       prices,
		engine:       proximity.NewEngine(cfg.Alerting.NearLevelPct),
		deduper:      alerting.NewDeduper(notifier, watches, logger),
		hub:          hub,
		logger:       logger.With().Str("component", "service").Logger(),
		interval:     cfg.Scheduler.Interval(),
		workers:      workers,
		skipWeekends: cfg.Scheduler.SkipWeekends,
		locker:       locker,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run begins the periodic watch loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	err := s.scheduler.Run(ctx, s.Tick)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick 执行一次完整的巡检周期。
func (s *Service) Tick(ctx context.Context, bucket time.Time) error {
	if !s.cycle.TryLock() {
		s.logger.Warn().Time("bucket", bucket).Msg("skip tick because previous cycle still running")
		return ErrCycleInProgress
	}
	defer s.cycle.Unlock()

	if s.skipWeekends && isWeekend(s.now()) {
		s.logger.Info().Time("bucket", bucket).Msg("skipping tick on weekend")
		return nil
	}

	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeCycle(ctx, bucket)
}

func (s *Service) executeCycle(ctx context.Context, bucket time.Time) error {
	all, err := s.watches.ListWatches(ctx)
	if err != nil {
		return fmt.Errorf("list watches: %w", err)
	}

	enabled := make([]storage.Watch, 0, len(all))
	for _, w := range all {
		if w.Enabled {
			enabled = append(enabled, w)
		}
	}
	s.logger.Info().Time("bucket", bucket).Int("watches", len(enabled)).Msg("tick started")

	views := make([]*proximity.View, len(enabled))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, w := range enabled {
		g.Go(func() error {
			view, err := s.processWatch(ctx, w)
			if err != nil {
				s.logger.Error().Err(err).Str("ticker", w.Ticker).Msg("failed to process watch")
				return nil
			}
			views[i] = &view
			return nil
		})
	}
	_ = g.Wait()

	pushed := make([]proximity.View, 0, len(views))
	for _, v := range views {
		if v != nil {
			pushed = append(pushed, *v)
		}
	}

	s.setLastUpdate(s.now())

	if s.hub != nil && len(pushed) > 0 {
		if err := s.hub.Broadcast(ctx, StatusMessage{Type: "status", Data: pushed}); err != nil {
			s.logger.Error().Err(err).Msg("failed to broadcast statuses")
		} else {
			s.logger.Info().Int("statuses", len(pushed)).Msg("broadcasted statuses")
		}
	}

	s.logger.Info().Time("bucket", bucket).
		Int("refreshed", len(pushed)).
		Int("failed", len(enabled)-len(pushed)).
		Msg("tick complete")
	return nil
}

func (s *Service) processWatch(ctx context.Context, w storage.Watch) (proximity.View, error) {
	snap, err := s.prices.Refresh(ctx, w.Ticker)
	if err != nil {
		return proximity.View{}, err
	}

	view, err := s.engine.Evaluate(w.Ticker, quoteOf(snap), w.Levels)
	if err != nil {
		return proximity.View{}, err
	}

	outcome, err := s.deduper.Process(ctx, w, view)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", w.Ticker).Str("outcome", string(outcome)).Msg("failed to persist alert state")
	}
	return view, nil
}

// Statuses evaluates every watch against its cached price, refreshing when
// force is set or nothing is cached. Failing tickers are omitted.
func (s *Service) Statuses(ctx context.Context, force bool) ([]proximity.View, error) {
	all, err := s.watches.ListWatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watches: %w", err)
	}

	out := make([]proximity.View, 0, len(all))
	fetchedAny := false
	for _, w := range all {
		snap, fetched, err := s.prices.GetOrRefresh(ctx, w.Ticker, force)
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", w.Ticker).Msg("failed to load price")
			continue
		}
		fetchedAny = fetchedAny || fetched

		view, err := s.engine.Evaluate(w.Ticker, quoteOf(snap), w.Levels)
		if err != nil {
			s.logger.Error().Err(err).Str("ticker", w.Ticker).Msg("failed to evaluate levels")
			continue
		}
		out = append(out, view)
	}

	if fetchedAny {
		s.setLastUpdate(s.now())
	}
	return out, nil
}

// Info reports timing and the aggregate market state across cached prices.
func (s *Service) Info(ctx context.Context) (Info, error) {
	all, err := s.watches.ListWatches(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("list watches: %w", err)
	}

	observations := make([]market.Observation, 0, len(all))
	for _, w := range all {
		snap, err := s.prices.Get(ctx, w.Ticker)
		if err != nil {
			s.logger.Warn().Err(err).Str("ticker", w.Ticker).Msg("failed to read cached price")
			continue
		}
		if snap == nil || snap.Timezone == "" {
			continue
		}
		observations = append(observations, market.Observation{
			Exchange:    snap.Exchange,
			Timezone:    snap.Timezone,
			MarketState: snap.MarketState,
		})
	}

	now := s.now()
	summary := market.Aggregate(observations, now)
	info := Info{
		NextUpdate:           s.NextUpdate(),
		CheckIntervalMinutes: int(s.interval / time.Minute),
		MarketStatus:         summary.Overall,
		Markets:              summary.Markets,
	}
	if last := s.LastUpdate(); !last.IsZero() {
		info.LastUpdate = &last
	}
	return info, nil
}

// LastUpdate returns the completion time of the most recent cycle, zero if none.
func (s *Service) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// NextUpdate returns the planned time of the next cycle.
func (s *Service) NextUpdate() time.Time {
	if s.scheduler != nil {
		if next := s.scheduler.Next(); !next.IsZero() {
			return next
		}
	}
	if last := s.LastUpdate(); !last.IsZero() {
		return last.Add(s.interval)
	}
	return s.now().Add(s.interval)
}

func (s *Service) setLastUpdate(t time.Time) {
	s.mu.Lock()
	s.lastUpdate = t
	s.mu.Unlock()
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

func quoteOf(snap storage.PriceSnapshot) proximity.Quote {
	return proximity.Quote{Price: snap.Price, Currency: snap.Currency, OpenPrice: snap.OpenPrice}
}

func isWeekend(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
