package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stocks-watcher/internal/alerting"
	"stocks-watcher/internal/broadcast"
	"stocks-watcher/internal/config"
	"stocks-watcher/internal/fetcher"
	"stocks-watcher/internal/httpapi"
	"stocks-watcher/internal/logging"
	"stocks-watcher/internal/pricecache"
	"stocks-watcher/internal/scheduler"
	"stocks-watcher/internal/service"
	"stocks-watcher/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Stdout receives command output; os.Stdout when nil.
	Stdout io.Writer
}

func (a *App) stdout() io.Writer {
	if a.Stdout == nil {
		return os.Stdout
	}
	return a.Stdout
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

// stores groups the repositories a command works against.
type stores struct {
	watches storage.WatchStore
	prices  storage.PriceStore
	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (a *App) newFetcher() *fetcher.Yahoo {
	return fetcher.NewYahoo(fetcher.YahooOptions{
		BaseURL:   a.Config.Provider.BaseURL,
		Timeout:   a.Config.Provider.RequestTimeout,
		UserAgent: a.Config.Provider.UserAgent,
		TickerMap: a.Config.Provider.TickerMap,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting.Telegram
	if !cfg.Enabled {
		a.Logger.Warn().Msg("telegram disabled; alerts are logged only")
		return alerting.NewLogNotifier(a.Logger)
	}
	return alerting.NewTelegramNotifier(alerting.TelegramOptions{
		Enabled:   cfg.Enabled,
		BotToken:  cfg.BotToken,
		ChatID:    cfg.ChatID,
		BaseURL:   cfg.APIBase,
		ParseMode: cfg.ParseMode,
		Timeout:   cfg.Timeout,
	}, a.Logger)
}

// openStores wires Postgres when a DSN is configured, falling back to memory,
// and moves the price cache to Redis when an address is configured.
func (a *App) openStores(ctx context.Context) (*stores, error) {
	out := &stores{}

	if a.Config.Database.DSN == "" {
		a.Logger.Warn().Msg("database.dsn not configured; watches are kept in memory")
		mem := storage.NewMemoryStore()
		out.watches, out.prices = mem, mem
	} else {
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		store := storage.NewStore(pool)
		out.closers = append(out.closers, store.Close)
		if a.Config.Database.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				out.Close()
				return nil, err
			}
		}
		out.watches, out.prices = store, store
	}

	if a.Config.Redis.Addr != "" {
		prices, err := storage.NewRedisPriceStore(ctx, a.Config.Redis)
		if err != nil {
			out.Close()
			return nil, err
		}
		out.closers = append(out.closers, func() { _ = prices.Close() })
		out.prices = prices
		a.Logger.Info().Str("addr", a.Config.Redis.Addr).Msg("price cache backed by redis")
	}

	return out, nil
}

func (a *App) newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval(),
		AlignToStart:   a.Config.Scheduler.AlignToBucket,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
		RunImmediately: a.Config.Scheduler.RunOnStart,
	}, a.Logger)
}

// Run executes the long-running watcher with its HTTP API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	quotes := a.newFetcher()
	cache := pricecache.New(st.prices, quotes, a.Logger)
	hub := broadcast.NewHub(a.Config.HTTP.BroadcastTimeout, a.Logger)
	svc := service.New(a.Config, a.newScheduler(), st.watches, cache, a.newNotifier(), hub, a.Logger)

	router := httpapi.NewRouter(httpapi.Deps{
		Watches:        st.watches,
		Validator:      quotes,
		History:        quotes,
		Status:         svc,
		Hub:            hub,
		AllowedOrigins: a.Config.HTTP.AllowedOrigins,
		BaseContext:    ctx,
		Debug:          strings.EqualFold(a.Config.App.Environment, "dev"),
	}, a.Logger)

	srv := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.Logger.Info().Int("interval_minutes", a.Config.Scheduler.CheckIntervalMinutes).Msg("starting watch loop")
		return svc.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.Config.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher stopped")
	return nil
}

// TickOptions configure a one-off watch cycle.
type TickOptions struct {
	IgnoreWeekend bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Refresh bool
}

// ExportOptions configure the status export.
type ExportOptions struct {
	Refresh bool
	CSVPath string
	PNGPath string
	MaxRows int
}

// SimulateOptions configure a simulated alert.
type SimulateOptions struct {
	Ticker string
	Price  float64
	Levels []float64
}
