package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrStorage wraps every repository read or write failure.
	ErrStorage = errors.New("storage error")
)

//go:embed schema.sql
var schemaSQL string

const (
	upsertWatchSQL = `INSERT INTO watches (
        ticker,
        levels,
        enabled,
        last_alert_hash,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,now()
    )
    ON CONFLICT (ticker) DO UPDATE
    SET
        levels          = EXCLUDED.levels,
        enabled         = EXCLUDED.enabled,
        last_alert_hash = EXCLUDED.last_alert_hash,
        updated_at      = EXCLUDED.updated_at
    RETURNING ticker, levels, enabled, last_alert_hash, updated_at;`

	listWatchesSQL = `SELECT
        ticker,
        levels,
        enabled,
        last_alert_hash,
        updated_at
    FROM watches
    ORDER BY ticker;`

	getWatchSQL = `SELECT
        ticker,
        levels,
        enabled,
        last_alert_hash,
        updated_at
    FROM watches
    WHERE ticker = $1;`

	deleteWatchSQL = `DELETE FROM watches WHERE ticker = $1;`

	updateAlertHashSQL = `UPDATE watches
    SET last_alert_hash = $2, updated_at = now()
    WHERE ticker = $1;`

	upsertPriceSQL = `INSERT INTO price_cache (
        ticker,
        price,
        asof,
        currency,
        exchange,
        timezone,
        market_state,
        open_price,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,now()
    )
    ON CONFLICT (ticker) DO UPDATE
    SET
        price        = EXCLUDED.price,
        asof         = EXCLUDED.asof,
        currency     = EXCLUDED.currency,
        exchange     = EXCLUDED.exchange,
        timezone     = EXCLUDED.timezone,
        market_state = EXCLUDED.market_state,
        open_price   = EXCLUDED.open_price,
        updated_at   = EXCLUDED.updated_at;`

	getPriceSQL = `SELECT
        ticker,
        price::text,
        asof,
        currency,
        exchange,
        timezone,
        market_state,
        open_price::text
    FROM price_cache
    WHERE ticker = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// WatchStore persists watch definitions.
type WatchStore interface {
	ListWatches(ctx context.Context) ([]Watch, error)
	GetWatch(ctx context.Context, ticker string) (*Watch, error)
	UpsertWatch(ctx context.Context, watch Watch) (Watch, error)
	DeleteWatch(ctx context.Context, ticker string) (bool, error)
	UpdateAlertHash(ctx context.Context, ticker string, hash *string) error
}

// PriceStore persists the last known quote per ticker.
type PriceStore interface {
	GetPrice(ctx context.Context, ticker string) (*PriceSnapshot, error)
	SetPrice(ctx context.Context, snapshot PriceSnapshot) error
}

// Repository is the full keyed store used by the monitoring core.
type Repository interface {
	WatchStore
	PriceStore
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL repository for watches and the price cache.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: migrate schema: %w", ErrStorage, err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock is session-scoped and dies with the connection anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// ListWatches returns every watch ordered by ticker.
func (s *Store) ListWatches(ctx context.Context) ([]Watch, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listWatchesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("%w: list watches: %w", ErrStorage, queryErr)
	}
	defer rows.Close()

	watches := make([]Watch, 0)
	for rows.Next() {
		watch, scanErr := scanWatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: scan watch: %w", ErrStorage, scanErr)
		}
		watches = append(watches, watch)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%w: list watches: %w", ErrStorage, rows.Err())
	}
	return watches, nil
}

// GetWatch returns a single watch, or nil when it does not exist.
func (s *Store) GetWatch(ctx context.Context, ticker string) (*Watch, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	watch, scanErr := scanWatch(pool.QueryRow(ctx, getWatchSQL, ticker))
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		return nil, fmt.Errorf("%w: get watch %s: %w", ErrStorage, ticker, scanErr)
	}
	return &watch, nil
}

// UpsertWatch inserts or replaces a watch keyed by ticker.
func (s *Store) UpsertWatch(ctx context.Context, watch Watch) (Watch, error) {
	pool, err := s.getPool()
	if err != nil {
		return Watch{}, err
	}

	levels := watch.Levels
	if levels == nil {
		levels = []float64{}
	}

	saved, scanErr := scanWatch(pool.QueryRow(ctx, upsertWatchSQL,
		watch.Ticker,
		levels,
		watch.Enabled,
		watch.LastAlertHash,
	))
	if scanErr != nil {
		return Watch{}, fmt.Errorf("%w: upsert watch %s: %w", ErrStorage, watch.Ticker, scanErr)
	}
	return saved, nil
}

// DeleteWatch removes a watch and reports whether it existed.
func (s *Store) DeleteWatch(ctx context.Context, ticker string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteWatchSQL, ticker)
	if execErr != nil {
		return false, fmt.Errorf("%w: delete watch %s: %w", ErrStorage, ticker, execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// UpdateAlertHash sets or clears (nil) the last alert digest of a watch.
func (s *Store) UpdateAlertHash(ctx context.Context, ticker string, hash *string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, updateAlertHashSQL, ticker, hash); execErr != nil {
		return fmt.Errorf("%w: update alert hash %s: %w", ErrStorage, ticker, execErr)
	}
	return nil
}

// SetPrice upserts the cached quote for a ticker.
func (s *Store) SetPrice(ctx context.Context, snap PriceSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var marketState interface{}
	if snap.MarketState != "" {
		marketState = snap.MarketState
	}

	var open interface{}
	if snap.OpenPrice != nil {
		open = decimal.NewFromFloat(*snap.OpenPrice).String()
	}

	_, execErr := pool.Exec(ctx, upsertPriceSQL,
		snap.Ticker,
		decimal.NewFromFloat(snap.Price).String(),
		snap.AsOf,
		snap.Currency,
		snap.Exchange,
		snap.Timezone,
		marketState,
		open,
	)
	if execErr != nil {
		return fmt.Errorf("%w: set price %s: %w", ErrStorage, snap.Ticker, execErr)
	}
	return nil
}

// GetPrice returns the cached quote, or nil when none is stored.
func (s *Store) GetPrice(ctx context.Context, ticker string) (*PriceSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		snap        PriceSnapshot
		priceStr    string
		marketState sql.NullString
		openStr     sql.NullString
	)
	scanErr := pool.QueryRow(ctx, getPriceSQL, ticker).Scan(
		&snap.Ticker,
		&priceStr,
		&snap.AsOf,
		&snap.Currency,
		&snap.Exchange,
		&snap.Timezone,
		&marketState,
		&openStr,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		return nil, fmt.Errorf("%w: get price %s: %w", ErrStorage, ticker, scanErr)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse price %s: %w", ErrStorage, ticker, err)
	}
	snap.Price = price.InexactFloat64()

	if marketState.Valid {
		snap.MarketState = marketState.String
	}
	if openStr.Valid {
		open, err := decimal.NewFromString(openStr.String)
		if err != nil {
			return nil, fmt.Errorf("%w: parse open price %s: %w", ErrStorage, ticker, err)
		}
		value := open.InexactFloat64()
		snap.OpenPrice = &value
	}

	return &snap, nil
}

func scanWatch(row pgx.Row) (Watch, error) {
	var (
		watch Watch
		hash  sql.NullString
	)
	if err := row.Scan(
		&watch.Ticker,
		&watch.Levels,
		&watch.Enabled,
		&hash,
		&watch.UpdatedAt,
	); err != nil {
		return Watch{}, err
	}
	if hash.Valid {
		value := hash.String
		watch.LastAlertHash = &value
	}
	return watch, nil
}

var (
	_ Repository     = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
