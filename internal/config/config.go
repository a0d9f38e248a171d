package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"stocks-watcher/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig enables the optional Redis-backed price cache.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SchedulerConfig governs the tick cadence.
type SchedulerConfig struct {
	CheckIntervalMinutes int           `mapstructure:"check_interval_minutes"`
	AlignToBucket        bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey      int64         `mapstructure:"advisory_lock_key"`
	StartupDelay         time.Duration `mapstructure:"startup_delay"`
	Workers              int           `mapstructure:"workers"`
	SkipWeekends         bool          `mapstructure:"skip_weekends"`
	RunOnStart           bool          `mapstructure:"run_on_start"`
}

// Interval returns the configured check interval as a duration.
func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.CheckIntervalMinutes) * time.Minute
}

// ProviderConfig captures market-data provider connectivity.
type ProviderConfig struct {
	BaseURL        string            `mapstructure:"base_url"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout"`
	UserAgent      string            `mapstructure:"user_agent"`
	TickerMap      map[string]string `mapstructure:"ticker_map"`
}

// AlertingConfig defines proximity threshold and routing.
type AlertingConfig struct {
	NearLevelPct float64        `mapstructure:"near_level_pct"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BotToken  string        `mapstructure:"bot_token"`
	ChatID    string        `mapstructure:"chat_id"`
	APIBase   string        `mapstructure:"api_base"`
	ParseMode string        `mapstructure:"parse_mode"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// HTTPConfig configures the public API and websocket endpoint.
type HTTPConfig struct {
	Addr             string        `mapstructure:"addr"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	BroadcastTimeout time.Duration `mapstructure:"broadcast_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKSWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// viper lower-cases map keys; tickers are upper-case identities.
	cfg.Provider.TickerMap = normalizeTickerMap(cfg.Provider.TickerMap)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockswatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "stockswatcher:price:")

	v.SetDefault("scheduler.check_interval_minutes", 5)
	v.SetDefault("scheduler.align_to_bucket", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x73747763))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.skip_weekends", true)
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("provider.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.request_timeout", "10s")
	v.SetDefault("provider.user_agent", "Mozilla/5.0 (compatible; stockswatcher/1.0)")
	v.SetDefault("provider.ticker_map", map[string]string{
		"TXN":  "TXN",
		"INTC": "INTC",
		"STM":  "STMMI.MI",
		"ENI":  "ENI.MI",
		"ENEL": "ENEL.MI",
	})

	v.SetDefault("alerting.near_level_pct", 0.005)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.parse_mode", "HTML")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:5273", "http://localhost:5183"})
	v.SetDefault("http.broadcast_timeout", "5s")
	v.SetDefault("http.shutdown_timeout", "10s")

	v.SetDefault("export.max_rows", 1000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func normalizeTickerMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for alias, symbol := range in {
		alias = strings.ToUpper(strings.TrimSpace(alias))
		symbol = strings.TrimSpace(symbol)
		if alias == "" || symbol == "" {
			continue
		}
		out[alias] = symbol
	}
	return out
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.CheckIntervalMinutes <= 0 {
		return fmt.Errorf("scheduler.check_interval_minutes must be greater than zero")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be greater than zero")
	}
	if c.Alerting.NearLevelPct <= 0 {
		return fmt.Errorf("alerting.near_level_pct must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	if c.HTTP.BroadcastTimeout <= 0 {
		return fmt.Errorf("http.broadcast_timeout must be greater than zero")
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}
