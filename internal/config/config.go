package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/hectronix2005/Mejor-Inversion/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Server    ServerConfig    `mapstructure:"server"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
	Sources   []Source        `mapstructure:"sources"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// StorageConfig selects and tunes snapshot persistence. A configured DSN
// routes snapshots to PostgreSQL; otherwise DataDir holds JSON files.
type StorageConfig struct {
	DSN             string        `mapstructure:"dsn"`
	DataDir         string        `mapstructure:"data_dir"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ScraperConfig governs a single orchestrator run.
type ScraperConfig struct {
	RunBudget      time.Duration `mapstructure:"run_budget"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	FetchGrace     time.Duration `mapstructure:"fetch_grace"`
	RateCeilingPct float64       `mapstructure:"rate_ceiling_pct"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	TopN           int           `mapstructure:"top_n"`
}

// SchedulerConfig governs periodic runs.
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AlertingConfig defines run-failure alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Source declares one scrape target. FetchStrategy selects the adapter
// variant: "direct", "rendered", or "derived".
type Source struct {
	EntityID        string        `mapstructure:"entity_id"`
	DisplayName     string        `mapstructure:"display_name"`
	ProductType     string        `mapstructure:"product_type"`
	FetchStrategy   string        `mapstructure:"fetch_strategy"`
	SourceURL       string        `mapstructure:"source_url"`
	TermDays        []int         `mapstructure:"term_days"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Extract         string        `mapstructure:"extract"`
	RatePattern     string        `mapstructure:"rate_pattern"`
	RenderWait      time.Duration `mapstructure:"render_wait"`
	MonthlyYieldPct float64       `mapstructure:"monthly_yield_pct"`
	AnnualRatePct   float64       `mapstructure:"annual_rate_pct"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEJORINVERSION")
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

	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}

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
	v.SetDefault("app.name", "mejorinversion")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("storage.max_open_conns", 10)
	v.SetDefault("storage.max_idle_conns", 5)
	v.SetDefault("storage.conn_max_lifetime", "30m")

	v.SetDefault("scraper.run_budget", "2m")
	v.SetDefault("scraper.max_concurrent", 5)
	v.SetDefault("scraper.fetch_grace", "5s")
	v.SetDefault("scraper.rate_ceiling_pct", 100.0)
	v.SetDefault("scraper.default_timeout", "30s")
	v.SetDefault("scraper.user_agent", "mejorinversion/1.0")
	v.SetDefault("scraper.top_n", 10)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "6h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
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

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scraper.RunBudget <= 0 {
		return fmt.Errorf("scraper.run_budget must be greater than zero")
	}
	if c.Scraper.MaxConcurrent <= 0 {
		return fmt.Errorf("scraper.max_concurrent must be greater than zero")
	}
	if c.Scraper.RateCeilingPct <= 0 {
		return fmt.Errorf("scraper.rate_ceiling_pct must be greater than zero")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	for _, src := range c.Sources {
		if src.EntityID == "" {
			return fmt.Errorf("sources: entity_id is required")
		}
		if src.FetchStrategy == "" {
			return fmt.Errorf("sources: %s: fetch_strategy is required", src.EntityID)
		}
		for _, term := range src.TermDays {
			if term < 0 {
				return fmt.Errorf("sources: %s: term_days must not be negative", src.EntityID)
			}
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
