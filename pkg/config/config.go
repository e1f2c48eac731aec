// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for structured environment overrides,
// e.g. STOCKNEWS_STORE_BACKEND.
const EnvPrefix = "STOCKNEWS"

// Config represents the complete application configuration.
type Config struct {
	Environment string          `mapstructure:"environment" yaml:"environment"`
	Debug       bool            `mapstructure:"debug"       yaml:"debug"`
	Store       StoreConfig     `mapstructure:"store"       yaml:"store"`
	Ingest      IngestConfig    `mapstructure:"ingest"      yaml:"ingest"`
	Scheduler   SchedulerConfig `mapstructure:"scheduler"   yaml:"scheduler"`
	AI          AIConfig        `mapstructure:"ai"          yaml:"ai"`
	Alerts      AlertsConfig    `mapstructure:"alerts"      yaml:"alerts"`
	API         APIConfig       `mapstructure:"api"         yaml:"api"`
	Logging     LoggingConfig   `mapstructure:"logging"     yaml:"logging"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"  yaml:"backend"` // "supabase", "postgres", "mongo"
	Supabase SupabaseConfig `mapstructure:"supabase" yaml:"supabase"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"    yaml:"mongo"`
	Pool     PoolConfig     `mapstructure:"pool"     yaml:"pool"`
}

type SupabaseConfig struct {
	URL              string        `mapstructure:"url"               yaml:"url"`
	Key              string        `mapstructure:"key"               yaml:"key"`
	ServiceKey       string        `mapstructure:"service_key"       yaml:"service_key"`
	Password         string        `mapstructure:"password"          yaml:"password"`
	ConnectionString string        `mapstructure:"connection_string" yaml:"connection_string"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"      yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

// PoolConfig holds database/sql pool knobs for the SQL backends.
type PoolConfig struct {
	MaxOpenConns int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxIdle  time.Duration `mapstructure:"conn_max_idle"  yaml:"conn_max_idle"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"  yaml:"conn_max_life"`
}

// IngestConfig tunes the source adapters and the orchestrator.
type IngestConfig struct {
	MarketSymbols   []string      `mapstructure:"market_symbols"    yaml:"market_symbols"`
	MarketPerSymbol int           `mapstructure:"market_per_symbol" yaml:"market_per_symbol"`
	MarketPause     time.Duration `mapstructure:"market_pause"      yaml:"market_pause"`
	YahooLimit      int           `mapstructure:"yahoo_limit"       yaml:"yahoo_limit"`
	YahooBaseURL    string        `mapstructure:"yahoo_base_url"    yaml:"yahoo_base_url"`
	GoogleLimit     int           `mapstructure:"google_limit"      yaml:"google_limit"`
	GoogleBaseURL   string        `mapstructure:"google_base_url"   yaml:"google_base_url"`
	StockPause      time.Duration `mapstructure:"stock_pause"       yaml:"stock_pause"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout"     yaml:"store_timeout"`
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"      yaml:"http_timeout"`
}

type SchedulerConfig struct {
	Cron       string `mapstructure:"cron"         yaml:"cron"`
	Timezone   string `mapstructure:"timezone"     yaml:"timezone"`
	RunOnStart bool   `mapstructure:"run_on_start" yaml:"run_on_start"`
}

// AIConfig configures the Gemini collaborator. An empty key disables it.
type AIConfig struct {
	GeminiKey string        `mapstructure:"gemini_key" yaml:"gemini_key"`
	Model     string        `mapstructure:"model"      yaml:"model"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
}

type AlertsConfig struct {
	Enabled  bool           `mapstructure:"enabled"   yaml:"enabled"`
	MinScore int            `mapstructure:"min_score" yaml:"min_score"`
	Telegram TelegramConfig `mapstructure:"telegram"  yaml:"telegram"`
	Email    EmailConfig    `mapstructure:"email"     yaml:"email"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   yaml:"chat_id"`
	BaseURL  string `mapstructure:"base_url"  yaml:"base_url"`
}

// EmailConfig holds SMTP settings. An empty server disables email alerts.
type EmailConfig struct {
	SMTPServer string `mapstructure:"smtp_server" yaml:"smtp_server"`
	SMTPPort   int    `mapstructure:"smtp_port"   yaml:"smtp_port"`
	SMTPUser   string `mapstructure:"smtp_user"   yaml:"smtp_user"`
	SMTPPass   string `mapstructure:"smtp_pass"   yaml:"smtp_pass"`
	From       string `mapstructure:"from"        yaml:"from"`
	To         string `mapstructure:"to"          yaml:"to"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns host:port.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration. An empty path searches for config.yaml in
// ./config and $HOME/.stocknews; a missing file is not an error. An explicit
// path must exist.
//
// Precedence, lowest first: defaults, config file, STOCKNEWS_* variables,
// then the plain deployment variables (SUPABASE_URL, GEMINI_API_KEY, ...).
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(filepath.Join(homeDir(), ".stocknews"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Store.Backend) {
	case "supabase", "postgres", "mongo":
	default:
		return fmt.Errorf("invalid store.backend %q: want supabase, postgres or mongo", c.Store.Backend)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api.port %d", c.API.Port)
	}
	if c.Alerts.MinScore < 1 || c.Alerts.MinScore > 5 {
		return fmt.Errorf("invalid alerts.min_score %d: must be between 1 and 5", c.Alerts.MinScore)
	}
	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("invalid scheduler.timezone: %w", err)
		}
	}
	return nil
}

// Location returns the scheduler time zone, UTC when unset.
func (c *Config) Location() *time.Location {
	if c.Scheduler.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Masked returns a copy with every secret replaced by a fixed marker.
func (c Config) Masked() Config {
	c.Store.Supabase.Key = mask(c.Store.Supabase.Key)
	c.Store.Supabase.ServiceKey = mask(c.Store.Supabase.ServiceKey)
	c.Store.Supabase.Password = mask(c.Store.Supabase.Password)
	c.Store.Supabase.ConnectionString = mask(c.Store.Supabase.ConnectionString)
	c.Store.Postgres.DSN = mask(c.Store.Postgres.DSN)
	c.Store.Mongo.URI = mask(c.Store.Mongo.URI)
	c.AI.GeminiKey = mask(c.AI.GeminiKey)
	c.Alerts.Telegram.BotToken = mask(c.Alerts.Telegram.BotToken)
	c.Alerts.Email.SMTPPass = mask(c.Alerts.Email.SMTPPass)
	return c
}

// YAML renders the masked configuration.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c.Masked())
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("debug", false)

	// Store defaults
	v.SetDefault("store.backend", "supabase")
	v.SetDefault("store.supabase.request_timeout", 10*time.Second)
	v.SetDefault("store.mongo.database", "stocknews")
	v.SetDefault("store.pool.max_open_conns", 10)
	v.SetDefault("store.pool.max_idle_conns", 5)
	v.SetDefault("store.pool.conn_max_idle", 5*time.Minute)
	v.SetDefault("store.pool.conn_max_life", 30*time.Minute)

	// Ingest defaults
	v.SetDefault("ingest.market_symbols", []string{"^GSPC", "^IXIC", "^DJI"})
	v.SetDefault("ingest.market_per_symbol", 3)
	v.SetDefault("ingest.market_pause", time.Second)
	v.SetDefault("ingest.yahoo_limit", 5)
	v.SetDefault("ingest.yahoo_base_url", "https://query1.finance.yahoo.com/v1/finance/search")
	v.SetDefault("ingest.google_limit", 5)
	v.SetDefault("ingest.google_base_url", "https://news.google.com/rss/search")
	v.SetDefault("ingest.stock_pause", 2*time.Second)
	v.SetDefault("ingest.store_timeout", 10*time.Second)
	v.SetDefault("ingest.http_timeout", 10*time.Second)

	// Scheduler defaults
	v.SetDefault("scheduler.cron", "0 * * * *")
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.run_on_start", true)

	// AI defaults
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", 30*time.Second)

	// Alert defaults
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.min_score", 5)
	v.SetDefault("alerts.telegram.base_url", "https://api.telegram.org")
	v.SetDefault("alerts.email.smtp_port", 587)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv applies the unprefixed variable names used by existing
// deployments.
func overrideFromEnv(cfg *Config) {
	setString(&cfg.Store.Supabase.URL, "SUPABASE_URL")
	setString(&cfg.Store.Supabase.Key, "SUPABASE_KEY")
	setString(&cfg.Store.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&cfg.Store.Postgres.DSN, "DATABASE_URL")
	setString(&cfg.Store.Mongo.URI, "MONGO_URI")
	setString(&cfg.AI.GeminiKey, "GEMINI_API_KEY")
	setString(&cfg.Alerts.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.Alerts.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&cfg.Environment, "ENVIRONMENT")

	if raw := os.Getenv("DEBUG"); raw != "" {
		if debug, err := strconv.ParseBool(raw); err == nil {
			cfg.Debug = debug
		}
	}
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is ignored.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
