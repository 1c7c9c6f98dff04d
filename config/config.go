package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research assistant
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	LogLevel string `mapstructure:"log_level"`
}

// LLMConfig selects the completion backend and the model used by every stage
type LLMConfig struct {
	Provider string        `mapstructure:"provider"` // groq or openai
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig controls the circuit breaker around the completion backend
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return errors.New("llm.model is required")
	}
	switch strings.ToLower(l.Provider) {
	case "groq", "openai":
	default:
		return fmt.Errorf("llm.provider must be groq or openai, got %q", l.Provider)
	}
	return nil
}

// SearchConfig selects the web search backend
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // tavily, serper, brave or stub
	TavilyAPIKey string        `mapstructure:"tavily_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	Depth        string        `mapstructure:"depth"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Pause        time.Duration `mapstructure:"pause"`
}

// APIKey returns the key of the selected provider.
func (s SearchConfig) APIKey() string {
	switch strings.ToLower(s.Provider) {
	case "tavily":
		return s.TavilyAPIKey
	case "serper":
		return s.SerperAPIKey
	case "brave":
		return s.BraveAPIKey
	}
	return ""
}

// Normalize falls back to the stub provider when the selected one has no key.
func (s SearchConfig) Normalize() SearchConfig {
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" || (s.Provider != "stub" && strings.TrimSpace(s.APIKey()) == "") {
		s.Provider = "stub"
	}
	if s.MaxResults <= 0 {
		s.MaxResults = 10
	}
	if s.Depth == "" {
		s.Depth = "advanced"
	}
	return s
}

// FetchConfig controls direct page fetching
type FetchConfig struct {
	Mode        string        `mapstructure:"mode"` // http or chromedp
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxWords    int           `mapstructure:"max_words"`
	Concurrency int           `mapstructure:"concurrency"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

func (f FetchConfig) Validate() error {
	if f.MaxDelay < f.MinDelay {
		return errors.New("fetch.max_delay must be >= fetch.min_delay")
	}
	switch f.Mode {
	case "http", "chromedp":
	default:
		return fmt.Errorf("fetch.mode must be http or chromedp, got %q", f.Mode)
	}
	return nil
}

// ModeLimits are the sub-query and source counts of one operating mode
type ModeLimits struct {
	SubQueries int `mapstructure:"sub_queries"`
	Sources    int `mapstructure:"sources"`
}

// PipelineConfig holds per-mode limits
type PipelineConfig struct {
	Normal        ModeLimits `mapstructure:"normal"`
	Deep          ModeLimits `mapstructure:"deep"`
	ContextWindow int        `mapstructure:"context_window"`
}

// SessionConfig selects the conversation store
type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
}

// StorageConfig holds connection settings for external stores
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the connection string, building it from parts when no URL is set.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", errors.New("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port, ssl := p.Port, p.SSLMode
	if port == "" {
		port = "5432"
	}
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// DocumentsConfig controls the research document log
type DocumentsConfig struct {
	Backend     string        `mapstructure:"backend"` // file or postgres
	Folder      string        `mapstructure:"folder"`
	Retention   time.Duration `mapstructure:"retention"`
	CleanupCron string        `mapstructure:"cleanup_cron"`
}

func (d DocumentsConfig) Validate() error {
	switch d.Backend {
	case "file":
		if strings.TrimSpace(d.Folder) == "" {
			return errors.New("documents.folder is required for the file backend")
		}
	case "postgres":
	default:
		return fmt.Errorf("documents.backend must be file or postgres, got %q", d.Backend)
	}
	if d.CleanupCron != "" && d.Retention <= 0 {
		return errors.New("documents.retention must be > 0 when cleanup_cron is set")
	}
	return nil
}

// TelemetryConfig contains tracing settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Validate aggregates the section validators.
func (c Config) Validate() error {
	var errs []error
	if err := c.LLM.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Fetch.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Documents.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Pipeline.Normal.SubQueries <= 0 || c.Pipeline.Deep.SubQueries <= 0 {
		errs = append(errs, errors.New("pipeline sub_queries must be > 0"))
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.listen", ":8080")
	v.SetDefault("general.log_level", "info")

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.breaker.enabled", true)
	v.SetDefault("llm.breaker.failure_threshold", 5)
	v.SetDefault("llm.breaker.open_timeout", 30*time.Second)

	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.tavily_api_key", "")
	v.SetDefault("search.serper_api_key", "")
	v.SetDefault("search.brave_api_key", "")
	v.SetDefault("search.depth", "advanced")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.pause", 500*time.Millisecond)

	v.SetDefault("fetch.mode", "http")
	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.max_words", 3000)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.min_delay", 300*time.Millisecond)
	v.SetDefault("fetch.max_delay", 800*time.Millisecond)

	v.SetDefault("pipeline.normal.sub_queries", 3)
	v.SetDefault("pipeline.normal.sources", 5)
	v.SetDefault("pipeline.deep.sub_queries", 5)
	v.SetDefault("pipeline.deep.sources", 8)
	v.SetDefault("pipeline.context_window", 10)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 24*time.Hour)

	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.postgres.url", "")
	v.SetDefault("storage.postgres.host", "")
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.user", "")
	v.SetDefault("storage.postgres.password", "")
	v.SetDefault("storage.postgres.dbname", "")
	v.SetDefault("storage.postgres.sslmode", "disable")

	v.SetDefault("documents.backend", "file")
	v.SetDefault("documents.folder", "./documents")
	v.SetDefault("documents.retention", 30*24*time.Hour)
	v.SetDefault("documents.cleanup_cron", "@hourly")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "researchbot")
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
}

// LoadConfig reads config.json from path (or ./config and .), overlays
// RESEARCHBOT_* environment variables and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("RESEARCHBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Search = cfg.Search.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
