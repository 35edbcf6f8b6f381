package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const defaultConfigFile = "config/config.yml"

// Config keeps runtime settings for the bot.
type Config struct {
	Telegram Telegram `yaml:"telegram"`
	Store    Store    `yaml:"store"`
	Resolver Resolver `yaml:"resolver"`
	Redis    Redis    `yaml:"redis"`
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Stats    Stats    `yaml:"stats"`
	Metrics  Metrics  `yaml:"metrics"`
}

type Telegram struct {
	Token string `yaml:"token"`
	// PollTimeout is the long polling timeout passed to getUpdates.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	Debug       bool          `yaml:"debug"`
}

type Store struct {
	Backend     string `yaml:"backend"`
	UsersFile   string `yaml:"users_file"`
	DatabaseURL string `yaml:"database_url"`
	PoolSize    int    `yaml:"pool_size"`
}

type Resolver struct {
	APIURL           string        `yaml:"api_url"`
	UserAgent        string        `yaml:"user_agent"`
	Timeout          time.Duration `yaml:"timeout"`
	FallbackAudioURL string        `yaml:"fallback_audio_url"`
	DefaultTitle     string        `yaml:"default_title"`
}

// Redis enables the media cache when Addr is set.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"media_cache_ttl"`
}

type HTTP struct {
	Addr       string `yaml:"addr"`
	AdminToken string `yaml:"admin_token"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Stats schedules the usage report. DailyAt (HH:MM) wins over Interval.
type Stats struct {
	Interval time.Duration `yaml:"interval"`
	DailyAt  string        `yaml:"daily_at"`
}

type Metrics struct {
	Namespace string `yaml:"namespace"`
}

func defaultConfig() *Config {
	return &Config{
		Telegram: Telegram{
			PollTimeout: 60 * time.Second,
		},
		Store: Store{
			Backend:   "file",
			UsersFile: "users.json",
			PoolSize:  5,
		},
		Resolver: Resolver{
			APIURL:           "https://www.tikwm.com/api/",
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			Timeout:          30 * time.Second,
			FallbackAudioURL: "https://moosic.my.mail.ru/file/7aa9b68114dfa1a4581ce525a1e793b1.mp3",
			DefaultTitle:     "tiktok_video",
		},
		Redis: Redis{
			TTL: time.Hour,
		},
		HTTP: HTTP{
			Addr: ":8080",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Metrics: Metrics{
			Namespace: "tikfetch",
		},
	}
}

// Load reads .env, the optional YAML file and environment overrides, in that order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	path := getEnv("CONFIG_FILE", defaultConfigFile)
	if err := loadFromYAML(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Telegram.Token, "TELOXIDE_TOKEN")
	setString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	setString(&cfg.Store.Backend, "STORE_BACKEND")
	setString(&cfg.Store.UsersFile, "USERS_FILE")
	setString(&cfg.Store.DatabaseURL, "DATABASE_URL")
	setString(&cfg.Resolver.APIURL, "RESOLVER_API_URL")
	setString(&cfg.Resolver.UserAgent, "RESOLVER_USER_AGENT")
	setString(&cfg.Resolver.FallbackAudioURL, "RESOLVER_FALLBACK_AUDIO_URL")
	setString(&cfg.Resolver.DefaultTitle, "RESOLVER_DEFAULT_TITLE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.HTTP.Addr, "HTTP_ADDR")
	setString(&cfg.HTTP.AdminToken, "ADMIN_TOKEN")
	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Stats.DailyAt, "STATS_DAILY_AT")
	setString(&cfg.Metrics.Namespace, "METRICS_NAMESPACE")

	if err := setInt(&cfg.Store.PoolSize, "DB_POOL_SIZE"); err != nil {
		return err
	}
	if err := setInt(&cfg.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Telegram.PollTimeout, "TELEGRAM_POLL_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Resolver.Timeout, "RESOLVER_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Redis.TTL, "MEDIA_CACHE_TTL"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Stats.Interval, "STATS_INTERVAL"); err != nil {
		return err
	}
	if raw := getEnv("TELEGRAM_DEBUG", ""); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_DEBUG: %w", err)
		}
		cfg.Telegram.Debug = v
	}
	return nil
}

// Validate checks required settings and value ranges.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.UsersFile == "" {
			return fmt.Errorf("store.users_file is required for the file backend")
		}
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.PoolSize <= 0 {
		return fmt.Errorf("store.pool_size must be positive")
	}

	if c.Resolver.APIURL == "" {
		return fmt.Errorf("resolver.api_url is required")
	}
	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("resolver.timeout must not be negative")
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.media_cache_ttl must be positive")
	}
	if c.Stats.Interval < 0 {
		return fmt.Errorf("stats.interval must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func setString(dst *string, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

// setDuration accepts Go durations ("90s") or bare seconds ("90").
func setDuration(dst *time.Duration, key string) error {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
