package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Environment string `json:"environment"`
	AppName     string `json:"app_name"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Cache configuration
	Cache CacheConfig `json:"cache"`

	// AMQP configuration
	AMQP AMQPConfig `json:"amqp"`

	// Reddit configuration
	Reddit RedditConfig `json:"reddit"`

	// Currency configuration
	Currency CurrencyConfig `json:"currency"`

	// Permissions configuration
	Permissions PermissionsConfig `json:"permissions"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DSN returns the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// CacheConfig represents the shared cache configuration
type CacheConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AMQPConfig represents broker configuration
type AMQPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	VHost    string `json:"vhost"`
	Username string `json:"username"`
	Password string `json:"password"`

	// RedditProxyQueue is the shared request queue for the reddit proxy
	RedditProxyQueue string `json:"reddit_proxy_queue"`
	// ResponseQueuePrefix prefixes each worker's response queue name
	ResponseQueuePrefix string `json:"response_queue_prefix"`
	// RechecksQueue carries requests to revisit specific comments
	RechecksQueue string `json:"rechecks_queue"`
}

// URL returns the amqp connection url
func (c AMQPConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d/%s",
		c.Username, c.Password, c.Host, c.Port, strings.TrimPrefix(c.VHost, "/"),
	)
}

// RedditConfig represents forum-facing configuration
type RedditConfig struct {
	// Subreddits the bot operates on; the first is the primary subreddit
	Subreddits []string `json:"subreddits"`
	// LendersSubreddit is where vetted lenders hold approved-submitter status
	LendersSubreddit string `json:"lenders_subreddit"`
}

// PrimarySubreddit returns the subreddit bans and modmail go to
func (c RedditConfig) PrimarySubreddit() string {
	if len(c.Subreddits) == 0 {
		return ""
	}
	return c.Subreddits[0]
}

// CurrencyConfig represents the currency-layer configuration
type CurrencyConfig struct {
	APIKey    string        `json:"api_key"`
	CacheTime time.Duration `json:"cache_time"`
}

// PermissionsConfig represents the interaction-gate configuration
type PermissionsConfig struct {
	KarmaMin          int           `json:"karma_min"`
	CommentKarmaMin   int           `json:"comment_karma_min"`
	AccountAgeMin     time.Duration `json:"account_age_min"`
	IgnoredUsers      []string      `json:"ignored_users"`
	DefaultPermission []string      `json:"default_permissions"`
}

// IsIgnored reports whether the username is on the ignored list
func (c PermissionsConfig) IsIgnored(username string) bool {
	lowered := strings.ToLower(username)
	for _, ignored := range c.IgnoredUsers {
		if lowered == strings.ToLower(ignored) {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from the environment
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	commentKarmaMin := v.GetInt("COMMENT_KARMA_MIN")
	if !v.IsSet("COMMENT_KARMA_MIN") {
		commentKarmaMin = int(0.4 * float64(v.GetInt("KARMA_MIN")))
	}

	cfg := &Config{
		Environment: v.GetString("ENVIRONMENT"),
		AppName:     v.GetString("APPNAME"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),

		Database: DatabaseConfig{
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			Name:            v.GetString("DATABASE_NAME"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			SSLMode:         v.GetString("DATABASE_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		},

		Cache: CacheConfig{
			Host:     v.GetString("CACHE_HOST"),
			Port:     v.GetInt("CACHE_PORT"),
			Password: v.GetString("CACHE_PASSWORD"),
			DB:       v.GetInt("CACHE_DB"),
		},

		AMQP: AMQPConfig{
			Host:                v.GetString("AMQP_HOST"),
			Port:                v.GetInt("AMQP_PORT"),
			VHost:               v.GetString("AMQP_VHOST"),
			Username:            v.GetString("AMQP_USERNAME"),
			Password:            v.GetString("AMQP_PASSWORD"),
			RedditProxyQueue:    v.GetString("AMQP_REDDIT_PROXY_QUEUE"),
			ResponseQueuePrefix: v.GetString("AMQP_RESPONSE_QUEUE_PREFIX"),
			RechecksQueue:       v.GetString("AMQP_RECHECKS_QUEUE"),
		},

		Reddit: RedditConfig{
			Subreddits:       splitList(v.GetString("SUBREDDITS")),
			LendersSubreddit: v.GetString("LENDERS_SUBREDDIT"),
		},

		Currency: CurrencyConfig{
			APIKey:    v.GetString("CURRENCY_LAYER_API_KEY"),
			CacheTime: time.Duration(v.GetInt("CURRENCY_LAYER_CACHE_TIME")) * time.Second,
		},

		Permissions: PermissionsConfig{
			KarmaMin:          v.GetInt("KARMA_MIN"),
			CommentKarmaMin:   commentKarmaMin,
			AccountAgeMin:     time.Duration(v.GetFloat64("ACCOUNT_AGE_SECONDS_MIN")) * time.Second,
			IgnoredUsers:      splitList(v.GetString("IGNORED_USERS")),
			DefaultPermission: splitList(v.GetString("DEFAULT_PERMISSIONS")),
		},
	}

	if cfg.Currency.APIKey == "" {
		return nil, fmt.Errorf("CURRENCY_LAYER_API_KEY is required")
	}
	if len(cfg.Reddit.Subreddits) == 0 {
		return nil, fmt.Errorf("SUBREDDITS is required")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("APPNAME", "loansbot")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_NAME", "loansbot")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_SSL_MODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "300s")

	v.SetDefault("CACHE_HOST", "localhost")
	v.SetDefault("CACHE_PORT", 6379)
	v.SetDefault("CACHE_PASSWORD", "")
	v.SetDefault("CACHE_DB", 0)

	v.SetDefault("AMQP_HOST", "localhost")
	v.SetDefault("AMQP_PORT", 5672)
	v.SetDefault("AMQP_VHOST", "/")
	v.SetDefault("AMQP_USERNAME", "guest")
	v.SetDefault("AMQP_PASSWORD", "guest")
	v.SetDefault("AMQP_REDDIT_PROXY_QUEUE", "rproxy")
	v.SetDefault("AMQP_RESPONSE_QUEUE_PREFIX", "rpresp")
	v.SetDefault("AMQP_RECHECKS_QUEUE", "lbrechecks")

	v.SetDefault("LENDERS_SUBREDDIT", "lenderscamp")

	v.SetDefault("CURRENCY_LAYER_CACHE_TIME", 14400)

	v.SetDefault("KARMA_MIN", 1000)
	v.SetDefault("ACCOUNT_AGE_SECONDS_MIN", 7776000)
	v.SetDefault("IGNORED_USERS", "LoansBot")
	v.SetDefault("DEFAULT_PERMISSIONS", "")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
