package lib

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SessionBackendFile     = "file"
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Config contains runtime configuration loaded from environment variables.
type Config struct {
	APIBaseURL          string        `yaml:"api_url"`
	LogLevel            string        `yaml:"log_level"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	ChatPollInterval    time.Duration `yaml:"chat_poll_interval"`
	RequestPollInterval time.Duration `yaml:"request_poll_interval"`
	SessionBackend      string        `yaml:"session_backend"`
	SessionPath         string        `yaml:"session_path"`
	DatabaseURL         string        `yaml:"database_url,omitempty"`
	RedisURL            string        `yaml:"redis_url,omitempty"`
	PushRelayURL        string        `yaml:"push_relay_url,omitempty"`
	PushPublisherPubKey string        `yaml:"push_publisher_pubkey,omitempty"`
	PushRelayAddr       string        `yaml:"push_relay_addr"`
	PushPublisherSecret string        `yaml:"-"`
	PushRateBurst       int           `yaml:"push_rate_burst"`
	PushRatePerMinute   int           `yaml:"push_rate_per_minute"`
	PushMaxSkew         time.Duration `yaml:"push_max_skew"`
}

func LoadConfig() (Config, error) {
	cfg := Config{
		APIBaseURL:          strings.TrimRight(getOrDefault("SOCIALCONNECT_API_URL", "http://localhost:8000"), "/"),
		LogLevel:            getOrDefault("LOG_LEVEL", "INFO"),
		HTTPTimeout:         time.Duration(getIntOrDefault("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		ChatPollInterval:    time.Duration(getIntOrDefault("CHAT_POLL_SECONDS", 5)) * time.Second,
		RequestPollInterval: time.Duration(getIntOrDefault("REQUEST_POLL_SECONDS", 10)) * time.Second,
		SessionBackend:      strings.ToLower(getOrDefault("SESSION_BACKEND", SessionBackendFile)),
		SessionPath:         getOrDefault("SESSION_PATH", defaultSessionPath()),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		PushRelayURL:        strings.TrimSpace(os.Getenv("PUSH_RELAY_URL")),
		PushPublisherPubKey: strings.ToLower(strings.TrimSpace(os.Getenv("PUSH_PUBLISHER_PUBKEY"))),
		PushRelayAddr:       getOrDefault("PUSH_RELAY_ADDR", ":7447"),
		PushPublisherSecret: strings.ToLower(strings.TrimSpace(os.Getenv("PUSH_PUBLISHER_SECRET"))),
		PushRateBurst:       getIntOrDefault("PUSH_RATE_BURST", 30),
		PushRatePerMinute:   getIntOrDefault("PUSH_RATE_PER_MINUTE", 120),
		PushMaxSkew:         time.Duration(getIntOrDefault("PUSH_MAX_SKEW_SECONDS", 300)) * time.Second,
	}

	if path := strings.TrimSpace(os.Getenv("SOCIALCONNECT_CONFIG")); path != "" {
		if err := applyConfigFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("SOCIALCONNECT_API_URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be > 0")
	}
	if c.ChatPollInterval <= 0 {
		return fmt.Errorf("CHAT_POLL_SECONDS must be > 0")
	}
	if c.RequestPollInterval <= 0 {
		return fmt.Errorf("REQUEST_POLL_SECONDS must be > 0")
	}

	switch c.SessionBackend {
	case SessionBackendFile:
		if c.SessionPath == "" {
			return fmt.Errorf("SESSION_PATH is required for the file session backend")
		}
	case SessionBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres session backend")
		}
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND %q is not supported", c.SessionBackend)
	}

	if c.PushRelayURL != "" {
		if c.PushPublisherPubKey == "" {
			return fmt.Errorf("PUSH_PUBLISHER_PUBKEY is required when PUSH_RELAY_URL is set")
		}
		if !hex64.MatchString(c.PushPublisherPubKey) {
			return fmt.Errorf("PUSH_PUBLISHER_PUBKEY is invalid")
		}
	}
	if c.PushPublisherSecret != "" && !hex64.MatchString(c.PushPublisherSecret) {
		return fmt.Errorf("PUSH_PUBLISHER_SECRET is invalid")
	}
	if c.PushRateBurst <= 0 {
		return fmt.Errorf("PUSH_RATE_BURST must be > 0")
	}
	if c.PushRatePerMinute <= 0 {
		return fmt.Errorf("PUSH_RATE_PER_MINUTE must be > 0")
	}
	if c.PushMaxSkew <= 0 {
		return fmt.Errorf("PUSH_MAX_SKEW_SECONDS must be > 0")
	}
	return nil
}

// applyConfigFile overlays keys present in a YAML file on top of cfg.
func applyConfigFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if v.IsSet("api_url") {
		cfg.APIBaseURL = strings.TrimRight(v.GetString("api_url"), "/")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("http_timeout") {
		cfg.HTTPTimeout = v.GetDuration("http_timeout")
	}
	if v.IsSet("chat_poll_interval") {
		cfg.ChatPollInterval = v.GetDuration("chat_poll_interval")
	}
	if v.IsSet("request_poll_interval") {
		cfg.RequestPollInterval = v.GetDuration("request_poll_interval")
	}
	if v.IsSet("session_backend") {
		cfg.SessionBackend = strings.ToLower(v.GetString("session_backend"))
	}
	if v.IsSet("session_path") {
		cfg.SessionPath = v.GetString("session_path")
	}
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("redis_url") {
		cfg.RedisURL = v.GetString("redis_url")
	}
	if v.IsSet("push_relay_url") {
		cfg.PushRelayURL = strings.TrimSpace(v.GetString("push_relay_url"))
	}
	if v.IsSet("push_publisher_pubkey") {
		cfg.PushPublisherPubKey = strings.ToLower(strings.TrimSpace(v.GetString("push_publisher_pubkey")))
	}
	if v.IsSet("push_relay_addr") {
		cfg.PushRelayAddr = v.GetString("push_relay_addr")
	}
	if v.IsSet("push_rate_burst") {
		cfg.PushRateBurst = v.GetInt("push_rate_burst")
	}
	if v.IsSet("push_rate_per_minute") {
		cfg.PushRatePerMinute = v.GetInt("push_rate_per_minute")
	}
	if v.IsSet("push_max_skew") {
		cfg.PushMaxSkew = v.GetDuration("push_max_skew")
	}
	return nil
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".socialconnect", "session.json")
	}
	return filepath.Join(home, ".socialconnect", "session.json")
}

func getOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getIntOrDefault(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
