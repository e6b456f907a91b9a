package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gateway
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	GigaChat GigaChatConfig `yaml:"gigachat"`
	History  HistoryConfig  `yaml:"history"`
	Bot      BotConfig      `yaml:"bot"`
	HTTP     HTTPConfig     `yaml:"http"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig defines HTTP server settings (webhook mode, health, metrics)
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// TelegramConfig defines the Telegram bot connection and access control
type TelegramConfig struct {
	Token              string  `yaml:"token"`
	Mode               string  `yaml:"mode"` // polling or webhook
	WebhookSecretPath  string  `yaml:"webhook_secret_path"`
	WebhookSecretToken string  `yaml:"webhook_secret_token"`
	ParseMode          string  `yaml:"parse_mode"` // HTML or Markdown
	ProcessEdited      bool    `yaml:"process_edited"`
	AllowedUserIDs     []int64 `yaml:"allowed_user_ids"`
	AdminUserIDs       []int64 `yaml:"admin_user_ids"`
}

// GigaChatConfig defines the LLM provider connection settings
type GigaChatConfig struct {
	BaseURL                   string `yaml:"base_url"`
	AuthURL                   string `yaml:"auth_url"`
	ClientID                  string `yaml:"client_id"`
	ClientSecret              string `yaml:"client_secret"`
	Model                     string `yaml:"model"`
	ChatPath                  string `yaml:"chat_path"`
	Scope                     string `yaml:"scope"`
	TokenRefreshReserve       string `yaml:"token_refresh_reserve"`
	TokenForceRefreshInterval string `yaml:"token_force_refresh_interval"`
}

// HistoryConfig defines the conversation context store settings
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Turns         int    `yaml:"turns"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTL           string `yaml:"ttl"`
}

// BotConfig defines conversation behavior settings
type BotConfig struct {
	DefaultMode     string `yaml:"default_mode"` // friendly or concise
	MaxMessageChars int    `yaml:"max_message_chars"`
}

// HTTPConfig defines outbound HTTP client timeouts
type HTTPConfig struct {
	RequestTimeout string `yaml:"request_timeout"`
	ConnectTimeout string `yaml:"connect_timeout"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"

	ParseModeHTML     = "HTML"
	ParseModeMarkdown = "Markdown"

	BotModeFriendly = "friendly"
	BotModeConcise  = "concise"
)

// GetTokenRefreshReserve returns the refresh reserve as a time.Duration
func (c *GigaChatConfig) GetTokenRefreshReserve() time.Duration {
	return parseDuration(c.TokenRefreshReserve, 60*time.Second)
}

// GetTokenForceRefreshInterval returns the forced refresh interval as a
// time.Duration. Zero disables forced refresh.
func (c *GigaChatConfig) GetTokenForceRefreshInterval() time.Duration {
	return parseDuration(c.TokenForceRefreshInterval, 5*time.Minute)
}

// GetTTL returns the history retention as a time.Duration
func (c *HistoryConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 7*24*time.Hour)
}

// GetRequestTimeout returns the total request timeout as a time.Duration
func (c *HTTPConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 60*time.Second)
}

// GetConnectTimeout returns the connect timeout as a time.Duration
func (c *HTTPConfig) GetConnectTimeout() time.Duration {
	return parseDuration(c.ConnectTimeout, 3*time.Second)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// Load loads configuration from a YAML file and applies environment
// overrides for secrets
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Telegram: TelegramConfig{
			Mode:      ModePolling,
			ParseMode: ParseModeHTML,
		},
		GigaChat: GigaChatConfig{
			ChatPath: "/chat/completions",
			Scope:    "GIGACHAT_API_PERS",
		},
		History: HistoryConfig{Enabled: true, Turns: 6},
		Bot:     BotConfig{DefaultMode: BotModeFriendly, MaxMessageChars: 3500},
		Logging: LoggingConfig{Level: "info"},
	}
}

// applyEnv overrides secrets from environment variables so they can be kept
// out of the config file
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("WEBHOOK_SECRET_TOKEN"); v != "" {
		c.Telegram.WebhookSecretToken = v
	}
	if v := os.Getenv("GIGACHAT_CLIENT_ID"); v != "" {
		c.GigaChat.ClientID = v
	}
	if v := os.Getenv("GIGACHAT_CLIENT_SECRET"); v != "" {
		c.GigaChat.ClientSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.History.RedisAddr = v
	}
}

// Validate checks the configuration for correctness
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.Telegram.Mode != ModePolling && c.Telegram.Mode != ModeWebhook {
		return fmt.Errorf("telegram mode must be %q or %q, got %q", ModePolling, ModeWebhook, c.Telegram.Mode)
	}
	if c.Telegram.Mode == ModeWebhook {
		if c.Telegram.WebhookSecretPath == "" || c.Telegram.WebhookSecretToken == "" {
			return fmt.Errorf("webhook_secret_path and webhook_secret_token are required in webhook mode")
		}
	}
	if c.Telegram.ParseMode != ParseModeHTML && c.Telegram.ParseMode != ParseModeMarkdown {
		return fmt.Errorf("parse_mode must be %q or %q, got %q", ParseModeHTML, ParseModeMarkdown, c.Telegram.ParseMode)
	}
	if len(c.Telegram.AllowedUserIDs) == 0 {
		return fmt.Errorf("at least one allowed user id is required")
	}
	allowed := make(map[int64]bool, len(c.Telegram.AllowedUserIDs))
	for _, id := range c.Telegram.AllowedUserIDs {
		allowed[id] = true
	}
	for _, id := range c.Telegram.AdminUserIDs {
		if !allowed[id] {
			return fmt.Errorf("admin user %d is not in allowed_user_ids", id)
		}
	}
	if c.GigaChat.BaseURL == "" {
		return fmt.Errorf("gigachat base_url is required")
	}
	if c.GigaChat.AuthURL == "" {
		return fmt.Errorf("gigachat auth_url is required")
	}
	if c.GigaChat.ClientID == "" || c.GigaChat.ClientSecret == "" {
		return fmt.Errorf("gigachat client credentials are required")
	}
	if c.GigaChat.Model == "" {
		return fmt.Errorf("gigachat model is required")
	}
	if c.History.Turns < 0 || c.History.Turns > 20 {
		return fmt.Errorf("history turns must be between 0 and 20, got %d", c.History.Turns)
	}
	if c.Bot.DefaultMode != BotModeFriendly && c.Bot.DefaultMode != BotModeConcise {
		return fmt.Errorf("default_mode must be %q or %q, got %q", BotModeFriendly, BotModeConcise, c.Bot.DefaultMode)
	}
	if c.Bot.MaxMessageChars <= 0 {
		return fmt.Errorf("max_message_chars must be positive, got %d", c.Bot.MaxMessageChars)
	}
	return nil
}

// Admins returns the admin user set, falling back to all allowed users when
// no explicit admins are configured
func (c *TelegramConfig) Admins() []int64 {
	if len(c.AdminUserIDs) > 0 {
		return c.AdminUserIDs
	}
	return c.AllowedUserIDs
}
