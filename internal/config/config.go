// Package config provides configuration for the relay process.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the messaging-platform credentials.
type TelegramConfig struct {
	AppID    int    `yaml:"app_id"`
	APIKey   string `yaml:"api_key"`
	BotName  string `yaml:"bot_name"`
	BotToken string `yaml:"bot_token"`
}

// OpenAIConfig holds the remote-service credentials and model identifiers.
type OpenAIConfig struct {
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	Model              string `yaml:"model"`
	TranscriptionModel string `yaml:"transcription_model"`
}

// ServerConfig holds the admin HTTP server settings.
type ServerConfig struct {
	HTTPPort int `yaml:"http_port"`
}

// DatabaseConfig holds the usage-ledger database settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// LimitsConfig holds budgets and timeouts.
type LimitsConfig struct {
	TokenBudget      int `yaml:"token_budget"`
	GatewayTimeoutMS int `yaml:"gateway_timeout_ms"`
	HandleTimeoutMS  int `yaml:"handle_timeout_ms"`
}

// AccessConfig holds the optional sender allowlist. Empty admits everyone.
type AccessConfig struct {
	AllowedSenders []int64 `yaml:"allowed_senders"`
}

// Config holds the relay configuration. Loaded once at process start,
// immutable afterwards.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Limits   LimitsConfig   `yaml:"limits"`
	Access   AccessConfig   `yaml:"access"`
}

// Load reads the YAML config file at path (if non-empty), then applies
// environment-variable overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		OpenAI: OpenAIConfig{
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-3.5-turbo",
			TranscriptionModel: "whisper-1",
		},
		Server:   ServerConfig{HTTPPort: 8080},
		Database: DatabaseConfig{URL: "file:chatgpt-tg-bot.db?cache=shared&mode=rwc"},
		Limits: LimitsConfig{
			TokenBudget:      3500,
			GatewayTimeoutMS: 30000,
			HandleTimeoutMS:  120000,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.OpenAI.APIKey = getEnv("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = getEnv("OPENAI_MODEL", cfg.OpenAI.Model)
	cfg.Server.HTTPPort = getEnvInt("HTTP_PORT", cfg.Server.HTTPPort)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Limits.TokenBudget = getEnvInt("TOKEN_BUDGET", cfg.Limits.TokenBudget)
	cfg.Limits.GatewayTimeoutMS = getEnvInt("GATEWAY_TIMEOUT_MS", cfg.Limits.GatewayTimeoutMS)

	return cfg, nil
}

// Validate checks that the credentials required at startup are present.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Limits.TokenBudget <= 0 {
		return fmt.Errorf("limits.token_budget must be positive")
	}
	return nil
}

// GatewayTimeout returns the per-call remote timeout.
func (c *Config) GatewayTimeout() time.Duration {
	return time.Duration(c.Limits.GatewayTimeoutMS) * time.Millisecond
}

// HandleTimeout returns the per-event handling timeout.
func (c *Config) HandleTimeout() time.Duration {
	return time.Duration(c.Limits.HandleTimeoutMS) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
