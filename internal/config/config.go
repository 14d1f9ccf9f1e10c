// Package config provides application configuration management using environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the bot
type Config struct {
	Server   ServerConfig
	Twitch   TwitchConfig
	Chat     ChatConfig
	Bot      BotConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// ServerConfig holds the inbound webhook HTTP server configuration
type ServerConfig struct {
	WebhookPort string
	CallbackURL string // public URL the hub posts notifications to
	Env         string
}

// TwitchConfig holds Twitch API client credentials and endpoints
type TwitchConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	HubSecret    string
	LeaseSeconds int
}

// ChatConfig holds the chat transport configuration
type ChatConfig struct {
	URL       string
	Nick      string
	Password  string
	Channels  []string
	Prefix    string
	RatePerS  float64 // outbound messages per second
	RateBurst int
}

// BotConfig holds command and state tuning
type BotConfig struct {
	URLHistory int
	Workers    int
	WatchFile  string
	LinksURL   string
	PriceURL   string
	JokeURL    string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver       string // sqlite or postgres
	Path         string // sqlite file
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
// envFile is loaded first when non-empty; a missing default .env is ignored.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{}

	cfg.Server = ServerConfig{
		WebhookPort: getEnv("WEBHOOK_PORT", ""),
		CallbackURL: getEnv("WEBHOOK_CALLBACK_URL", ""),
		Env:         getEnv("ENVIRONMENT", "development"),
	}

	cfg.Twitch = TwitchConfig{
		ClientID:     getEnv("TWITCH_CLIENT_ID", ""),
		ClientSecret: getEnv("TWITCH_CLIENT_SECRET", ""),
		TokenURL:     getEnv("TWITCH_TOKEN_URL", "https://id.twitch.tv/oauth2/token"),
		APIBaseURL:   getEnv("TWITCH_API_URL", "https://api.twitch.tv/helix"),
		HubSecret:    getEnv("TWITCH_HUB_SECRET", ""),
		LeaseSeconds: getEnvInt("TWITCH_LEASE_SECONDS", 5*24*3600),
	}

	rate, err := strconv.ParseFloat(getEnv("CHAT_RATE_PER_SECOND", "1.5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_RATE_PER_SECOND: %w", err)
	}

	cfg.Chat = ChatConfig{
		URL:       getEnv("CHAT_URL", "wss://irc-ws.chat.twitch.tv:443"),
		Nick:      getEnv("CHAT_NICK", ""),
		Password:  getEnv("CHAT_PASSWORD", ""),
		Channels:  splitList(getEnv("CHAT_CHANNELS", "")),
		Prefix:    getEnv("CHAT_COMMAND_PREFIX", "!"),
		RatePerS:  rate,
		RateBurst: getEnvInt("CHAT_RATE_BURST", 3),
	}

	for i, ch := range cfg.Chat.Channels {
		cfg.Chat.Channels[i] = NormalizeChannel(ch)
	}

	cfg.Bot = BotConfig{
		URLHistory: getEnvInt("BOT_URL_HISTORY", 10),
		Workers:    getEnvInt("BOT_WORKERS", 64),
		WatchFile:  getEnv("BOT_WATCH_FILE", "watch.yaml"),
		LinksURL:   getEnv("BOT_LINKS_URL", ""),
		PriceURL:   getEnv("BOT_PRICE_URL", "https://min-api.cryptocompare.com/data/price"),
		JokeURL:    getEnv("BOT_JOKE_URL", "https://icanhazdadjoke.com/"),
	}

	cfg.Database = DatabaseConfig{
		Driver:       getEnv("DB_DRIVER", "sqlite"),
		Path:         getEnv("DB_PATH", "streambot.db"),
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "streambot"),
		Password:     getEnv("DB_PASSWORD", ""),
		Name:         getEnv("DB_NAME", "streambot"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 2),
	}

	cfg.Logging = LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Twitch.ClientID == "" {
		return fmt.Errorf("TWITCH_CLIENT_ID is required")
	}
	if c.Twitch.ClientSecret == "" {
		return fmt.Errorf("TWITCH_CLIENT_SECRET is required")
	}
	if c.Twitch.LeaseSeconds <= 0 {
		return fmt.Errorf("TWITCH_LEASE_SECONDS must be positive")
	}

	if c.Server.WebhookPort == "" {
		return fmt.Errorf("WEBHOOK_PORT is required")
	}
	if port, err := strconv.Atoi(c.Server.WebhookPort); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("WEBHOOK_PORT must be a valid TCP port")
	}
	if c.Server.CallbackURL == "" {
		return fmt.Errorf("WEBHOOK_CALLBACK_URL is required")
	}

	if c.Chat.Nick == "" {
		return fmt.Errorf("CHAT_NICK is required")
	}
	if len(c.Chat.Channels) == 0 {
		return fmt.Errorf("CHAT_CHANNELS is required")
	}
	if c.Chat.Prefix == "" {
		return fmt.Errorf("CHAT_COMMAND_PREFIX must not be empty")
	}
	if c.Chat.RatePerS <= 0 || c.Chat.RateBurst <= 0 {
		return fmt.Errorf("CHAT_RATE_PER_SECOND and CHAT_RATE_BURST must be positive")
	}

	if c.Bot.URLHistory <= 0 {
		return fmt.Errorf("BOT_URL_HISTORY must be positive")
	}
	if c.Bot.Workers <= 0 {
		return fmt.Errorf("BOT_WORKERS must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of: sqlite, postgres")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "console": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}

	return nil
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "sqlite" {
		return c.Path
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// getEnv retrieves an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// splitList splits a comma or space separated list, dropping empty items.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
