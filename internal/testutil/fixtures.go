package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parsascontentcorner/streambot/internal/config"
	"github.com/parsascontentcorner/streambot/internal/models"
)

// GenerateReminder creates a reminder for owner in channel, due at due.
func GenerateReminder(owner, target string, due time.Time) *models.Reminder {
	return &models.Reminder{
		Owner:     owner,
		Target:    target,
		Text:      fmt.Sprintf("reminder for %s", owner),
		DueAt:     due.UTC().Truncate(time.Second),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// GenerateWatchSpec creates a watch spec notifying channel when login goes live.
func GenerateWatchSpec(login, channel string) config.WatchSpec {
	return config.WatchSpec{Login: login, Nick: login, Channel: channel}
}

// GenerateHubSecret returns a random hub secret.
func GenerateHubSecret() string {
	return uuid.NewString()
}

// GenerateTestConfig creates a test configuration with valid values.
func GenerateTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			WebhookPort: "8080",
			CallbackURL: "http://localhost:8080/webhooks/twitch",
			Env:         "test",
		},
		Twitch: config.TwitchConfig{
			ClientID:     "test_client_id",
			ClientSecret: "test_client_secret",
			TokenURL:     "http://localhost/oauth2/token",
			APIBaseURL:   "http://localhost/helix",
			HubSecret:    GenerateHubSecret(),
			LeaseSeconds: 432000,
		},
		Chat: config.ChatConfig{
			Nick:      "streambot",
			Channels:  []string{"#gikiam"},
			Prefix:    "!",
			RatePerS:  1.5,
			RateBurst: 3,
		},
		Bot: config.BotConfig{
			URLHistory: 10,
			Workers:    8,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			Path:   ":memory:",
		},
		Logging: config.LoggingConfig{
			Level:  "debug",
			Format: "console",
		},
	}
}
