package models

import "time"

// Setting is one per-user key/value preference.
type Setting struct {
	User      string    `json:"user"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys understood by the bot.
const (
	SettingTimezone = "tz"
	SettingTitles   = "titles"
)
