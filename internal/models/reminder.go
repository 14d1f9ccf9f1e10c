// Package models defines the rows persisted by the bot.
package models

import "time"

// Reminder is a pending message to deliver to Target once DueAt has passed.
// Target is a channel ("#name") or a nick for private delivery.
type Reminder struct {
	ID        int64     `json:"id"`
	Owner     string    `json:"owner"`
	Target    string    `json:"target"`
	Text      string    `json:"text"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
}

// IsDue reports whether the reminder should fire at now.
func (r *Reminder) IsDue(now time.Time) bool {
	return !now.Before(r.DueAt)
}
