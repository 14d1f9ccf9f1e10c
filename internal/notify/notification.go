// Package notify carries stream notifications from the webhook endpoint to
// the chat, one at a time.
package notify

import "time"

// Notification is a stream state change: Online or Offline.
type Notification interface {
	StreamLogin() string
	isNotification()
}

// Stream is the metadata of a live stream.
type Stream struct {
	ID          string
	UserID      string
	UserName    string
	GameID      string
	Title       string
	ViewerCount int
	StartedAt   time.Time
}

// Online reports that Login started streaming.
type Online struct {
	Login  string
	Stream Stream
}

// Offline reports that Login stopped streaming.
type Offline struct {
	Login string
}

func (o Online) StreamLogin() string  { return o.Login }
func (o Offline) StreamLogin() string { return o.Login }

func (Online) isNotification()  {}
func (Offline) isNotification() {}

// StreamURL is the canonical URL of login's channel.
func StreamURL(login string) string {
	return "https://www.twitch.tv/" + login
}
