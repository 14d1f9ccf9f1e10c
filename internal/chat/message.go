// Package chat holds the chat-facing types, the outbound writer and the
// line transport the bot talks through.
package chat

import (
	"context"
	"strings"
)

// Message is one inbound line of chat text.
// Target is where the line was sent: a channel or, for private lines, the bot's nick.
type Message struct {
	Target string
	Nick   string
	Text   string
}

// IsChannel reports whether target names a channel rather than a user.
func IsChannel(target string) bool {
	return strings.HasPrefix(target, "#")
}

// ReplyTarget is where answers to m should go.
func (m Message) ReplyTarget() string {
	if IsChannel(m.Target) {
		return m.Target
	}
	return m.Nick
}

// Outgoing is one message to write to the chat.
type Outgoing struct {
	Target string
	Text   string
}

// Sender accepts outbound messages. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, target, text string) error
}
