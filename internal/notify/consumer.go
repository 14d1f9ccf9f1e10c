package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/chat"
	"github.com/parsascontentcorner/streambot/internal/config"
)

// URLRecorder records a URL into a channel's history.
type URLRecorder interface {
	PushURL(channel, url string)
}

// Consumer announces streams going live in their watching channel.
type Consumer struct {
	queue  *Queue
	specs  []config.WatchSpec
	sender chat.Sender
	urls   URLRecorder
	logger *zap.Logger
}

// NewConsumer returns a consumer for the given watch specs.
func NewConsumer(queue *Queue, specs []config.WatchSpec, sender chat.Sender, urls URLRecorder, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		queue:  queue,
		specs:  specs,
		sender: sender,
		urls:   urls,
		logger: logger,
	}
}

// Run handles notifications until ctx is done. When the queue is closed it
// drains what is left and returns ErrPipelineClosed.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-c.queue.C():
			if !ok {
				c.logger.Error("notification queue closed")
				return ErrPipelineClosed
			}
			c.handle(ctx, n)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, n Notification) {
	online, ok := n.(Online)
	if !ok {
		c.logger.Debug("stream went offline", zap.String("login", n.StreamLogin()))
		return
	}

	spec, ok := c.match(online.Login)
	if !ok {
		c.logger.Warn("no watch spec for stream", zap.String("login", online.Login))
		return
	}

	login := strings.ToLower(spec.Login)
	url := StreamURL(login)

	if err := c.sender.Send(ctx, spec.Channel, Announcement(spec, online.Stream)); err != nil {
		c.logger.Error("failed to announce stream",
			zap.String("login", login),
			zap.String("channel", spec.Channel),
			zap.Error(err),
		)
	}
	c.urls.PushURL(spec.Channel, url)

	c.logger.Info("stream announced",
		zap.String("login", login),
		zap.String("channel", spec.Channel),
	)
}

// match returns the first spec whose login equals login, ignoring case.
func (c *Consumer) match(login string) (config.WatchSpec, bool) {
	for _, s := range c.specs {
		if strings.EqualFold(s.Login, login) {
			return s, true
		}
	}
	return config.WatchSpec{}, false
}

// Announcement is the chat message for spec going live.
func Announcement(spec config.WatchSpec, s Stream) string {
	url := StreamURL(strings.ToLower(spec.Login))
	if s.Title == "" {
		return fmt.Sprintf("%s is live! %s", spec.Nick, url)
	}
	return fmt.Sprintf("%s is live: %s %s", spec.Nick, s.Title, url)
}
