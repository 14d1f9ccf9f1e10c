package chat

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrOutboxClosed is returned by Send once the writer has stopped.
var ErrOutboxClosed = errors.New("outbox closed")

// LineWriter writes one raw protocol line to the wire.
type LineWriter interface {
	WriteLine(line string) error
}

// Outbox is the single writer of outbound chat lines. Any number of
// goroutines may Send; Run drains them in order at a flood-safe rate.
type Outbox struct {
	queue   chan Outgoing
	limiter *rate.Limiter
	writer  LineWriter
	logger  *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
}

// NewOutbox returns an outbox writing to w at most perSecond lines per second.
func NewOutbox(w LineWriter, perSecond float64, burst int, logger *zap.Logger) *Outbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Outbox{
		queue:   make(chan Outgoing, 64),
		limiter: rate.NewLimiter(limit, burst),
		writer:  w,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Send queues text for target. It blocks while the queue is full.
func (o *Outbox) Send(ctx context.Context, target, text string) error {
	select {
	case o.queue <- Outgoing{Target: target, Text: text}:
		return nil
	case <-o.done:
		return ErrOutboxClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run writes queued messages until ctx is done or a write fails.
func (o *Outbox) Run(ctx context.Context) error {
	defer o.doneOnce.Do(func() { close(o.done) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-o.queue:
			for _, line := range privmsgLines(msg.Target, msg.Text) {
				if err := o.limiter.Wait(ctx); err != nil {
					return nil
				}
				if err := o.writer.WriteLine(line); err != nil {
					return err
				}
			}
			o.logger.Debug("message sent", zap.String("target", msg.Target))
		}
	}
}
