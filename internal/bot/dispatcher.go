// Package bot routes chat lines to command handlers and implements them.
package bot

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/chat"
	"github.com/parsascontentcorner/streambot/internal/command"
	"github.com/parsascontentcorner/streambot/internal/state"
)

// DefaultWorkers bounds the number of lines handled at once.
const DefaultWorkers = 64

// URLRecorder receives the links posted in chat.
type URLRecorder interface {
	PushURL(channel, url string)
}

// Dispatcher reads inbound lines and runs each one on its own goroutine.
type Dispatcher struct {
	parser  *command.Parser
	handler command.Handler
	urls    URLRecorder
	sem     chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher running at most workers handlers concurrently
func NewDispatcher(parser *command.Parser, handler command.Handler, urls URLRecorder, workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{
		parser:  parser,
		handler: handler,
		urls:    urls,
		sem:     make(chan struct{}, workers),
		logger:  logger,
	}
}

// Run handles events until ctx is cancelled or events is closed, then waits
// for in-flight handlers.
func (d *Dispatcher) Run(ctx context.Context, events <-chan chat.Message) error {
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}

			select {
			case d.sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}

			d.wg.Add(1)
			go func() {
				defer func() {
					<-d.sem
					d.wg.Done()
				}()
				d.Handle(ctx, msg)
			}()
		}
	}
}

// Handle records the links in msg and runs the command it carries, if any.
// Failures are logged and never reach the chat.
func (d *Dispatcher) Handle(ctx context.Context, msg chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command handler panicked",
				zap.String("nick", msg.Nick),
				zap.String("target", msg.Target),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if d.urls != nil {
		for _, u := range state.ExtractURLs(msg.Text) {
			d.urls.PushURL(msg.ReplyTarget(), u)
		}
	}

	var (
		cmd command.Command
		ok  bool
	)
	if chat.IsChannel(msg.Target) {
		cmd, ok = d.parser.Parse(msg.Text)
	} else {
		cmd, ok = d.parser.ParseDirect(msg.Text)
	}
	if !ok {
		return
	}

	d.logger.Debug("dispatching command",
		zap.String("command", cmd.Name()),
		zap.String("nick", msg.Nick),
		zap.String("target", msg.Target),
	)

	if err := cmd.Dispatch(ctx, d.handler, msg); err != nil {
		d.logger.Warn("command failed",
			zap.String("command", cmd.Name()),
			zap.String("nick", msg.Nick),
			zap.String("target", msg.Target),
			zap.Error(err),
		)
	}
}
