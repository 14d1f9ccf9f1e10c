// Package app wires the bot's components together and runs its long-lived
// tasks as one group.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parsascontentcorner/streambot/internal/bot"
	"github.com/parsascontentcorner/streambot/internal/chat"
	"github.com/parsascontentcorner/streambot/internal/command"
	"github.com/parsascontentcorner/streambot/internal/config"
	"github.com/parsascontentcorner/streambot/internal/database"
	httpserver "github.com/parsascontentcorner/streambot/internal/http"
	"github.com/parsascontentcorner/streambot/internal/lookup"
	"github.com/parsascontentcorner/streambot/internal/notify"
	"github.com/parsascontentcorner/streambot/internal/ratelimit"
	"github.com/parsascontentcorner/streambot/internal/reminder"
	"github.com/parsascontentcorner/streambot/internal/state"
	"github.com/parsascontentcorner/streambot/internal/twitch"
	"github.com/parsascontentcorner/streambot/pkg/logger"
)

// eventBuffer is how many inbound lines may wait for a dispatcher slot.
const eventBuffer = 64

// App holds every shared resource of a running bot.
type App struct {
	cfg    *config.Config
	specs  []config.WatchSpec
	logger *zap.Logger

	conn       *chat.Conn
	outbox     *chat.Outbox
	store      *state.Store
	dispatcher *bot.Dispatcher

	queue    *notify.Queue
	consumer *notify.Consumer
	leases   *twitch.Leases
	manager  *twitch.LeaseManager
	server   *httpserver.Server

	reminders *reminder.Service
	scheduler *reminder.Scheduler
}

// New builds the bot from configuration. db must already be migrated.
// An empty hub secret is replaced in cfg with a generated one, so
// notifications are always signed.
func New(cfg *config.Config, specs []config.WatchSpec, db *database.DB, log *zap.Logger) (*App, error) {
	webhookPath, err := callbackPath(cfg.Server.CallbackURL)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		specs:  specs,
		logger: logger.Component(log, "app"),
	}

	if cfg.Twitch.HubSecret == "" {
		cfg.Twitch.HubSecret = uuid.NewString()
		a.logger.Info("no hub secret configured, generated one for this run")
	}

	// Chat: one connection, one writer.
	a.conn = chat.NewConn(cfg.Chat.URL, chat.Credentials{
		Nick:     cfg.Chat.Nick,
		Password: cfg.Chat.Password,
	}, cfg.Chat.Channels, logger.Component(log, "chat"))
	a.outbox = chat.NewOutbox(a.conn, cfg.Chat.RatePerS, cfg.Chat.RateBurst, logger.Component(log, "outbox"))

	// Commands.
	a.store = state.NewStore(cfg.Bot.URLHistory, db, logger.Component(log, "state"))
	a.reminders = reminder.NewService(db, logger.Component(log, "reminders"))
	a.scheduler = reminder.NewScheduler(a.reminders, a.outbox, reminder.DefaultPollInterval, logger.Component(log, "scheduler"))
	handler := bot.New(a.store, a.reminders, lookup.NewClient(&cfg.Bot, logger.Component(log, "lookup")), a.outbox, logger.Component(log, "bot"))
	a.dispatcher = bot.NewDispatcher(
		command.NewParser(cfg.Chat.Prefix, cfg.Chat.Nick),
		handler,
		a.store,
		cfg.Bot.Workers,
		logger.Component(log, "dispatcher"),
	)

	// Stream notifications.
	creds := twitch.NewCredentials(cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, cfg.Twitch.TokenURL, logger.Component(log, "credentials"))
	client := twitch.NewClient(cfg.Twitch.APIBaseURL, cfg.Twitch.ClientID, creds, ratelimit.NewRateLimiter(logger.Component(log, "ratelimit")), logger.Component(log, "twitch"))
	a.leases = twitch.NewLeases()
	hub := twitch.NewHub(client, a.leases, cfg.Twitch.HubSecret, cfg.Twitch.LeaseSeconds, logger.Component(log, "hub"))
	a.manager = twitch.NewLeaseManager(client, hub, a.leases, cfg.Server.CallbackURL, logger.Component(log, "leases"))

	a.queue = notify.NewQueue()
	a.consumer = notify.NewConsumer(a.queue, specs, a.outbox, a.store, logger.Component(log, "notify"))
	webhook := twitch.NewWebhookHandler(cfg.Twitch.HubSecret, a.queue, logger.Component(log, "webhook"))
	a.server = httpserver.NewServer(cfg.Server.WebhookPort, webhookPath, webhook, db, logger.Component(log, "http"))

	return a, nil
}

// Handler returns the inbound HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Leases returns the lease registry.
func (a *App) Leases() *twitch.Leases {
	return a.leases
}

// Run connects to chat and runs every task until ctx is cancelled or one of
// them fails. The first failure cancels the rest and is returned.
func (a *App) Run(ctx context.Context) error {
	if err := a.store.LoadSettings(ctx); err != nil {
		return err
	}
	if err := a.conn.Dial(ctx); err != nil {
		return err
	}
	defer a.conn.Close()
	defer a.queue.Close()

	events := make(chan chat.Message, eventBuffer)
	g, gctx := errgroup.WithContext(ctx)

	a.spawn(gctx, g, "chat", func(ctx context.Context) error { return a.conn.Receive(ctx, events) })
	a.spawn(gctx, g, "outbox", a.outbox.Run)
	a.spawn(gctx, g, "dispatcher", func(ctx context.Context) error { return a.dispatcher.Run(ctx, events) })
	a.spawn(gctx, g, "http", a.server.Run)
	a.spawn(gctx, g, "notify", a.consumer.Run)
	a.spawn(gctx, g, "leases", func(ctx context.Context) error {
		if err := a.manager.SubscribeAll(ctx, a.specs); err != nil {
			a.logger.Warn("some subscriptions failed, retrying on renewal", zap.Error(err))
		}
		return a.manager.Run(ctx)
	})
	a.spawn(gctx, g, "scheduler", a.scheduler.Run)

	a.logger.Info("bot running",
		zap.Strings("channels", a.cfg.Chat.Channels),
		zap.Int("watched_streams", len(a.specs)),
	)

	err := g.Wait()
	if err != nil {
		a.logger.Error("bot stopped", zap.Error(err))
		return err
	}
	a.logger.Info("bot stopped")
	return nil
}

// spawn runs task in the group. A task that returns before the group is
// cancelled has stopped unexpectedly, which brings the group down.
func (a *App) spawn(ctx context.Context, g *errgroup.Group, name string, task func(context.Context) error) {
	g.Go(func() error {
		err := task(ctx)
		if err == nil && ctx.Err() == nil {
			err = errors.New("stopped unexpectedly")
		}
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if err != nil {
			a.logger.Debug("task exited during shutdown", zap.String("task", name), zap.Error(err))
		}
		return nil
	})
}

// callbackPath is the path the webhook is served on, taken from the public callback URL.
func callbackPath(callback string) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("invalid callback url: %w", err)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}
