package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/chat"
	"github.com/parsascontentcorner/streambot/internal/command"
	"github.com/parsascontentcorner/streambot/internal/lookup"
	"github.com/parsascontentcorner/streambot/internal/models"
	"github.com/parsascontentcorner/streambot/internal/reminder"
	"github.com/parsascontentcorner/streambot/internal/state"
)

const dateLayout = "Monday 2 January 2006, 15:04 MST"

// Lookups are the external lookups commands can run.
type Lookups interface {
	Price(ctx context.Context, symbol string) (*lookup.Price, error)
	Joke(ctx context.Context) (string, error)
	LinkOfTheDay(ctx context.Context, pattern string, day time.Time) (string, error)
	Title(ctx context.Context, url string) (string, error)
}

// Bot implements every command.
type Bot struct {
	store     *state.Store
	reminders *reminder.Service
	lookups   Lookups
	sender    chat.Sender
	now       func() time.Time
	logger    *zap.Logger
}

var _ command.Handler = (*Bot)(nil)

// New creates a bot replying through sender
func New(store *state.Store, reminders *reminder.Service, lookups Lookups, sender chat.Sender, logger *zap.Logger) *Bot {
	return &Bot{
		store:     store,
		reminders: reminders,
		lookups:   lookups,
		sender:    sender,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source used for dates and reminders.
func (b *Bot) SetClock(now func() time.Time) {
	b.now = now
}

// reply answers msg. In channels the answer is addressed to the sender.
func (b *Bot) reply(ctx context.Context, msg chat.Message, text string) error {
	if chat.IsChannel(msg.Target) {
		text = msg.Nick + ": " + text
	}
	return b.sender.Send(ctx, msg.ReplyTarget(), text)
}

func (b *Bot) URLLookup(ctx context.Context, msg chat.Message, cmd command.URLLookup) error {
	u, ok := b.store.URL(msg.ReplyTarget(), cmd.Index)
	if !ok {
		if cmd.Index == 0 {
			return b.reply(ctx, msg, "no link posted here yet")
		}
		return b.reply(ctx, msg, fmt.Sprintf("no link #%d", cmd.Index))
	}

	if b.store.Enabled(ctx, msg.Nick, models.SettingTitles) {
		title, err := b.lookups.Title(ctx, u)
		if err == nil {
			return b.reply(ctx, msg, fmt.Sprintf("%s (%s)", u, title))
		}
		b.logger.Debug("title lookup failed", zap.String("url", u), zap.Error(err))
	}
	return b.reply(ctx, msg, u)
}

func (b *Bot) CryptoPrice(ctx context.Context, msg chat.Message, cmd command.CryptoPrice) error {
	p, err := b.lookups.Price(ctx, cmd.Symbol)
	if errors.Is(err, lookup.ErrUnknownSymbol) {
		return b.reply(ctx, msg, fmt.Sprintf("unknown coin %s", cmd.Symbol))
	}
	if err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("%s: $%s / %s €",
		p.Symbol, humanize.CommafWithDigits(p.USD, 2), humanize.CommafWithDigits(p.EUR, 2)))
}

func (b *Bot) Date(ctx context.Context, msg chat.Message, cmd command.Date) error {
	loc := b.store.Location(ctx, msg.Nick)
	if cmd.Zone != "" {
		l, err := time.LoadLocation(cmd.Zone)
		if err != nil {
			return b.reply(ctx, msg, fmt.Sprintf("unknown time zone %s", cmd.Zone))
		}
		loc = l
	}
	return b.reply(ctx, msg, b.now().In(loc).Format(dateLayout))
}

func (b *Bot) CancerLink(ctx context.Context, msg chat.Message, cmd command.CancerLink) error {
	day := b.now().In(b.store.Location(ctx, msg.Nick))
	link, err := b.lookups.LinkOfTheDay(ctx, cmd.Pattern, day)
	if errors.Is(err, lookup.ErrNoLinks) {
		return b.reply(ctx, msg, fmt.Sprintf("nothing matches %q", cmd.Pattern))
	}
	if err != nil {
		return err
	}
	return b.reply(ctx, msg, link)
}

func (b *Bot) SetSetting(ctx context.Context, msg chat.Message, cmd command.SetSetting) error {
	key := strings.ToLower(cmd.Key)
	value, problem := validateSetting(key, cmd.Value)
	if problem != "" {
		return b.reply(ctx, msg, problem)
	}
	if err := b.store.SetSetting(ctx, msg.Nick, key, value); err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("%s set to %s", key, value))
}

func (b *Bot) UnsetSetting(ctx context.Context, msg chat.Message, cmd command.UnsetSetting) error {
	key := strings.ToLower(cmd.Key)
	if _, known := settingHelp[key]; !known {
		return b.reply(ctx, msg, unknownSetting(key))
	}
	if err := b.store.UnsetSetting(ctx, msg.Nick, key); err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("%s unset", key))
}

func (b *Bot) RemindCreate(ctx context.Context, msg chat.Message, cmd command.RemindCreate) error {
	now := b.now().In(b.store.Location(ctx, msg.Nick))
	due, err := cmd.When.Resolve(now)
	if errors.Is(err, command.ErrInPast) {
		return b.reply(ctx, msg, "that time is already past")
	}
	if err != nil {
		return b.reply(ctx, msg, "I can't read that date")
	}

	r, err := b.reminders.Create(ctx, msg.Nick, msg.ReplyTarget(), due, cmd.Text)
	switch {
	case errors.Is(err, reminder.ErrInPast):
		return b.reply(ctx, msg, "that time is already past")
	case errors.Is(err, reminder.ErrEmptyText):
		return b.reply(ctx, msg, "remind you of what?")
	case err != nil:
		return err
	}

	return b.reply(ctx, msg, fmt.Sprintf("reminder #%d set for %s (%s)",
		r.ID, due.Format(dateLayout), humanize.RelTime(due, now, "ago", "from now")))
}

func (b *Bot) RemindList(ctx context.Context, msg chat.Message, _ command.RemindList) error {
	rs, err := b.reminders.List(ctx, msg.Nick)
	if err != nil {
		return err
	}
	if len(rs) == 0 {
		return b.reply(ctx, msg, "no pending reminders")
	}

	now := b.now().In(b.store.Location(ctx, msg.Nick))
	items := make([]string, 0, len(rs))
	for _, r := range rs {
		items = append(items, fmt.Sprintf("#%d %s (%s): %s",
			r.ID, r.DueAt.In(now.Location()).Format(dateLayout),
			humanize.RelTime(r.DueAt, now, "ago", "from now"), r.Text))
	}
	return b.reply(ctx, msg, strings.Join(items, " | "))
}

func (b *Bot) RemindDelete(ctx context.Context, msg chat.Message, cmd command.RemindDelete) error {
	err := b.reminders.Delete(ctx, cmd.ID, msg.Nick)
	if errors.Is(err, reminder.ErrNotFound) {
		return b.reply(ctx, msg, fmt.Sprintf("no reminder #%d", cmd.ID))
	}
	if err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("reminder #%d deleted", cmd.ID))
}

func (b *Bot) Help(ctx context.Context, msg chat.Message, cmd command.Help) error {
	return b.reply(ctx, msg, helpText(cmd.Topic))
}

func (b *Bot) Joke(ctx context.Context, msg chat.Message, _ command.Joke) error {
	joke, err := b.lookups.Joke(ctx)
	if err != nil {
		return err
	}
	return b.reply(ctx, msg, joke)
}

// validateSetting normalizes value for key, or explains what is wrong with it.
func validateSetting(key, value string) (string, string) {
	switch key {
	case models.SettingTimezone:
		loc, err := time.LoadLocation(value)
		if err != nil || value == "" || strings.EqualFold(value, "local") {
			return "", fmt.Sprintf("unknown time zone %s", value)
		}
		return loc.String(), ""
	case models.SettingTitles:
		v := strings.ToLower(value)
		if v != "on" && v != "off" {
			return "", "titles is on or off"
		}
		return v, ""
	default:
		return "", unknownSetting(key)
	}
}

func unknownSetting(key string) string {
	return fmt.Sprintf("unknown setting %s (known: %s)", key, strings.Join(settingKeys(), ", "))
}
