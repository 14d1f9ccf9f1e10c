// Package command turns chat lines addressed to the bot into typed commands.
package command

import (
	"context"

	"github.com/parsascontentcorner/streambot/internal/chat"
)

// Command is the closed set of parsed chat instructions.
type Command interface {
	// Name is a stable identifier for logs.
	Name() string
	// Dispatch calls the Handler method for the concrete command.
	Dispatch(ctx context.Context, h Handler, msg chat.Message) error
	isCommand()
}

// Handler has one method per command. Implementing it is the dispatch table:
// adding a command without a handler method does not compile.
type Handler interface {
	URLLookup(ctx context.Context, msg chat.Message, cmd URLLookup) error
	CryptoPrice(ctx context.Context, msg chat.Message, cmd CryptoPrice) error
	Date(ctx context.Context, msg chat.Message, cmd Date) error
	CancerLink(ctx context.Context, msg chat.Message, cmd CancerLink) error
	SetSetting(ctx context.Context, msg chat.Message, cmd SetSetting) error
	UnsetSetting(ctx context.Context, msg chat.Message, cmd UnsetSetting) error
	RemindCreate(ctx context.Context, msg chat.Message, cmd RemindCreate) error
	RemindList(ctx context.Context, msg chat.Message, cmd RemindList) error
	RemindDelete(ctx context.Context, msg chat.Message, cmd RemindDelete) error
	Help(ctx context.Context, msg chat.Message, cmd Help) error
	Joke(ctx context.Context, msg chat.Message, cmd Joke) error
}

// URLLookup asks for the Index-th most recent URL posted in the channel (0 = latest).
type URLLookup struct{ Index int }

// CryptoPrice asks for the price of a coin symbol.
type CryptoPrice struct{ Symbol string }

// Date asks for the current date, in Zone or the user's configured zone.
type Date struct{ Zone string }

// CancerLink asks for the link of the day, optionally filtered by Pattern.
type CancerLink struct{ Pattern string }

// SetSetting stores a per-user setting.
type SetSetting struct{ Key, Value string }

// UnsetSetting removes a per-user setting.
type UnsetSetting struct{ Key string }

// RemindCreate schedules Text for delivery at When.
type RemindCreate struct {
	When When
	Text string
}

// RemindList lists the caller's pending reminders.
type RemindList struct{}

// RemindDelete deletes one of the caller's reminders.
type RemindDelete struct{ ID int64 }

// Help asks for usage, optionally about one Topic.
type Help struct{ Topic string }

// Joke asks for a joke.
type Joke struct{}

func (URLLookup) Name() string    { return "url" }
func (CryptoPrice) Name() string  { return "price" }
func (Date) Name() string         { return "date" }
func (CancerLink) Name() string   { return "cancer" }
func (SetSetting) Name() string   { return "set" }
func (UnsetSetting) Name() string { return "unset" }
func (RemindCreate) Name() string { return "remind" }
func (RemindList) Name() string   { return "remind-list" }
func (RemindDelete) Name() string { return "remind-delete" }
func (Help) Name() string         { return "help" }
func (Joke) Name() string         { return "joke" }

func (c URLLookup) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.URLLookup(ctx, m, c)
}

func (c CryptoPrice) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.CryptoPrice(ctx, m, c)
}

func (c Date) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.Date(ctx, m, c)
}

func (c CancerLink) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.CancerLink(ctx, m, c)
}

func (c SetSetting) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.SetSetting(ctx, m, c)
}

func (c UnsetSetting) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.UnsetSetting(ctx, m, c)
}

func (c RemindCreate) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.RemindCreate(ctx, m, c)
}

func (c RemindList) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.RemindList(ctx, m, c)
}

func (c RemindDelete) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.RemindDelete(ctx, m, c)
}

func (c Help) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.Help(ctx, m, c)
}

func (c Joke) Dispatch(ctx context.Context, h Handler, m chat.Message) error {
	return h.Joke(ctx, m, c)
}

func (URLLookup) isCommand()    {}
func (CryptoPrice) isCommand()  {}
func (Date) isCommand()         {}
func (CancerLink) isCommand()   {}
func (SetSetting) isCommand()   {}
func (UnsetSetting) isCommand() {}
func (RemindCreate) isCommand() {}
func (RemindList) isCommand()   {}
func (RemindDelete) isCommand() {}
func (Help) isCommand()         {}
func (Joke) isCommand()         {}
