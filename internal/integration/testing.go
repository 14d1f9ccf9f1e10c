// Package integration runs the bot's command and reminder flows against a
// real PostgreSQL database.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/bot"
	"github.com/parsascontentcorner/streambot/internal/chat"
	"github.com/parsascontentcorner/streambot/internal/command"
	"github.com/parsascontentcorner/streambot/internal/config"
	"github.com/parsascontentcorner/streambot/internal/database"
	"github.com/parsascontentcorner/streambot/internal/lookup"
	"github.com/parsascontentcorner/streambot/internal/reminder"
	"github.com/parsascontentcorner/streambot/internal/state"
	"github.com/parsascontentcorner/streambot/internal/testutil"
)

// recorder is an outbound sink keeping every message.
type recorder struct {
	mu   sync.Mutex
	msgs []chat.Outgoing
}

func (r *recorder) Send(_ context.Context, target, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, chat.Outgoing{Target: target, Text: text})
	return nil
}

func (r *recorder) all() []chat.Outgoing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Outgoing(nil), r.msgs...)
}

func (r *recorder) last() (chat.Outgoing, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return chat.Outgoing{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}

// clock is a settable time source shared by the bot and the reminder service.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// testSuite is one bot wired to a PostgreSQL container.
type testSuite struct {
	db         *database.DB
	sender     *recorder
	clock      *clock
	store      *state.Store
	reminders  *reminder.Service
	scheduler  *reminder.Scheduler
	dispatcher *bot.Dispatcher
	cleanup    func()
}

// setupTestSuite starts PostgreSQL and builds a bot on it. Lookups point at
// an unconfigured client; the flows tested here never leave the process.
func setupTestSuite(t *testing.T, now time.Time) *testSuite {
	t.Helper()
	ctx := context.Background()

	db, cleanup, err := testutil.SetupTestDB(ctx)
	if err != nil {
		t.Fatalf("failed to set up test database: %v", err)
	}

	ts := &testSuite{
		db:      db,
		sender:  &recorder{},
		clock:   &clock{now: now},
		cleanup: cleanup,
	}
	ts.rebuild()
	return ts
}

// rebuild creates fresh in-memory components over the same database, as a
// restarted process would.
func (ts *testSuite) rebuild() {
	logger := zap.NewNop()

	ts.store = state.NewStore(state.DefaultHistory, ts.db, logger)
	ts.reminders = reminder.NewService(ts.db, logger)
	ts.reminders.SetClock(ts.clock.Now)
	ts.scheduler = reminder.NewScheduler(ts.reminders, ts.sender, time.Minute, logger)

	b := bot.New(ts.store, ts.reminders, lookup.NewClient(&config.BotConfig{}, logger), ts.sender, logger)
	b.SetClock(ts.clock.Now)
	ts.dispatcher = bot.NewDispatcher(command.NewParser("!", "streambot"), b, ts.store, 8, logger)
}

func (ts *testSuite) say(nick, target, text string) {
	ts.dispatcher.Handle(context.Background(), chat.Message{Target: target, Nick: nick, Text: text})
}

func (ts *testSuite) reset(t *testing.T) {
	t.Helper()
	if err := testutil.TruncateTables(context.Background(), ts.db); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	ts.rebuild()
}
