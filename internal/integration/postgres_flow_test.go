package integration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 19 October 2026, 21:00 UTC.
var t0 = time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC)

func TestPostgresFlows(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ts := setupTestSuite(t, t0)
	defer ts.cleanup()
	ctx := context.Background()

	t.Run("remind in 1h fires once and leaves the list", func(t *testing.T) {
		ts.reset(t)
		ts.clock.Set(t0)

		ts.say("alice", "#gikiam", "!remind in 1h coucou")
		reply, ok := ts.sender.last()
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(reply.Text, "alice: reminder #"), reply.Text)

		rs, err := ts.reminders.List(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.True(t, rs[0].DueAt.Equal(t0.Add(time.Hour)), "due at %s", rs[0].DueAt)

		ts.clock.Set(t0.Add(time.Hour + time.Second))
		n, err := ts.scheduler.FireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		fired, _ := ts.sender.last()
		assert.Equal(t, "#gikiam", fired.Target)
		assert.Equal(t, "alice: coucou", fired.Text)

		// Firing again sends nothing.
		n, err = ts.scheduler.FireDue(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		ts.say("alice", "#gikiam", "!remind list")
		listed, _ := ts.sender.last()
		assert.Equal(t, "alice: no pending reminders", listed.Text)
	})

	t.Run("reminders survive a restart", func(t *testing.T) {
		ts.reset(t)
		ts.clock.Set(t0)

		ts.say("alice", "streambot", "remind in 2 days water the plants")
		ts.rebuild()

		ts.clock.Set(t0.AddDate(0, 0, 2).Add(time.Minute))
		n, err := ts.scheduler.FireDue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		fired, _ := ts.sender.last()
		assert.Equal(t, "alice", fired.Target)
		assert.Equal(t, "water the plants", fired.Text)
	})

	t.Run("settings survive a restart", func(t *testing.T) {
		ts.reset(t)
		ts.clock.Set(t0)

		ts.say("alice", "#gikiam", "!set tz Europe/Paris")
		ts.rebuild()
		require.NoError(t, ts.store.LoadSettings(ctx))

		assert.Equal(t, "Europe/Paris", ts.store.Location(ctx, "Alice").String())

		ts.say("alice", "#gikiam", "!date")
		reply, _ := ts.sender.last()
		assert.Equal(t, "alice: Monday 19 October 2026, 23:00 CEST", reply.Text)
	})

	t.Run("owners only see and delete their own reminders", func(t *testing.T) {
		ts.reset(t)
		ts.clock.Set(t0)

		ts.say("alice", "#gikiam", "!remind in 10m alice thing")
		ts.say("bob", "#gikiam", "!remind in 20m bob thing")

		bobs, err := ts.reminders.List(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, bobs, 1)

		ts.say("alice", "#gikiam", fmt.Sprintf("!remind delete %d", bobs[0].ID))
		reply, _ := ts.sender.last()
		assert.Equal(t, fmt.Sprintf("alice: no reminder #%d", bobs[0].ID), reply.Text)

		bobs, err = ts.reminders.List(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, bobs, 1)
	})

	t.Run("concurrent commands keep settings consistent", func(t *testing.T) {
		ts.reset(t)
		ts.clock.Set(t0)

		zones := []string{"Europe/Paris", "Asia/Tokyo", "America/New_York", "UTC"}
		var wg sync.WaitGroup
		for i := 0; i < 40; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				user := fmt.Sprintf("user%d", i%5)
				ts.say(user, "#gikiam", "!set tz "+zones[i%len(zones)])
				ts.say(user, "#gikiam", fmt.Sprintf("!remind in %dm ping %d", i+1, i))
			}(i)
		}
		wg.Wait()

		total := 0
		for u := 0; u < 5; u++ {
			user := fmt.Sprintf("user%d", u)
			rs, err := ts.reminders.List(ctx, user)
			require.NoError(t, err)
			total += len(rs)

			cached, ok, err := ts.store.Setting(ctx, user, "tz")
			require.NoError(t, err)
			require.True(t, ok)
			stored, err := ts.db.GetSetting(ctx, user, "tz")
			require.NoError(t, err)
			assert.Equal(t, stored, cached, "cache and database disagree for %s", user)
		}
		assert.Equal(t, 40, total)
		assert.GreaterOrEqual(t, len(ts.sender.all()), 80)
	})
}
