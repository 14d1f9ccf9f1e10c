package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parsascontentcorner/streambot/internal/models"
)

// AssertReminderEqual performs a deep comparison of two Reminder objects.
// Timestamps are compared with a tolerance.
func AssertReminderEqual(t *testing.T, expected, actual *models.Reminder) {
	t.Helper()

	assert.Equal(t, expected.ID, actual.ID, "ID should match")
	assert.Equal(t, expected.Owner, actual.Owner, "Owner should match")
	assert.Equal(t, expected.Target, actual.Target, "Target should match")
	assert.Equal(t, expected.Text, actual.Text, "Text should match")
	AssertTimeAlmostEqual(t, expected.DueAt, actual.DueAt, time.Second)
}

// AssertTimeAlmostEqual checks if two times are within a specified delta.
// Useful for timestamp comparisons where exact equality isn't expected.
func AssertTimeAlmostEqual(t *testing.T, expected, actual time.Time, delta time.Duration) {
	t.Helper()

	diff := expected.Sub(actual)
	if diff < 0 {
		diff = -diff
	}

	assert.True(t,
		diff <= delta,
		"Times should be within %v of each other. Expected: %v, Actual: %v, Diff: %v",
		delta, expected, actual, diff,
	)
}
