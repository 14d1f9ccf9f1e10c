package twitch

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/testutil"
)

func newTestCredentials(t *testing.T) (*Credentials, *testutil.MockTwitchServer) {
	t.Helper()
	srv := testutil.NewMockTwitchServer()
	t.Cleanup(srv.Close)
	return NewCredentials("test_client_id", "test_client_secret", srv.TokenURL(), zap.NewNop()), srv
}

func TestClientCredentials_ValidityBoundary(t *testing.T) {
	expiresAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	c := ClientCredentials{Token: "tok", ExpiresAt: expiresAt}

	assert.True(t, c.Valid(expiresAt.Add(-11*time.Second)))
	assert.False(t, c.Valid(expiresAt.Add(-10*time.Second)))
	assert.False(t, c.Valid(expiresAt.Add(-9*time.Second)))
	assert.False(t, ClientCredentials{ExpiresAt: expiresAt}.Valid(expiresAt.Add(-time.Hour)))
}

func TestCredentials_FetchesOnceAndCaches(t *testing.T) {
	creds, srv := newTestCredentials(t)
	ctx := context.Background()

	_, ok := creds.Current()
	assert.False(t, ok)

	tok1, err := creds.Token(ctx)
	require.NoError(t, err)
	tok2, err := creds.Token(ctx)
	require.NoError(t, err)

	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int32(1), srv.TokenCalls.Load())
}

func TestCredentials_ConcurrentCallersShareOneFetch(t *testing.T) {
	creds, srv := newTestCredentials(t)
	srv.SetTokenDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	errs := make([]error, 2)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = creds.Token(context.Background())
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, tokens[0], tokens[1])
	assert.Equal(t, int32(1), srv.TokenCalls.Load())
}

func TestCredentials_ExpiryFromExpiresIn(t *testing.T) {
	creds, srv := newTestCredentials(t)
	srv.SetExpiresIn(3600)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	creds.SetClock(func() time.Time { return now })

	_, err := creds.Token(context.Background())
	require.NoError(t, err)

	cur, ok := creds.Current()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), cur.ExpiresAt)
}

func TestCredentials_RenewsNearExpiry(t *testing.T) {
	creds, srv := newTestCredentials(t)
	srv.SetExpiresIn(60)

	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	now := start
	var mu sync.Mutex
	creds.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	setNow := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}

	first, err := creds.Token(context.Background())
	require.NoError(t, err)

	// expiresAt - 11s: still valid.
	setNow(start.Add(49 * time.Second))
	tok, err := creds.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, tok)
	assert.Equal(t, int32(1), srv.TokenCalls.Load())

	// expiresAt - 9s: renewed.
	setNow(start.Add(51 * time.Second))
	tok, err = creds.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, tok)
	assert.Equal(t, int32(2), srv.TokenCalls.Load())
}

func TestCredentials_FailurePropagatesAndCachesNothing(t *testing.T) {
	creds, srv := newTestCredentials(t)
	srv.SetTokenStatus(http.StatusUnauthorized)
	srv.SetTokenDelay(50 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = creds.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Error(t, err)
	}
	_, ok := creds.Current()
	assert.False(t, ok)

	// The next call retries from scratch.
	srv.SetTokenStatus(http.StatusOK)
	srv.SetTokenDelay(0)
	calls := srv.TokenCalls.Load()

	tok, err := creds.Token(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, calls+1, srv.TokenCalls.Load())
}

func TestCredentials_Invalidate(t *testing.T) {
	creds, srv := newTestCredentials(t)

	first, err := creds.Token(context.Background())
	require.NoError(t, err)

	creds.Invalidate()
	second, err := creds.Token(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, int32(2), srv.TokenCalls.Load())
}
