package twitch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
	"github.com/parsascontentcorner/streambot/internal/testutil"
)

type hubFixture struct {
	srv     *testutil.MockTwitchServer
	client  *Client
	hub     *Hub
	leases  *Leases
	manager *LeaseManager
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	srv := testutil.NewMockTwitchServer()
	t.Cleanup(srv.Close)

	creds := NewCredentials("test_client_id", "test_client_secret", srv.TokenURL(), zap.NewNop())
	client := NewClient(srv.APIBaseURL(), "test_client_id", creds, nil, zap.NewNop())
	leases := NewLeases()
	hub := NewHub(client, leases, "hub-secret", 0, zap.NewNop())

	return &hubFixture{
		srv:     srv,
		client:  client,
		hub:     hub,
		leases:  leases,
		manager: NewLeaseManager(client, hub, leases, "https://bot.example.com/webhooks/twitch", zap.NewNop()),
	}
}

func TestClient_UserByLogin(t *testing.T) {
	f := newHubFixture(t)

	u, err := f.client.UserByLogin(context.Background(), "Gikiam")
	require.NoError(t, err)
	assert.Equal(t, "1001", u.ID)

	_, err = f.client.UserByLogin(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestHub_SubscribeRecordsLease(t *testing.T) {
	f := newHubFixture(t)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f.hub.now = func() time.Time { return now }

	topic := StreamTopic("1001")
	callback := CallbackFor("https://bot.example.com/webhooks/twitch", "Gikiam")
	require.NoError(t, f.hub.Subscribe(context.Background(), topic, callback))

	reqs := f.srv.HubRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, ModeSubscribe, reqs[0].Mode)
	assert.Equal(t, topic, reqs[0].Topic)
	assert.Equal(t, "https://bot.example.com/webhooks/twitch?login=gikiam", reqs[0].Callback)
	assert.Equal(t, DefaultLeaseSeconds, reqs[0].LeaseSeconds)
	assert.Equal(t, "hub-secret", reqs[0].Secret)
	assert.Equal(t, "test_client_id", reqs[0].ClientID)
	assert.Contains(t, reqs[0].Authorization, "Bearer mock_app_token_")

	l, ok := f.leases.Get(topic)
	require.True(t, ok)
	assert.Equal(t, now.Add(5*24*time.Hour), l.ExpiresAt)
}

func TestHub_Unsubscribe(t *testing.T) {
	f := newHubFixture(t)
	topic := StreamTopic("1001")

	assert.Error(t, f.hub.Unsubscribe(context.Background(), topic))

	require.NoError(t, f.hub.Subscribe(context.Background(), topic, "https://cb"))
	require.NoError(t, f.hub.Unsubscribe(context.Background(), topic))

	reqs := f.srv.HubRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, ModeUnsubscribe, reqs[1].Mode)
	assert.Equal(t, 0, f.leases.Len())
}

func TestHub_FailureLeavesNoLease(t *testing.T) {
	f := newHubFixture(t)
	f.srv.SetHubStatus(http.StatusBadRequest)

	err := f.hub.Subscribe(context.Background(), StreamTopic("1001"), "https://cb")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, 0, f.leases.Len())
}

func TestHub_TokenFailureSurfaces(t *testing.T) {
	f := newHubFixture(t)
	f.srv.SetTokenStatus(http.StatusInternalServerError)

	assert.Error(t, f.hub.Subscribe(context.Background(), StreamTopic("1001"), "https://cb"))
	assert.Equal(t, int32(0), f.srv.HubCalls.Load())
}

func TestLeaseManager_SubscribeAll(t *testing.T) {
	f := newHubFixture(t)
	specs := []config.WatchSpec{
		testutil.GenerateWatchSpec("gikiam", "#x"),
		testutil.GenerateWatchSpec("ghost", "#y"),
	}

	err := f.manager.SubscribeAll(context.Background(), specs)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, ok := f.leases.Get(StreamTopic("1001"))
	assert.True(t, ok)

	// Once the login exists, the next tick subscribes it.
	f.srv.AddUser("ghost", "2002")
	f.manager.RenewDue(context.Background())

	_, ok = f.leases.Get(StreamTopic("2002"))
	assert.True(t, ok)
	assert.Empty(t, f.manager.pending)
}

func TestLeaseManager_RenewDueOnlyRenewsExpiring(t *testing.T) {
	f := newHubFixture(t)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return now }
	f.hub.now = func() time.Time { return now }

	f.leases.Put(Lease{Topic: "soon", Callback: "https://cb?login=a", ExpiresAt: now.Add(5 * time.Minute)})
	f.leases.Put(Lease{Topic: "later", Callback: "https://cb?login=b", ExpiresAt: now.Add(20 * time.Minute)})

	f.manager.RenewDue(context.Background())

	reqs := f.srv.HubRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "soon", reqs[0].Topic)

	renewed, _ := f.leases.Get("soon")
	assert.Equal(t, now.Add(DefaultLeaseSeconds*time.Second), renewed.ExpiresAt)
	untouched, _ := f.leases.Get("later")
	assert.Equal(t, now.Add(20*time.Minute), untouched.ExpiresAt)
}

func TestLeaseManager_RenewalFailureIsNotRetried(t *testing.T) {
	f := newHubFixture(t)
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	f.manager.now = func() time.Time { return now }

	f.leases.Put(Lease{Topic: "soon", Callback: "https://cb", ExpiresAt: now.Add(5 * time.Minute)})
	f.srv.SetHubStatus(http.StatusInternalServerError)

	f.manager.RenewDue(context.Background())

	assert.Equal(t, int32(1), f.srv.HubCalls.Load())
	l, ok := f.leases.Get("soon")
	require.True(t, ok)
	assert.Equal(t, now.Add(5*time.Minute), l.ExpiresAt)
}

func TestLeaseManager_RunStopsOnCancel(t *testing.T) {
	f := newHubFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.manager.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("lease manager did not stop")
	}
}

func TestCallbackFor(t *testing.T) {
	assert.Equal(t, "https://a/cb?login=x", CallbackFor("https://a/cb", "X"))
	assert.Equal(t, "https://a/cb?k=v&login=x", CallbackFor("https://a/cb?k=v", "x"))
}
