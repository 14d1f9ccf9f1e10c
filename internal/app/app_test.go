package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
	"github.com/parsascontentcorner/streambot/internal/testutil"
	"github.com/parsascontentcorner/streambot/internal/twitch"
)

// chatServer is a websocket chat server accepting a single client.
type chatServer struct {
	*httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	received []string
	ready    chan struct{}
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	s := &chatServer{ready: make(chan struct{})}
	upgrader := websocket.Upgrader{}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		close(s.ready)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			s.mu.Lock()
			for _, l := range strings.Split(strings.TrimSpace(string(data)), "\r\n") {
				s.received = append(s.received, l)
			}
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *chatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *chatServer) push(t *testing.T, line string) {
	t.Helper()
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteMessage(websocket.TextMessage, []byte(line+"\r\n")))
}

func (s *chatServer) drop() {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.Close()
}

func (s *chatServer) has(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.received {
		if l == line {
			return true
		}
	}
	return false
}

func (s *chatServer) hasPrefix(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.received {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return fmt.Sprint(port)
}

type harness struct {
	chat   *chatServer
	twitch *testutil.MockTwitchServer
	cfg    *config.Config
	app    *App
	cancel context.CancelFunc
	done   chan error
}

func startApp(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		chat:   newChatServer(t),
		twitch: testutil.NewMockTwitchServer(),
		done:   make(chan error, 1),
	}
	t.Cleanup(h.twitch.Close)

	port := freePort(t)
	cfg := testutil.GenerateTestConfig()
	cfg.Chat.URL = h.chat.wsURL()
	cfg.Chat.RatePerS = 100
	cfg.Chat.RateBurst = 100
	cfg.Twitch.TokenURL = h.twitch.TokenURL()
	cfg.Twitch.APIBaseURL = h.twitch.APIBaseURL()
	cfg.Server.WebhookPort = port
	cfg.Server.CallbackURL = "http://127.0.0.1:" + port + "/webhooks/twitch"
	h.cfg = cfg

	specs := []config.WatchSpec{testutil.GenerateWatchSpec("gikiam", "#gikiam")}

	a, err := New(cfg, specs, testutil.NewSQLiteDB(t), zap.NewNop())
	require.NoError(t, err)
	h.app = a

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go func() { h.done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return h.chat.has("JOIN #gikiam") }, 5*time.Second, 10*time.Millisecond)
	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
		return nil
	}
}

func TestApp_AnswersCommands(t *testing.T) {
	h := startApp(t)

	h.chat.push(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #gikiam :!help joke")
	require.Eventually(t, func() bool {
		return h.chat.hasPrefix("PRIVMSG #gikiam :alice: joke:")
	}, 5*time.Second, 10*time.Millisecond)

	h.chat.push(t, ":bob!bob@bob.tmi.twitch.tv PRIVMSG #gikiam :see https://example.com/clip")
	h.chat.push(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #gikiam :!url")
	require.Eventually(t, func() bool {
		return h.chat.has("PRIVMSG #gikiam :alice: https://example.com/clip")
	}, 5*time.Second, 10*time.Millisecond)

	h.cancel()
	assert.NoError(t, h.wait(t))
}

func TestApp_SubscribesAndAnnounces(t *testing.T) {
	h := startApp(t)

	require.Eventually(t, func() bool { return h.app.Leases().Len() == 1 }, 5*time.Second, 10*time.Millisecond)
	hubReqs := h.twitch.HubRequests()
	require.Len(t, hubReqs, 1)
	assert.Equal(t, twitch.ModeSubscribe, hubReqs[0].Mode)
	assert.Equal(t, h.cfg.Server.CallbackURL+"?login=gikiam", hubReqs[0].Callback)

	body := `{"data":[{"id":"9","user_id":"1001","user_login":"gikiam","user_name":"Gikiam","title":"coding","type":"live","viewer_count":3,"started_at":"2026-10-19T12:00:00Z"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twitch?login=gikiam", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature", "sha256="+hex.EncodeToString(twitch.Sign(h.cfg.Twitch.HubSecret, []byte(body))))
	rec := httptest.NewRecorder()
	h.app.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		return h.chat.has("PRIVMSG #gikiam :gikiam is live: coding https://www.twitch.tv/gikiam")
	}, 5*time.Second, 10*time.Millisecond)

	// The stream URL joined the channel's history.
	h.chat.push(t, ":alice!alice@alice.tmi.twitch.tv PRIVMSG #gikiam :!url")
	require.Eventually(t, func() bool {
		return h.chat.has("PRIVMSG #gikiam :alice: https://www.twitch.tv/gikiam")
	}, 5*time.Second, 10*time.Millisecond)

	h.cancel()
	assert.NoError(t, h.wait(t))
}

func TestApp_LostChatStopsEverything(t *testing.T) {
	h := startApp(t)

	h.chat.drop()

	err := h.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat")
}

func TestNew_GeneratesHubSecret(t *testing.T) {
	cfg := testutil.GenerateTestConfig()
	cfg.Twitch.HubSecret = ""

	// A nil logger falls back to no-op component loggers.
	a, err := New(cfg, nil, testutil.NewSQLiteDB(t), nil)
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Twitch.HubSecret)

	body := `{"data":[{"id":"9","user_login":"gikiam","title":"fake","type":"live"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twitch?login=gikiam", strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/twitch?login=gikiam", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature", "sha256="+hex.EncodeToString(twitch.Sign("", []byte(body))))
	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCallbackPath(t *testing.T) {
	p, err := callbackPath("https://bot.example.com/hooks/twitch?x=1")
	require.NoError(t, err)
	assert.Equal(t, "/hooks/twitch", p)

	p, err = callbackPath("https://bot.example.com")
	require.NoError(t, err)
	assert.Equal(t, "/", p)

	_, err = callbackPath("://nope")
	assert.Error(t, err)
}
