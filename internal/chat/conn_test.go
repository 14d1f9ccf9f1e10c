package chat

import (
	"context"
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
)

// fakeChatServer accepts one websocket client, records what it writes and
// lets the test push raw lines to it.
type fakeChatServer struct {
	*httptest.Server

	mu       sync.Mutex
	received []string
	conn     *websocket.Conn
	ready    chan struct{}
}

func newFakeChatServer(t *testing.T) *fakeChatServer {
	t.Helper()
	s := &fakeChatServer{ready: make(chan struct{})}
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

func (s *fakeChatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *fakeChatServer) push(t *testing.T, lines ...string) {
	t.Helper()
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteMessage(websocket.TextMessage, []byte(strings.Join(lines, "\r\n")+"\r\n")))
}

func (s *fakeChatServer) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.received...)
}

func (s *fakeChatServer) has(line string) bool {
	for _, l := range s.lines() {
		if l == line {
			return true
		}
	}
	return false
}

func TestConn_LoginAndReceive(t *testing.T) {
	srv := newFakeChatServer(t)
	c := NewConn(srv.wsURL(), Credentials{Nick: "StreamBot", Password: "oauth:secret"}, []string{"Gikiam"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Dial(ctx))

	require.Eventually(t, func() bool { return srv.has("JOIN #gikiam") }, time.Second, 5*time.Millisecond)
	assert.True(t, srv.has("PASS oauth:secret"))
	assert.True(t, srv.has("NICK streambot"))

	events := make(chan Message, 4)
	done := make(chan error, 1)
	go func() { done <- c.Receive(ctx, events) }()

	srv.push(t,
		"PING :tmi.twitch.tv",
		":streambot!streambot@streambot.tmi.twitch.tv PRIVMSG #gikiam :my own echo",
		"@color=#fff :alice!alice@alice.tmi.twitch.tv PRIVMSG #gikiam :!price btc",
	)

	select {
	case msg := <-events:
		assert.Equal(t, Message{Target: "#gikiam", Nick: "alice", Text: "!price btc"}, msg)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	require.Eventually(t, func() bool { return srv.has("PONG :tmi.twitch.tv") }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.WriteLine("PRIVMSG #gikiam :pong"))
	require.Eventually(t, func() bool { return srv.has("PRIVMSG #gikiam :pong") }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Receive did not stop on cancel")
	}
	assert.ErrorIs(t, c.WriteLine("PRIVMSG #gikiam :late"), ErrNotConnected)
}

func TestConn_ServerCloseIsAnError(t *testing.T) {
	srv := newFakeChatServer(t)
	c := NewConn(srv.wsURL(), Credentials{Nick: "streambot"}, nil, zap.NewNop())

	ctx := context.Background()
	require.NoError(t, c.Dial(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Receive(ctx, make(chan Message)) }()

	<-srv.ready
	srv.mu.Lock()
	_ = srv.conn.Close()
	srv.mu.Unlock()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Receive did not report the lost connection")
	}
}

func TestConn_WriteBeforeDial(t *testing.T) {
	c := NewConn("", Credentials{Nick: "x"}, nil, nil)
	assert.ErrorIs(t, c.WriteLine("PING"), ErrNotConnected)
	assert.Equal(t, DefaultURL, c.url)
}
