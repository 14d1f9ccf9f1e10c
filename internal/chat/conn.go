package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
)

// DefaultURL is Twitch chat over secure websocket.
const DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

// ErrNotConnected is returned when writing before Dial or after Close.
var ErrNotConnected = errors.New("chat connection is not open")

// Credentials identify the bot on the chat server.
type Credentials struct {
	Nick     string
	Password string // "oauth:..." token; empty logs in anonymously
}

// Conn is a chat connection speaking IRC lines over a websocket.
type Conn struct {
	url      string
	creds    Credentials
	channels []string
	logger   *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex // guards conn and serialises writes

	closeOnce sync.Once
}

// NewConn returns an unconnected chat connection that joins channels once logged in.
func NewConn(url string, creds Credentials, channels []string, logger *zap.Logger) *Conn {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conn{
		url:      url,
		creds:    creds,
		channels: channels,
		logger:   logger,
	}
}

// Dial opens the websocket, logs in and joins the configured channels.
func (c *Conn) Dial(ctx context.Context) error {
	c.logger.Info("connecting to chat", zap.String("url", c.url))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial chat: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	nick := strings.ToLower(c.creds.Nick)
	login := []string{"CAP REQ :twitch.tv/tags twitch.tv/commands"}
	if c.creds.Password != "" {
		login = append(login, "PASS "+c.creds.Password)
	}
	login = append(login, "NICK "+nick)
	for _, ch := range c.channels {
		login = append(login, "JOIN "+config.NormalizeChannel(ch))
	}

	for _, line := range login {
		if err := c.WriteLine(line); err != nil {
			c.Close()
			return fmt.Errorf("failed to log in: %w", err)
		}
	}

	c.logger.Info("chat connected",
		zap.String("nick", nick),
		zap.Strings("channels", c.channels),
	)
	return nil
}

// Receive reads lines until the connection fails or ctx is done, delivering
// every PRIVMSG to events. A lost connection is returned as an error.
func (c *Conn) Receive(ctx context.Context, events chan<- Message) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			if ctx.Err() != nil {
				return nil
			}
			return ErrNotConnected
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("chat connection lost: %w", err)
		}

		for _, raw := range strings.Split(string(data), "\n") {
			line, ok := ParseLine(raw)
			if !ok {
				continue
			}
			if err := c.handleLine(ctx, line, events); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Conn) handleLine(ctx context.Context, line Line, events chan<- Message) error {
	switch line.Command {
	case "PING":
		return c.WriteLine("PONG :" + line.Trailing())

	case "PRIVMSG":
		if len(line.Params) < 2 {
			return nil
		}
		msg := Message{
			Target: line.Params[0],
			Nick:   line.Nick(),
			Text:   line.Trailing(),
		}
		if strings.EqualFold(msg.Nick, c.creds.Nick) {
			return nil
		}
		select {
		case events <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case "RECONNECT":
		return errors.New("chat server requested reconnect")

	case "NOTICE":
		c.logger.Warn("chat notice", zap.String("text", line.Trailing()))
		return nil

	default:
		c.logger.Debug("ignored chat line", zap.String("command", line.Command))
		return nil
	}
}

// WriteLine sends one raw line. Safe for concurrent use.
func (c *Conn) WriteLine(line string) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line+"\r\n"))
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		c.logger.Info("chat connection closed")
	})
}
