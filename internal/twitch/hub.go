package twitch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultLeaseSeconds is the subscription length requested from the hub (5 days).
const DefaultLeaseSeconds = 432000

// Hub subscription modes.
const (
	ModeSubscribe   = "subscribe"
	ModeUnsubscribe = "unsubscribe"
)

// hubRequest is the body of a hub subscription call.
type hubRequest struct {
	Callback     string `json:"hub.callback"`
	Mode         string `json:"hub.mode"`
	Topic        string `json:"hub.topic"`
	LeaseSeconds int    `json:"hub.lease_seconds"`
	Secret       string `json:"hub.secret,omitempty"`
}

// Hub subscribes and unsubscribes webhook topics and tracks their leases.
type Hub struct {
	client       *Client
	leases       *Leases
	secret       string
	leaseSeconds int
	now          func() time.Time
	logger       *zap.Logger
}

// NewHub creates a hub client. Notifications are signed with secret.
func NewHub(client *Client, leases *Leases, secret string, leaseSeconds int, logger *zap.Logger) *Hub {
	if leaseSeconds <= 0 {
		leaseSeconds = DefaultLeaseSeconds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		client:       client,
		leases:       leases,
		secret:       secret,
		leaseSeconds: leaseSeconds,
		now:          time.Now,
		logger:       logger,
	}
}

// StreamTopic is the stream-changed topic of a user id.
func StreamTopic(userID string) string {
	return DefaultAPIBaseURL + "/streams?user_id=" + url.QueryEscape(userID)
}

// CallbackFor adds the login to the callback URL, so offline notifications,
// which carry no stream data, can still be attributed.
func CallbackFor(base, login string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "login=" + url.QueryEscape(strings.ToLower(login))
}

// Subscribe requests topic and records a fresh lease for it. An existing
// lease is replaced.
func (h *Hub) Subscribe(ctx context.Context, topic, callback string) error {
	requested := h.now()
	if err := h.send(ctx, ModeSubscribe, topic, callback); err != nil {
		return err
	}

	h.leases.Put(Lease{
		Topic:     topic,
		Callback:  callback,
		ExpiresAt: requested.Add(time.Duration(h.leaseSeconds) * time.Second),
	})
	h.logger.Info("subscribed",
		zap.String("topic", topic),
		zap.Int("lease_seconds", h.leaseSeconds),
	)
	return nil
}

// Unsubscribe cancels topic and forgets its lease.
func (h *Hub) Unsubscribe(ctx context.Context, topic string) error {
	lease, ok := h.leases.Get(topic)
	if !ok {
		return fmt.Errorf("no lease for topic %s", topic)
	}
	if err := h.send(ctx, ModeUnsubscribe, topic, lease.Callback); err != nil {
		return err
	}
	h.leases.Remove(topic)
	h.logger.Info("unsubscribed", zap.String("topic", topic))
	return nil
}

// Renew re-subscribes an existing lease.
func (h *Hub) Renew(ctx context.Context, l Lease) error {
	return h.Subscribe(ctx, l.Topic, l.Callback)
}

func (h *Hub) send(ctx context.Context, mode, topic, callback string) error {
	body := hubRequest{
		Callback:     callback,
		Mode:         mode,
		Topic:        topic,
		LeaseSeconds: h.leaseSeconds,
		Secret:       h.secret,
	}
	if err := h.client.do(ctx, http.MethodPost, "/webhooks/hub", nil, body, nil); err != nil {
		return fmt.Errorf("hub %s %s: %w", mode, topic, err)
	}
	return nil
}
