package twitch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/notify"
)

const maxNotificationBytes = 1 << 20

// Publisher accepts notifications, blocking while the consumer is busy.
type Publisher interface {
	Publish(ctx context.Context, n notify.Notification) error
}

// streamPayload is one entry of a stream-changed notification.
type streamPayload struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserLogin   string    `json:"user_login"`
	UserName    string    `json:"user_name"`
	GameID      string    `json:"game_id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at"`
}

type notificationPayload struct {
	Data []streamPayload `json:"data"`
}

// WebhookHandler receives hub verification requests and stream notifications.
type WebhookHandler struct {
	secret    string
	publisher Publisher
	logger    *zap.Logger
}

// NewWebhookHandler creates the notification endpoint. An empty secret
// disables signature checks.
func NewWebhookHandler(secret string, publisher Publisher, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{
		secret:    secret,
		publisher: publisher,
		logger:    logger,
	}
}

// ServeHTTP answers the hub's GET challenge and handles POSTed notifications.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerify(w, r)
	case http.MethodPost:
		h.handleNotification(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *WebhookHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")

	if mode == "denied" {
		h.logger.Warn("subscription denied",
			zap.String("topic", q.Get("hub.topic")),
			zap.String("reason", q.Get("hub.reason")),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	challenge := q.Get("hub.challenge")
	if challenge == "" {
		respondError(w, http.StatusBadRequest, "missing hub.challenge")
		return
	}

	h.logger.Info("subscription verified",
		zap.String("mode", mode),
		zap.String("topic", q.Get("hub.topic")),
	)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

func (h *WebhookHandler) handleNotification(w http.ResponseWriter, r *http.Request) {
	deliveryID := r.Header.Get("Twitch-Notification-Id")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	logger := h.logger.With(zap.String("delivery_id", deliveryID))

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if h.secret != "" && !VerifySignature(h.secret, body, r.Header.Get("X-Hub-Signature")) {
		logger.Warn("rejected notification with bad signature")
		respondError(w, http.StatusForbidden, "invalid signature")
		return
	}

	var payload notificationPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("failed to decode notification", zap.Error(err))
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	n := decodeNotification(payload, r.URL.Query().Get("login"))
	if n.StreamLogin() == "" {
		respondError(w, http.StatusBadRequest, "cannot attribute notification")
		return
	}

	// Publishing blocks while the consumer is busy, holding the hub's request.
	if err := h.publisher.Publish(r.Context(), n); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		logger.Error("failed to queue notification", zap.Error(err))
		respondError(w, status, "notification not accepted")
		return
	}

	logger.Debug("notification queued", zap.String("login", n.StreamLogin()))
	w.WriteHeader(http.StatusOK)
}

func decodeNotification(p notificationPayload, login string) notify.Notification {
	if len(p.Data) == 0 {
		return notify.Offline{Login: login}
	}

	s := p.Data[0]
	if s.UserLogin != "" {
		login = s.UserLogin
	} else if login == "" {
		login = s.UserName
	}
	return notify.Online{
		Login: login,
		Stream: notify.Stream{
			ID:          s.ID,
			UserID:      s.UserID,
			UserName:    s.UserName,
			GameID:      s.GameID,
			Title:       s.Title,
			ViewerCount: s.ViewerCount,
			StartedAt:   s.StartedAt,
		},
	}
}

// VerifySignature checks an X-Hub-Signature header ("sha256=<hex>") against body.
func VerifySignature(secret string, body []byte, header string) bool {
	algo, sig, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(algo, "sha256") {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(secret, body))
}

// Sign returns the HMAC-SHA256 of body with secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
