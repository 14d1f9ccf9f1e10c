package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MockTwitchServer represents a mock Twitch API server for testing.
// It serves the client-credentials token endpoint, the users lookup and
// the webhook hub.
type MockTwitchServer struct {
	Server *httptest.Server

	TokenCalls atomic.Int32
	UserCalls  atomic.Int32
	HubCalls   atomic.Int32

	mu          sync.Mutex
	tokenDelay  time.Duration
	tokenStatus int
	expiresIn   int
	hubStatus   int
	hubRequests []HubRequest
	users       map[string]string // login -> id
}

// TwitchTokenResponse is the client-credentials token response.
type TwitchTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// HubRequest is one subscription request received by the hub.
type HubRequest struct {
	Callback     string `json:"hub.callback"`
	Mode         string `json:"hub.mode"`
	Topic        string `json:"hub.topic"`
	LeaseSeconds int    `json:"hub.lease_seconds"`
	Secret       string `json:"hub.secret"`

	Authorization string `json:"-"`
	ClientID      string `json:"-"`
}

// NewMockTwitchServer creates a new mock Twitch API server.
func NewMockTwitchServer() *MockTwitchServer {
	m := &MockTwitchServer{
		tokenStatus: http.StatusOK,
		expiresIn:   3600,
		hubStatus:   http.StatusAccepted,
		users:       map[string]string{"gikiam": "1001"},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		n := m.TokenCalls.Add(1)

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		m.mu.Lock()
		delay, status, expiresIn := m.tokenDelay, m.tokenStatus, m.expiresIn
		m.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if r.FormValue("grant_type") != "client_credentials" ||
			r.FormValue("client_id") == "" || r.FormValue("client_secret") == "" {
			status = http.StatusBadRequest
		}

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{"status": status, "message": "invalid client"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TwitchTokenResponse{
			AccessToken: fmt.Sprintf("mock_app_token_%d", n),
			ExpiresIn:   expiresIn,
			TokenType:   "bearer",
		})
	})

	mux.HandleFunc("/helix/users", func(w http.ResponseWriter, r *http.Request) {
		m.UserCalls.Add(1)

		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") || r.Header.Get("Client-Id") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		login := strings.ToLower(r.URL.Query().Get("login"))
		m.mu.Lock()
		id, ok := m.users[login]
		m.mu.Unlock()

		type user struct {
			ID          string `json:"id"`
			Login       string `json:"login"`
			DisplayName string `json:"display_name"`
		}
		resp := struct {
			Data []user `json:"data"`
		}{Data: []user{}}
		if ok {
			resp.Data = append(resp.Data, user{ID: id, Login: login, DisplayName: strings.ToUpper(login)})
		}

		w.Header().Set("Ratelimit-Limit", "800")
		w.Header().Set("Ratelimit-Remaining", "799")
		w.Header().Set("Ratelimit-Reset", fmt.Sprint(time.Now().Add(time.Minute).Unix()))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	mux.HandleFunc("/helix/webhooks/hub", func(w http.ResponseWriter, r *http.Request) {
		m.HubCalls.Add(1)

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req HubRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		req.Authorization = r.Header.Get("Authorization")
		req.ClientID = r.Header.Get("Client-Id")

		m.mu.Lock()
		m.hubRequests = append(m.hubRequests, req)
		status := m.hubStatus
		m.mu.Unlock()

		w.WriteHeader(status)
	})

	m.Server = httptest.NewServer(mux)
	return m
}

// Close closes the mock server.
func (m *MockTwitchServer) Close() {
	if m.Server != nil {
		m.Server.Close()
	}
}

// TokenURL returns the token endpoint URL.
func (m *MockTwitchServer) TokenURL() string {
	return m.Server.URL + "/oauth2/token"
}

// APIBaseURL returns the Helix base URL.
func (m *MockTwitchServer) APIBaseURL() string {
	return m.Server.URL + "/helix"
}

// SetTokenDelay makes the token endpoint wait before answering.
func (m *MockTwitchServer) SetTokenDelay(d time.Duration) {
	m.mu.Lock()
	m.tokenDelay = d
	m.mu.Unlock()
}

// SetTokenStatus makes the token endpoint answer with status.
func (m *MockTwitchServer) SetTokenStatus(status int) {
	m.mu.Lock()
	m.tokenStatus = status
	m.mu.Unlock()
}

// SetExpiresIn sets the expires_in of issued tokens, in seconds.
func (m *MockTwitchServer) SetExpiresIn(seconds int) {
	m.mu.Lock()
	m.expiresIn = seconds
	m.mu.Unlock()
}

// SetHubStatus makes the hub answer with status.
func (m *MockTwitchServer) SetHubStatus(status int) {
	m.mu.Lock()
	m.hubStatus = status
	m.mu.Unlock()
}

// AddUser registers a login for the users lookup.
func (m *MockTwitchServer) AddUser(login, id string) {
	m.mu.Lock()
	m.users[strings.ToLower(login)] = id
	m.mu.Unlock()
}

// HubRequests returns the subscription requests received so far.
func (m *MockTwitchServer) HubRequests() []HubRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HubRequest(nil), m.hubRequests...)
}

// ResetCallCounts resets the call counters and recorded requests.
func (m *MockTwitchServer) ResetCallCounts() {
	m.TokenCalls.Store(0)
	m.UserCalls.Store(0)
	m.HubCalls.Store(0)
	m.mu.Lock()
	m.hubRequests = nil
	m.mu.Unlock()
}
