// Package state holds the bot's shared mutable state: per-channel URL history
// and per-user settings.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/database"
	"github.com/parsascontentcorner/streambot/internal/models"
)

// DefaultHistory is the URL history size per channel.
const DefaultHistory = 10

// SettingsRepository persists user settings.
type SettingsRepository interface {
	GetSetting(ctx context.Context, user, key string) (string, error)
	UpsertSetting(ctx context.Context, s *models.Setting) error
	DeleteSetting(ctx context.Context, user, key string) error
	ListSettings(ctx context.Context) ([]*models.Setting, error)
}

// channelState is the URL history of one channel.
type channelState struct {
	mu   sync.RWMutex
	urls *Ring[string]
}

// Store is safe for concurrent use. Each channel has its own lock, so writes
// to one channel never wait on another. Settings are cached in memory in
// front of the repository; no lock is held while the repository is called.
type Store struct {
	capacity int
	logger   *zap.Logger

	mu       sync.RWMutex
	channels map[string]*channelState

	repo      SettingsRepository
	settingMu sync.RWMutex
	settings  map[string]map[string]string // user -> key -> value

	// userLocks serialises writes of one user so the cache and the
	// repository agree on the last value written.
	userLocks sync.Map
}

// NewStore returns a store with the given URL history capacity.
// repo may be nil, in which case settings only live in memory.
func NewStore(capacity int, repo SettingsRepository, logger *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		capacity: capacity,
		logger:   logger,
		channels: make(map[string]*channelState),
		repo:     repo,
		settings: make(map[string]map[string]string),
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// channel returns the state for name, creating it on first use.
func (s *Store) channel(name string, create bool) *channelState {
	name = normalize(name)

	s.mu.RLock()
	cs, ok := s.channels[name]
	s.mu.RUnlock()
	if ok || !create {
		return cs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cs, ok = s.channels[name]; ok {
		return cs
	}
	cs = &channelState{urls: NewRing[string](s.capacity)}
	s.channels[name] = cs
	return cs
}

// PushURL records url as the most recent link seen in channel.
func (s *Store) PushURL(channel, url string) {
	cs := s.channel(channel, true)
	cs.mu.Lock()
	cs.urls.Push(url)
	cs.mu.Unlock()
}

// LastURLs returns up to n URLs of channel, most recent first.
func (s *Store) LastURLs(channel string, n int) []string {
	cs := s.channel(channel, false)
	if cs == nil {
		return nil
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.urls.Last(n)
}

// URL returns the i-th most recent URL of channel.
func (s *Store) URL(channel string, i int) (string, bool) {
	cs := s.channel(channel, false)
	if cs == nil {
		return "", false
	}
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.urls.At(i)
}

// LoadSettings fills the settings cache from the repository.
func (s *Store) LoadSettings(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	all, err := s.repo.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	s.settingMu.Lock()
	defer s.settingMu.Unlock()
	for _, st := range all {
		s.cacheLocked(normalize(st.User), st.Key, st.Value)
	}
	s.logger.Info("settings loaded", zap.Int("count", len(all)))
	return nil
}

// Setting returns the value of key for user.
func (s *Store) Setting(ctx context.Context, user, key string) (string, bool, error) {
	user, key = normalize(user), normalize(key)

	s.settingMu.RLock()
	v, ok := s.settings[user][key]
	s.settingMu.RUnlock()
	if ok || s.repo == nil {
		return v, ok, nil
	}

	// Reading through takes the user's write lock so a concurrent set or
	// unset cannot be overwritten by the value read here.
	unlock := s.lockUser(user)
	defer unlock()

	s.settingMu.RLock()
	v, ok = s.settings[user][key]
	s.settingMu.RUnlock()
	if ok {
		return v, true, nil
	}

	v, err := s.repo.GetSetting(ctx, user, key)
	if database.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}

	s.settingMu.Lock()
	s.cacheLocked(user, key, v)
	s.settingMu.Unlock()
	return v, true, nil
}

// SetSetting stores value under key for user.
func (s *Store) SetSetting(ctx context.Context, user, key, value string) error {
	user, key = normalize(user), normalize(key)
	unlock := s.lockUser(user)
	defer unlock()

	if s.repo != nil {
		err := s.repo.UpsertSetting(ctx, &models.Setting{
			User:      user,
			Key:       key,
			Value:     value,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	s.settingMu.Lock()
	s.cacheLocked(user, key, value)
	s.settingMu.Unlock()
	return nil
}

// UnsetSetting removes key for user. Removing a missing key is not an error.
func (s *Store) UnsetSetting(ctx context.Context, user, key string) error {
	user, key = normalize(user), normalize(key)
	unlock := s.lockUser(user)
	defer unlock()

	if s.repo != nil {
		err := s.repo.DeleteSetting(ctx, user, key)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("failed to delete setting %s: %w", key, err)
		}
	}

	s.settingMu.Lock()
	delete(s.settings[user], key)
	s.settingMu.Unlock()
	return nil
}

// Location returns the user's configured time zone, or UTC.
func (s *Store) Location(ctx context.Context, user string) *time.Location {
	tz, ok, err := s.Setting(ctx, user, models.SettingTimezone)
	if err != nil {
		s.logger.Warn("timezone lookup failed", zap.String("user", user), zap.Error(err))
		return time.UTC
	}
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.logger.Warn("stored timezone is invalid", zap.String("user", user), zap.String("tz", tz))
		return time.UTC
	}
	return loc
}

// Enabled reports whether an on/off setting is on for user.
func (s *Store) Enabled(ctx context.Context, user, key string) bool {
	v, ok, err := s.Setting(ctx, user, key)
	return err == nil && ok && v == "on"
}

func (s *Store) cacheLocked(user, key, value string) {
	m, ok := s.settings[user]
	if !ok {
		m = make(map[string]string)
		s.settings[user] = m
	}
	m[key] = value
}

func (s *Store) lockUser(user string) func() {
	v, _ := s.userLocks.LoadOrStore(user, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
