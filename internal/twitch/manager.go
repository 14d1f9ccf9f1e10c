package twitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/config"
)

const (
	// RenewalPeriod is how often leases are checked.
	RenewalPeriod = 10 * time.Minute
	// RenewalWindow is how close to expiry a lease gets renewed.
	RenewalWindow = 10 * time.Minute
)

// LeaseManager keeps webhook subscriptions alive.
type LeaseManager struct {
	client   *Client
	hub      *Hub
	leases   *Leases
	callback string
	now      func() time.Time
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]config.WatchSpec // specs whose first subscription failed
}

// NewLeaseManager creates a manager subscribing watch specs to callback.
func NewLeaseManager(client *Client, hub *Hub, leases *Leases, callback string, logger *zap.Logger) *LeaseManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaseManager{
		client:   client,
		hub:      hub,
		leases:   leases,
		callback: callback,
		now:      time.Now,
		logger:   logger,
		pending:  make(map[string]config.WatchSpec),
	}
}

// SubscribeAll subscribes the stream topic of every spec. Failed specs are
// retried on each renewal tick; their errors are returned joined.
func (m *LeaseManager) SubscribeAll(ctx context.Context, specs []config.WatchSpec) error {
	var errs []error
	for _, spec := range specs {
		if err := m.subscribe(ctx, spec); err != nil {
			m.logger.Warn("subscription failed, will retry",
				zap.String("login", spec.Login),
				zap.Error(err),
			)
			m.mu.Lock()
			m.pending[spec.Login] = spec
			m.mu.Unlock()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *LeaseManager) subscribe(ctx context.Context, spec config.WatchSpec) error {
	user, err := m.client.UserByLogin(ctx, spec.Login)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", spec.Login, err)
	}
	return m.hub.Subscribe(ctx, StreamTopic(user.ID), CallbackFor(m.callback, spec.Login))
}

// RenewDue renews every lease expiring within the renewal window and retries
// pending subscriptions. Failures are logged and left for the next tick.
func (m *LeaseManager) RenewDue(ctx context.Context) {
	due := m.leases.Due(m.now(), RenewalWindow)

	m.mu.Lock()
	pending := make([]config.WatchSpec, 0, len(m.pending))
	for _, spec := range m.pending {
		pending = append(pending, spec)
	}
	m.mu.Unlock()

	if len(due) == 0 && len(pending) == 0 {
		return
	}
	m.logger.Info("renewing leases", zap.Int("due", len(due)), zap.Int("pending", len(pending)))

	var wg sync.WaitGroup
	for _, l := range due {
		wg.Add(1)
		go func(l Lease) {
			defer wg.Done()
			if err := m.hub.Renew(ctx, l); err != nil {
				m.logger.Error("lease renewal failed",
					zap.String("topic", l.Topic),
					zap.Time("expires_at", l.ExpiresAt),
					zap.Error(err),
				)
			}
		}(l)
	}
	for _, spec := range pending {
		wg.Add(1)
		go func(spec config.WatchSpec) {
			defer wg.Done()
			if err := m.subscribe(ctx, spec); err != nil {
				m.logger.Error("subscription retry failed", zap.String("login", spec.Login), zap.Error(err))
				return
			}
			m.mu.Lock()
			delete(m.pending, spec.Login)
			m.mu.Unlock()
		}(spec)
	}
	wg.Wait()
}

// Run renews leases every RenewalPeriod until ctx is done.
func (m *LeaseManager) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", RenewalPeriod), func() { m.RenewDue(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule lease renewal: %w", err)
	}

	c.Start()
	m.logger.Info("lease manager started", zap.Duration("period", RenewalPeriod))

	<-ctx.Done()
	<-c.Stop().Done()
	m.logger.Info("lease manager stopped")
	return nil
}
