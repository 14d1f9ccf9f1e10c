// Package reminder stores reminders and delivers them when they fall due.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/database"
	"github.com/parsascontentcorner/streambot/internal/models"
)

var (
	// ErrNotFound is returned when deleting a reminder the caller does not own.
	ErrNotFound = errors.New("reminder not found")
	// ErrInPast is returned when creating a reminder that is already due.
	ErrInPast = errors.New("reminder time is in the past")
	// ErrEmptyText is returned when creating a reminder without a message.
	ErrEmptyText = errors.New("reminder text is empty")
)

// Repository persists reminders.
type Repository interface {
	CreateReminder(ctx context.Context, r *models.Reminder) error
	ListRemindersByOwner(ctx context.Context, owner string) ([]*models.Reminder, error)
	DeleteReminder(ctx context.Context, id int64, owner string) error
	DueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	RemoveReminder(ctx context.Context, id int64) error
	NextReminderDue(ctx context.Context) (time.Time, bool, error)
}

// Service creates, lists and deletes reminders on behalf of chat users.
type Service struct {
	repo   Repository
	now    func() time.Time
	wake   chan struct{}
	logger *zap.Logger
}

// NewService returns a reminder service backed by repo.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Now is the service's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// Create stores a reminder for owner, delivered to target at due.
func (s *Service) Create(ctx context.Context, owner, target string, due time.Time, text string) (*models.Reminder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	now := s.now()
	if !due.After(now) {
		return nil, ErrInPast
	}

	r := &models.Reminder{
		Owner:     strings.ToLower(owner),
		Target:    target,
		Text:      text,
		DueAt:     due,
		CreatedAt: now,
	}
	if err := s.repo.CreateReminder(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	s.logger.Info("reminder created",
		zap.Int64("id", r.ID),
		zap.String("owner", r.Owner),
		zap.Time("due_at", r.DueAt),
	)
	s.notify()
	return r, nil
}

// List returns owner's pending reminders, soonest first.
func (s *Service) List(ctx context.Context, owner string) ([]*models.Reminder, error) {
	rs, err := s.repo.ListRemindersByOwner(ctx, strings.ToLower(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return rs, nil
}

// Delete removes reminder id if owner owns it.
func (s *Service) Delete(ctx context.Context, id int64, owner string) error {
	err := s.repo.DeleteReminder(ctx, id, strings.ToLower(owner))
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	s.notify()
	return nil
}

// notify wakes the scheduler without blocking.
func (s *Service) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
