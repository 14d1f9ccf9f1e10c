package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parsascontentcorner/streambot/internal/chat"
	"github.com/parsascontentcorner/streambot/internal/models"
)

// DefaultPollInterval bounds how long the scheduler sleeps between checks.
const DefaultPollInterval = 30 * time.Second

const minWait = time.Second

// Scheduler delivers due reminders. Delivery is at least once: a reminder is
// removed only after its message was handed to the sender.
type Scheduler struct {
	service *Service
	sender  chat.Sender
	poll    time.Duration
	logger  *zap.Logger
}

// NewScheduler returns a scheduler sending through sender.
func NewScheduler(service *Service, sender chat.Sender, poll time.Duration, logger *zap.Logger) *Scheduler {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		service: service,
		sender:  sender,
		poll:    poll,
		logger:  logger,
	}
}

// Run fires due reminders until ctx is done. It sleeps until the next due
// time, the poll interval, or a change to the reminder set, whichever is first.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("reminder scheduler started", zap.Duration("poll", s.poll))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder scheduler stopped")
			return nil
		case <-timer.C:
		case <-s.service.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if _, err := s.FireDue(ctx); err != nil {
			s.logger.Error("failed to fire reminders", zap.Error(err))
		}
		timer.Reset(s.nextWait(ctx))
	}
}

// FireDue sends and removes every reminder due now. It returns how many were sent.
func (s *Scheduler) FireDue(ctx context.Context) (int, error) {
	due, err := s.service.repo.DueReminders(ctx, s.service.now())
	if err != nil {
		return 0, fmt.Errorf("failed to load due reminders: %w", err)
	}

	sent := 0
	for _, r := range due {
		if err := s.sender.Send(ctx, r.Target, Message(r)); err != nil {
			s.logger.Error("failed to send reminder", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		if err := s.service.repo.RemoveReminder(ctx, r.ID); err != nil {
			s.logger.Error("failed to remove fired reminder", zap.Int64("id", r.ID), zap.Error(err))
			continue
		}
		sent++
		s.logger.Info("reminder fired", zap.Int64("id", r.ID), zap.String("target", r.Target))
	}
	return sent, nil
}

func (s *Scheduler) nextWait(ctx context.Context) time.Duration {
	next, ok, err := s.service.repo.NextReminderDue(ctx)
	if err != nil || !ok {
		return s.poll
	}
	// Reminders that failed to send stay due; the floor keeps them from spinning.
	wait := next.Sub(s.service.now())
	if wait < minWait {
		wait = minWait
	}
	if wait > s.poll {
		wait = s.poll
	}
	return wait
}

// Message is the chat line delivering r. In a channel the owner is mentioned.
func Message(r *models.Reminder) string {
	if chat.IsChannel(r.Target) {
		return r.Owner + ": " + r.Text
	}
	return r.Text
}
