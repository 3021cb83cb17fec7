package notifications

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

// NotificationsService owns the sent log (primary dedupe state) and the
// deferred notification queue.
type NotificationsService struct {
	sentLogRepo *db.PostgresSentLogRepository
	queueRepo   *db.PostgresQueuedNotificationsRepository
}

func NewNotificationsService(
	sentLogRepo *db.PostgresSentLogRepository,
	queueRepo *db.PostgresQueuedNotificationsRepository,
) *NotificationsService {
	return &NotificationsService{sentLogRepo: sentLogRepo, queueRepo: queueRepo}
}

// RecordSent writes the dedupe record for a delivered notification. Returns
// db.ErrDuplicateSentRecord when a concurrent dispatcher won the race.
func (s *NotificationsService) RecordSent(ctx context.Context, record *models.SentRecord) error {
	if record.Feature == "" {
		return fmt.Errorf("feature cannot be empty")
	}
	if record.SlackUserID == "" {
		return fmt.Errorf("recipient cannot be empty")
	}

	if err := s.sentLogRepo.InsertSentRecord(ctx, record); err != nil {
		return err
	}
	return nil
}

func (s *NotificationsService) FindRecentSent(
	ctx context.Context,
	organizationID models.OrgID,
	feature models.FeatureKey,
	slackUserID, entityID string,
	window time.Duration,
) (mo.Option[*models.SentRecord], error) {
	record, err := s.sentLogRepo.FindRecentSent(ctx, organizationID, feature, slackUserID, entityID, window)
	if err != nil {
		return mo.None[*models.SentRecord](), fmt.Errorf("failed to find recent sent record: %w", err)
	}
	return record, nil
}

func (s *NotificationsService) CountSentSince(
	ctx context.Context,
	organizationID models.OrgID,
	slackUserID string,
	hourStart, dayStart time.Time,
) (*db.SentCounts, error) {
	counts, err := s.sentLogRepo.CountSentSince(ctx, organizationID, slackUserID, hourStart, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count sent notifications: %w", err)
	}
	return counts, nil
}

func (s *NotificationsService) EnqueueNotification(
	ctx context.Context,
	n *models.QueuedNotification,
) (*models.QueuedNotification, error) {
	log.Printf("📋 Starting to enqueue %s notification for user: %s", n.Feature, n.UserID)

	if n.UserID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if n.Status == "" {
		n.Status = models.QueuedStatusScheduled
	}
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = 5
	}

	queued, err := s.queueRepo.EnqueueNotification(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	log.Printf("📋 Completed successfully - notification %s scheduled for %s", queued.ID, queued.ScheduledFor.Format(time.RFC3339))
	return queued, nil
}

func (s *NotificationsService) LeaseDueBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*models.QueuedNotification, error) {
	leased, err := s.queueRepo.LeaseDueBatch(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease due notifications: %w", err)
	}
	return leased, nil
}

func (s *NotificationsService) SettleNotification(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
	status models.QueuedNotificationStatus,
	lastError *string,
) error {
	if err := s.queueRepo.SettleNotification(ctx, organizationID, id, status, lastError); err != nil {
		return fmt.Errorf("failed to settle notification: %w", err)
	}
	return nil
}

func (s *NotificationsService) RescheduleNotification(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
	scheduledFor time.Time,
) error {
	if err := s.queueRepo.RescheduleNotification(ctx, organizationID, id, scheduledFor); err != nil {
		return fmt.Errorf("failed to reschedule notification: %w", err)
	}
	return nil
}

func (s *NotificationsService) CountPendingForUser(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (int, error) {
	count, err := s.queueRepo.CountPendingForUser(ctx, organizationID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationsService) FailExhaustedNotifications(ctx context.Context) (int64, error) {
	failed, err := s.queueRepo.FailExhaustedNotifications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted notifications: %w", err)
	}
	if failed > 0 {
		log.Printf("⚠️ Marked %d notifications as failed after exhausting retries", failed)
	}
	return failed, nil
}
