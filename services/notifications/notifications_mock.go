package notifications

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/db"
	"use60backend/models"
)

// MockNotificationsService is a mock implementation of the NotificationsService interface
type MockNotificationsService struct {
	mock.Mock
}

func (m *MockNotificationsService) RecordSent(ctx context.Context, record *models.SentRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockNotificationsService) FindRecentSent(
	ctx context.Context,
	organizationID models.OrgID,
	feature models.FeatureKey,
	slackUserID, entityID string,
	window time.Duration,
) (mo.Option[*models.SentRecord], error) {
	args := m.Called(ctx, organizationID, feature, slackUserID, entityID, window)
	return args.Get(0).(mo.Option[*models.SentRecord]), args.Error(1)
}

func (m *MockNotificationsService) CountSentSince(
	ctx context.Context,
	organizationID models.OrgID,
	slackUserID string,
	hourStart, dayStart time.Time,
) (*db.SentCounts, error) {
	args := m.Called(ctx, organizationID, slackUserID, hourStart, dayStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*db.SentCounts), args.Error(1)
}

func (m *MockNotificationsService) EnqueueNotification(
	ctx context.Context,
	n *models.QueuedNotification,
) (*models.QueuedNotification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueuedNotification), args.Error(1)
}

func (m *MockNotificationsService) LeaseDueBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*models.QueuedNotification, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QueuedNotification), args.Error(1)
}

func (m *MockNotificationsService) SettleNotification(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
	status models.QueuedNotificationStatus,
	lastError *string,
) error {
	args := m.Called(ctx, organizationID, id, status, lastError)
	return args.Error(0)
}

func (m *MockNotificationsService) RescheduleNotification(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
	scheduledFor time.Time,
) error {
	args := m.Called(ctx, organizationID, id, scheduledFor)
	return args.Error(0)
}

func (m *MockNotificationsService) CountPendingForUser(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (int, error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationsService) FailExhaustedNotifications(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
