package activity

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockActivityService is a mock implementation of the ActivityService interface
type MockActivityService struct {
	mock.Mock
}

func (m *MockActivityService) RecordActivityEvent(ctx context.Context, event *models.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockActivityService) ListActivityEventsSince(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	since time.Time,
) ([]*models.ActivityEvent, error) {
	args := m.Called(ctx, organizationID, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ActivityEvent), args.Error(1)
}

func (m *MockActivityService) RecordCommunicationEvent(ctx context.Context, event *models.CommunicationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockActivityService) RecordOutboundActivity(ctx context.Context, activity *models.OutboundActivity) error {
	args := m.Called(ctx, activity)
	return args.Error(0)
}

func (m *MockActivityService) RecordIntegrationHeartbeat(
	ctx context.Context,
	heartbeat *models.IntegrationHeartbeat,
) error {
	args := m.Called(ctx, heartbeat)
	return args.Error(0)
}

func (m *MockActivityService) RecordDelivered(
	ctx context.Context,
	interaction *models.NotificationInteraction,
) error {
	args := m.Called(ctx, interaction)
	return args.Error(0)
}

func (m *MockActivityService) RecordInteraction(ctx context.Context, event *models.InteractionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockActivityService) ListRecentInteractions(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	limit int,
) ([]*models.NotificationInteraction, error) {
	args := m.Called(ctx, organizationID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.NotificationInteraction), args.Error(1)
}
