package usermetrics

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockUserMetricsService is a mock implementation of the UserMetricsService interface
type MockUserMetricsService struct {
	mock.Mock
}

func (m *MockUserMetricsService) GetUserMetrics(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (mo.Option[*models.UserMetrics], error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Get(0).(mo.Option[*models.UserMetrics]), args.Error(1)
}

func (m *MockUserMetricsService) RefreshUserMetrics(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (*models.UserMetrics, error) {
	args := m.Called(ctx, organizationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserMetrics), args.Error(1)
}

func (m *MockUserMetricsService) IncrementNotificationsSinceFeedback(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	args := m.Called(ctx, organizationID, userID)
	return args.Error(0)
}

func (m *MockUserMetricsService) MarkFeedbackRequested(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	args := m.Called(ctx, organizationID, userID)
	return args.Error(0)
}
