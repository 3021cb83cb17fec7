package inapp

import (
	"context"

	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockInAppNotificationsService is a mock implementation of the InAppNotificationsService interface
type MockInAppNotificationsService struct {
	mock.Mock
}

func (m *MockInAppNotificationsService) CreateInAppNotification(
	ctx context.Context,
	n *models.InAppNotification,
) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockInAppNotificationsService) ListUnreadForUser(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	limit int,
) ([]*models.InAppNotification, error) {
	args := m.Called(ctx, organizationID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.InAppNotification), args.Error(1)
}

func (m *MockInAppNotificationsService) MarkRead(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	id string,
) error {
	args := m.Called(ctx, organizationID, userID, id)
	return args.Error(0)
}
