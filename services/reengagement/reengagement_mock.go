package reengagement

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockReengagementService is a mock implementation of the ReengagementService interface
type MockReengagementService struct {
	mock.Mock
}

func (m *MockReengagementService) GetAttemptState(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	segment models.Segment,
) (int, *time.Time, error) {
	args := m.Called(ctx, organizationID, userID, segment)
	var lastAttemptAt *time.Time
	if args.Get(1) != nil {
		lastAttemptAt = args.Get(1).(*time.Time)
	}
	return args.Int(0), lastAttemptAt, args.Error(2)
}

func (m *MockReengagementService) RecordAttempt(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	segment models.Segment,
) error {
	args := m.Called(ctx, organizationID, userID, segment)
	return args.Error(0)
}

func (m *MockReengagementService) ResetAttempts(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	args := m.Called(ctx, organizationID, userID)
	return args.Error(0)
}
