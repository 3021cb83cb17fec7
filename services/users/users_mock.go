package users

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockUsersService is a mock implementation of the UsersService interface
type MockUsersService struct {
	mock.Mock
}

func (m *MockUsersService) GetUserByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.User], error) {
	args := m.Called(ctx, organizationID, id)
	return args.Get(0).(mo.Option[*models.User]), args.Error(1)
}

func (m *MockUsersService) GetUserByEmail(
	ctx context.Context,
	organizationID models.OrgID,
	email string,
) (mo.Option[*models.User], error) {
	args := m.Called(ctx, organizationID, email)
	return args.Get(0).(mo.Option[*models.User]), args.Error(1)
}

func (m *MockUsersService) ListActiveUsersByOrg(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.User, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUsersService) TouchLastAppActive(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	at time.Time,
) error {
	args := m.Called(ctx, organizationID, userID, at)
	return args.Error(0)
}
