package organizations

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockOrganizationsService is a mock implementation of the OrganizationsService interface
type MockOrganizationsService struct {
	mock.Mock
}

func (m *MockOrganizationsService) GetOrganizationByID(
	ctx context.Context,
	id models.OrgID,
) (mo.Option[*models.Organization], error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mo.Option[*models.Organization]), args.Error(1)
}

func (m *MockOrganizationsService) GetOrganizationBySlackTeamID(
	ctx context.Context,
	teamID string,
) (mo.Option[*models.Organization], error) {
	args := m.Called(ctx, teamID)
	return args.Get(0).(mo.Option[*models.Organization]), args.Error(1)
}

func (m *MockOrganizationsService) ListOrganizationsWithWorkspace(
	ctx context.Context,
) ([]*models.Organization, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Organization), args.Error(1)
}
