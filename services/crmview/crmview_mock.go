package crmview

import (
	"context"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockCRMViewService is a mock implementation of the CRMViewService interface
type MockCRMViewService struct {
	mock.Mock
}

func (m *MockCRMViewService) GetDealByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Deal], error) {
	args := m.Called(ctx, organizationID, id)
	return args.Get(0).(mo.Option[*models.Deal]), args.Error(1)
}

func (m *MockCRMViewService) ListOpenDeals(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Deal, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deal), args.Error(1)
}

func (m *MockCRMViewService) ListOpenDealsByOwner(
	ctx context.Context,
	organizationID models.OrgID,
	ownerUserID string,
) ([]*models.Deal, error) {
	args := m.Called(ctx, organizationID, ownerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deal), args.Error(1)
}

func (m *MockCRMViewService) ListDealsNeedingNudge(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Deal, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deal), args.Error(1)
}

func (m *MockCRMViewService) GetMeetingByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Meeting], error) {
	args := m.Called(ctx, organizationID, id)
	return args.Get(0).(mo.Option[*models.Meeting]), args.Error(1)
}

func (m *MockCRMViewService) ListMeetingsStartingBetween(
	ctx context.Context,
	organizationID models.OrgID,
	from, to time.Time,
) ([]*models.Meeting, error) {
	args := m.Called(ctx, organizationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Meeting), args.Error(1)
}

func (m *MockCRMViewService) ListMeetingsForUserBetween(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	from, to time.Time,
) ([]*models.Meeting, error) {
	args := m.Called(ctx, organizationID, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Meeting), args.Error(1)
}

func (m *MockCRMViewService) GetCompanyByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Company], error) {
	args := m.Called(ctx, organizationID, id)
	return args.Get(0).(mo.Option[*models.Company]), args.Error(1)
}

func (m *MockCRMViewService) GetReengagementContent(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (models.ReengagementContent, error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Get(0).(models.ReengagementContent), args.Error(1)
}
