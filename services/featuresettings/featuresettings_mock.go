package featuresettings

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockFeatureSettingsService is a mock implementation of the FeatureSettingsService interface
type MockFeatureSettingsService struct {
	mock.Mock
}

func (m *MockFeatureSettingsService) GetFeatureSettings(
	ctx context.Context,
	organizationID models.OrgID,
	feature models.FeatureKey,
) (mo.Option[*models.NotificationFeatureSettings], error) {
	args := m.Called(ctx, organizationID, feature)
	return args.Get(0).(mo.Option[*models.NotificationFeatureSettings]), args.Error(1)
}

func (m *MockFeatureSettingsService) UpsertFeatureSettings(
	ctx context.Context,
	settings *models.NotificationFeatureSettings,
) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

func (m *MockFeatureSettingsService) ListOrgsWithFeatureEnabled(
	ctx context.Context,
	feature models.FeatureKey,
) ([]models.OrgID, error) {
	args := m.Called(ctx, feature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrgID), args.Error(1)
}
