package recipients

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockRecipientsService is a mock implementation of the RecipientsService interface
type MockRecipientsService struct {
	mock.Mock
}

func (m *MockRecipientsService) GetRecipientByUserID(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (mo.Option[*models.Recipient], error) {
	args := m.Called(ctx, organizationID, userID)
	return args.Get(0).(mo.Option[*models.Recipient]), args.Error(1)
}

func (m *MockRecipientsService) GetRecipientBySlackUserID(
	ctx context.Context,
	organizationID models.OrgID,
	slackUserID string,
) (mo.Option[*models.Recipient], error) {
	args := m.Called(ctx, organizationID, slackUserID)
	return args.Get(0).(mo.Option[*models.Recipient]), args.Error(1)
}

func (m *MockRecipientsService) ListRecipientsByOrg(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Recipient, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Recipient), args.Error(1)
}

func (m *MockRecipientsService) UpsertRecipient(ctx context.Context, recipient *models.Recipient) error {
	args := m.Called(ctx, recipient)
	return args.Error(0)
}
