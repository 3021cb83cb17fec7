package anthropic

import (
	"context"

	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockInsightClient is a mock implementation of the clients.InsightClient interface
type MockInsightClient struct {
	mock.Mock
}

func (m *MockInsightClient) SummarizeTranscript(
	ctx context.Context,
	req models.InsightRequest,
) (*models.CallInsights, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CallInsights), args.Error(1)
}
