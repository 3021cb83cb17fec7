package justcall

import (
	"context"

	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockTranscriptClient is a mock implementation of the clients.TranscriptClient interface
type MockTranscriptClient struct {
	mock.Mock
}

func (m *MockTranscriptClient) FetchTranscript(
	ctx context.Context,
	externalCallID string,
) (*models.FetchedTranscript, error) {
	args := m.Called(ctx, externalCallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FetchedTranscript), args.Error(1)
}
