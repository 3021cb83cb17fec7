package transcripts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
)

// MockTranscriptsService is a mock implementation of the TranscriptsService interface
type MockTranscriptsService struct {
	mock.Mock
}

func (m *MockTranscriptsService) UpsertCallFromEvent(
	ctx context.Context,
	organizationID models.OrgID,
	event *models.CanonicalCallEvent,
) (*models.Call, bool, error) {
	args := m.Called(ctx, organizationID, event)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Call), args.Bool(1), args.Error(2)
}

func (m *MockTranscriptsService) GetCallByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Call], error) {
	args := m.Called(ctx, organizationID, id)
	return args.Get(0).(mo.Option[*models.Call]), args.Error(1)
}

func (m *MockTranscriptsService) EnqueueTranscriptFetch(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	priority models.Priority,
) error {
	args := m.Called(ctx, organizationID, callID, priority)
	return args.Error(0)
}

func (m *MockTranscriptsService) LeaseTranscriptBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*models.TranscriptQueueItem, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TranscriptQueueItem), args.Error(1)
}

func (m *MockTranscriptsService) StoreTranscript(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	transcriptText string,
	transcriptJSON json.RawMessage,
) error {
	args := m.Called(ctx, organizationID, callID, transcriptText, transcriptJSON)
	return args.Error(0)
}

func (m *MockTranscriptsService) RecordFetchFailure(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	attemptErr string,
) error {
	args := m.Called(ctx, organizationID, callID, attemptErr)
	return args.Error(0)
}

func (m *MockTranscriptsService) AbandonTranscriptFetch(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
) error {
	args := m.Called(ctx, organizationID, callID)
	return args.Error(0)
}
