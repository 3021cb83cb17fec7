package transcripts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"use60backend/core"
	"use60backend/db"
	"use60backend/models"
	"use60backend/services"
)

const (
	defaultMaxFetchAttempts = 10
	fetchLeaseDuration      = 5 * time.Minute
)

// TranscriptsService owns the call store and the bounded transcript fetch
// retry queue.
type TranscriptsService struct {
	callsRepo *db.PostgresCallsRepository
	queueRepo *db.PostgresTranscriptQueueRepository
	txManager services.TransactionManager
}

func NewTranscriptsService(
	callsRepo *db.PostgresCallsRepository,
	queueRepo *db.PostgresTranscriptQueueRepository,
	txManager services.TransactionManager,
) *TranscriptsService {
	return &TranscriptsService{callsRepo: callsRepo, queueRepo: queueRepo, txManager: txManager}
}

// UpsertCallFromEvent materializes a canonical call event into the call
// store. Returns the stored call and whether it was newly created.
func (s *TranscriptsService) UpsertCallFromEvent(
	ctx context.Context,
	organizationID models.OrgID,
	event *models.CanonicalCallEvent,
) (*models.Call, bool, error) {
	log.Printf("📋 Starting to upsert call %s/%s for org: %s", event.Provider, event.ExternalID, organizationID)

	if event.Provider == "" || event.ExternalID == "" {
		return nil, false, fmt.Errorf("provider and external ID cannot be empty")
	}

	call := &models.Call{
		ID:               core.NewID("call"),
		OrgID:            organizationID,
		Provider:         event.Provider,
		ExternalID:       event.ExternalID,
		Direction:        event.Direction,
		Status:           event.Status,
		StartedAt:        event.StartedAt,
		EndedAt:          event.EndedAt,
		DurationSeconds:  event.DurationSeconds,
		FromNumber:       event.FromNumber,
		ToNumber:         event.ToNumber,
		AgentEmail:       event.AgentEmail,
		OwnerUserID:      event.OwnerUserID,
		OwnerEmail:       event.OwnerEmail,
		RecordingURL:     event.RecordingURL,
		TranscriptStatus: models.TranscriptStatusMissing,
	}

	stored, inserted, err := s.callsRepo.UpsertCallByExternalID(ctx, call)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert call: %w", err)
	}

	// A transcript delivered inline on the webhook short-circuits the fetch
	// queue entirely.
	if event.TranscriptText != nil && *event.TranscriptText != "" && !stored.HasTranscript() {
		if err := s.StoreTranscript(ctx, organizationID, stored.ID, *event.TranscriptText, nil); err != nil {
			return nil, false, err
		}
		stored.TranscriptText = event.TranscriptText
		stored.TranscriptStatus = models.TranscriptStatusReady
	}

	log.Printf("📋 Completed successfully - call %s upserted (new: %t)", stored.ID, inserted)
	return stored, inserted, nil
}

func (s *TranscriptsService) GetCallByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Call], error) {
	call, err := s.callsRepo.GetCallByID(ctx, organizationID, id)
	if err != nil {
		return mo.None[*models.Call](), fmt.Errorf("failed to get call: %w", err)
	}
	return call, nil
}

// EnqueueTranscriptFetch queues a call for transcript fetching and flips its
// status to queued. Replays are no-ops.
func (s *TranscriptsService) EnqueueTranscriptFetch(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	priority models.Priority,
) error {
	if callID == "" {
		return fmt.Errorf("call ID cannot be empty")
	}
	if priority == "" {
		priority = models.PriorityNormal
	}

	item := &models.TranscriptQueueItem{
		CallID:      callID,
		OrgID:       organizationID,
		MaxAttempts: defaultMaxFetchAttempts,
		Priority:    priority,
	}
	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.queueRepo.EnqueueTranscriptFetch(ctx, item); err != nil {
			return fmt.Errorf("failed to enqueue transcript fetch: %w", err)
		}
		if err := s.callsRepo.SetCallTranscriptStatus(ctx, organizationID, callID, models.TranscriptStatusQueued); err != nil {
			return fmt.Errorf("failed to mark call transcript queued: %w", err)
		}
		return nil
	})
}

func (s *TranscriptsService) LeaseTranscriptBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*models.TranscriptQueueItem, error) {
	leased, err := s.queueRepo.LeaseBatch(ctx, now, fetchLeaseDuration, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to lease transcript batch: %w", err)
	}
	return leased, nil
}

// StoreTranscript persists a fetched transcript, flips the call to ready, and
// removes the queue item.
func (s *TranscriptsService) StoreTranscript(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	transcriptText string,
	transcriptJSON json.RawMessage,
) error {
	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.callsRepo.UpdateCallTranscript(
			ctx, organizationID, callID, transcriptText, transcriptJSON, models.TranscriptStatusReady,
		); err != nil {
			return fmt.Errorf("failed to store transcript: %w", err)
		}
		if err := s.queueRepo.DeleteQueueItem(ctx, organizationID, callID); err != nil {
			return fmt.Errorf("failed to delete transcript queue item: %w", err)
		}
		return nil
	})
}

func (s *TranscriptsService) RecordFetchFailure(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	attemptErr string,
) error {
	if err := s.queueRepo.RecordAttemptFailure(ctx, organizationID, callID, attemptErr); err != nil {
		return fmt.Errorf("failed to record transcript fetch failure: %w", err)
	}
	return nil
}

// AbandonTranscriptFetch gives up on a call whose retry budget ran out.
func (s *TranscriptsService) AbandonTranscriptFetch(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
) error {
	log.Printf("⚠️ Abandoning transcript fetch for call: %s", callID)

	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.callsRepo.SetCallTranscriptStatus(ctx, organizationID, callID, models.TranscriptStatusFailed); err != nil {
			return fmt.Errorf("failed to mark call transcript failed: %w", err)
		}
		if err := s.queueRepo.DeleteQueueItem(ctx, organizationID, callID); err != nil {
			return fmt.Errorf("failed to delete transcript queue item: %w", err)
		}
		return nil
	})
}
