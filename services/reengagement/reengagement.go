package reengagement

import (
	"context"
	"fmt"
	"log"
	"time"

	"use60backend/db"
	"use60backend/models"
)

type ReengagementService struct {
	reengagementRepo *db.PostgresReengagementRepository
}

func NewReengagementService(repo *db.PostgresReengagementRepository) *ReengagementService {
	return &ReengagementService{reengagementRepo: repo}
}

func (s *ReengagementService) GetAttemptState(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	segment models.Segment,
) (int, *time.Time, error) {
	state, err := s.reengagementRepo.GetAttemptState(ctx, organizationID, userID, segment)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get attempt state: %w", err)
	}
	return state.Attempts, state.LastAttemptAt, nil
}

func (s *ReengagementService) RecordAttempt(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	segment models.Segment,
) error {
	log.Printf("📋 Recording reengagement attempt for user %s in segment: %s", userID, segment)

	if err := s.reengagementRepo.RecordAttempt(ctx, organizationID, userID, segment); err != nil {
		return fmt.Errorf("failed to record reengagement attempt: %w", err)
	}
	return nil
}

func (s *ReengagementService) ResetAttempts(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	if err := s.reengagementRepo.ResetAttempts(ctx, organizationID, userID); err != nil {
		return fmt.Errorf("failed to reset reengagement attempts: %w", err)
	}
	return nil
}
