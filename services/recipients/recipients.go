package recipients

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

type RecipientsService struct {
	recipientsRepo *db.PostgresRecipientsRepository
}

func NewRecipientsService(repo *db.PostgresRecipientsRepository) *RecipientsService {
	return &RecipientsService{recipientsRepo: repo}
}

func (s *RecipientsService) GetRecipientByUserID(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (mo.Option[*models.Recipient], error) {
	if userID == "" {
		return mo.None[*models.Recipient](), fmt.Errorf("user ID cannot be empty")
	}

	recipient, err := s.recipientsRepo.GetRecipientByUserID(ctx, organizationID, userID)
	if err != nil {
		return mo.None[*models.Recipient](), fmt.Errorf("failed to get recipient: %w", err)
	}
	return recipient, nil
}

func (s *RecipientsService) GetRecipientBySlackUserID(
	ctx context.Context,
	organizationID models.OrgID,
	slackUserID string,
) (mo.Option[*models.Recipient], error) {
	if slackUserID == "" {
		return mo.None[*models.Recipient](), fmt.Errorf("slack user ID cannot be empty")
	}

	recipient, err := s.recipientsRepo.GetRecipientBySlackUserID(ctx, organizationID, slackUserID)
	if err != nil {
		return mo.None[*models.Recipient](), fmt.Errorf("failed to get recipient by slack user id: %w", err)
	}
	return recipient, nil
}

func (s *RecipientsService) ListRecipientsByOrg(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Recipient, error) {
	recipients, err := s.recipientsRepo.ListRecipientsByOrg(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

func (s *RecipientsService) UpsertRecipient(ctx context.Context, recipient *models.Recipient) error {
	log.Printf("📋 Starting to upsert recipient mapping for user: %s", recipient.UserID)

	if recipient.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	if err := s.recipientsRepo.UpsertRecipient(ctx, recipient); err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}

	log.Printf("📋 Completed successfully - recipient mapping saved for user: %s", recipient.UserID)
	return nil
}
