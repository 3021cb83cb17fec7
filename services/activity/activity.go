package activity

import (
	"context"
	"fmt"
	"log"
	"time"

	"use60backend/core"
	"use60backend/db"
	"use60backend/models"
	"use60backend/services"
)

type ActivityService struct {
	activityRepo      *db.PostgresActivityRepository
	interactionsRepo  *db.PostgresInteractionsRepository
	recipientsService services.RecipientsService
}

func NewActivityService(
	activityRepo *db.PostgresActivityRepository,
	interactionsRepo *db.PostgresInteractionsRepository,
	recipientsService services.RecipientsService,
) *ActivityService {
	return &ActivityService{
		activityRepo:      activityRepo,
		interactionsRepo:  interactionsRepo,
		recipientsService: recipientsService,
	}
}

func (s *ActivityService) RecordActivityEvent(ctx context.Context, event *models.ActivityEvent) error {
	if event.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if event.ID == "" {
		event.ID = core.NewID("ae")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.Weekday = int(event.OccurredAt.UTC().Weekday())
	event.Hour = event.OccurredAt.UTC().Hour()

	if err := s.activityRepo.InsertActivityEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record activity event: %w", err)
	}
	return nil
}

func (s *ActivityService) ListActivityEventsSince(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	since time.Time,
) ([]*models.ActivityEvent, error) {
	events, err := s.activityRepo.ListActivityEventsSince(ctx, organizationID, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	return events, nil
}

func (s *ActivityService) RecordCommunicationEvent(ctx context.Context, event *models.CommunicationEvent) error {
	if event.ID == "" {
		event.ID = core.NewID("ce")
	}

	if err := s.activityRepo.InsertCommunicationEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record communication event: %w", err)
	}
	return nil
}

func (s *ActivityService) RecordOutboundActivity(ctx context.Context, activity *models.OutboundActivity) error {
	if activity.ID == "" {
		activity.ID = core.NewID("oa")
	}

	if err := s.activityRepo.InsertOutboundActivity(ctx, activity); err != nil {
		return fmt.Errorf("failed to record outbound activity: %w", err)
	}
	return nil
}

func (s *ActivityService) RecordIntegrationHeartbeat(
	ctx context.Context,
	heartbeat *models.IntegrationHeartbeat,
) error {
	if err := s.activityRepo.UpsertIntegrationHeartbeat(ctx, heartbeat); err != nil {
		return fmt.Errorf("failed to record integration heartbeat: %w", err)
	}
	return nil
}

// RecordDelivered writes the interaction row for a just-delivered
// notification. Later clicks and dismissals update it.
func (s *ActivityService) RecordDelivered(ctx context.Context, interaction *models.NotificationInteraction) error {
	if interaction.ID == "" {
		interaction.ID = core.NewID("ni")
	}
	if interaction.DeliveredAt.IsZero() {
		interaction.DeliveredAt = time.Now().UTC()
	}
	interaction.Weekday = int(interaction.DeliveredAt.UTC().Weekday())
	interaction.Hour = interaction.DeliveredAt.UTC().Hour()

	if err := s.interactionsRepo.InsertDelivered(ctx, interaction); err != nil {
		return fmt.Errorf("failed to record delivered interaction: %w", err)
	}
	return nil
}

// RecordInteraction resolves an inbound chat interaction back to a product
// user and stamps the matching delivery record.
func (s *ActivityService) RecordInteraction(ctx context.Context, event *models.InteractionEvent) error {
	log.Printf("📨 Recording %s interaction from slack user: %s", event.Action, event.SlackUserID)

	maybeRecipient, err := s.recipientsService.GetRecipientBySlackUserID(ctx, event.OrgID, event.SlackUserID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	recipient, ok := maybeRecipient.Get()
	if !ok {
		log.Printf("⚠️ No recipient mapping for slack user %s - dropping interaction", event.SlackUserID)
		return nil
	}

	switch event.Action {
	case models.InteractionClicked, models.InteractionReplied:
		if err := s.interactionsRepo.MarkClicked(ctx, event.OrgID, recipient.UserID, event.Feature); err != nil {
			return fmt.Errorf("failed to mark interaction clicked: %w", err)
		}
	case models.InteractionDismissed:
		if err := s.interactionsRepo.MarkDismissed(ctx, event.OrgID, recipient.UserID, event.Feature); err != nil {
			return fmt.Errorf("failed to mark interaction dismissed: %w", err)
		}
	default:
		return fmt.Errorf("unknown interaction action: %s", event.Action)
	}
	return nil
}

func (s *ActivityService) ListRecentInteractions(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	limit int,
) ([]*models.NotificationInteraction, error) {
	interactions, err := s.interactionsRepo.ListRecentInteractions(ctx, organizationID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent interactions: %w", err)
	}
	return interactions, nil
}
