package inapp

import (
	"context"
	"fmt"
	"log"

	"use60backend/core"
	"use60backend/db"
	"use60backend/models"
)

type InAppNotificationsService struct {
	inappRepo *db.PostgresInAppNotificationsRepository
}

func NewInAppNotificationsService(repo *db.PostgresInAppNotificationsRepository) *InAppNotificationsService {
	return &InAppNotificationsService{inappRepo: repo}
}

func (s *InAppNotificationsService) CreateInAppNotification(
	ctx context.Context,
	n *models.InAppNotification,
) error {
	log.Printf("📋 Starting to create in-app notification for user: %s", n.UserID)

	if n.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if n.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if n.ID == "" {
		n.ID = core.NewID("ian")
	}

	if err := s.inappRepo.InsertInAppNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to create in-app notification: %w", err)
	}

	log.Printf("📋 Completed successfully - created in-app notification: %s", n.ID)
	return nil
}

func (s *InAppNotificationsService) ListUnreadForUser(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	limit int,
) ([]*models.InAppNotification, error) {
	if limit <= 0 {
		limit = 50
	}

	notifications, err := s.inappRepo.ListUnreadForUser(ctx, organizationID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unread in-app notifications: %w", err)
	}
	return notifications, nil
}

func (s *InAppNotificationsService) MarkRead(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	id string,
) error {
	if id == "" {
		return fmt.Errorf("notification ID cannot be empty")
	}

	if err := s.inappRepo.MarkRead(ctx, organizationID, userID, id); err != nil {
		return fmt.Errorf("failed to mark in-app notification read: %w", err)
	}
	return nil
}
