package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresInAppNotificationsRepository struct {
	db     *sqlx.DB
	schema string
}

var inAppNotificationsColumns = []string{
	"id",
	"user_id",
	"organization_id",
	"category",
	"notif_type",
	"title",
	"message",
	"action_url",
	"metadata",
	"read_at",
	"created_at",
}

func NewPostgresInAppNotificationsRepository(db *sqlx.DB, schema string) *PostgresInAppNotificationsRepository {
	return &PostgresInAppNotificationsRepository{db: db, schema: schema}
}

func (r *PostgresInAppNotificationsRepository) InsertInAppNotification(
	ctx context.Context,
	n *models.InAppNotification,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.inapp_notifications (
			id, user_id, organization_id, category, notif_type, title,
			message, action_url, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`, r.schema)

	_, err := db.ExecContext(ctx, query,
		n.ID, n.UserID, n.OrgID, n.Category, n.Type, n.Title,
		n.Message, n.ActionURL, n.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert in-app notification: %w", err)
	}
	return nil
}

func (r *PostgresInAppNotificationsRepository) ListUnreadForUser(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	limit int,
) ([]*models.InAppNotification, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(inAppNotificationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.inapp_notifications
		WHERE organization_id = $1 AND user_id = $2 AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT $3`, columnsStr, r.schema)

	var notifications []*models.InAppNotification
	if err := db.SelectContext(ctx, &notifications, query, organizationID, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list unread in-app notifications: %w", err)
	}
	return notifications, nil
}

func (r *PostgresInAppNotificationsRepository) MarkRead(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	id string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.inapp_notifications
		SET read_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND user_id = $3 AND read_at IS NULL`, r.schema)

	if _, err := db.ExecContext(ctx, query, id, organizationID, userID); err != nil {
		return fmt.Errorf("failed to mark in-app notification read: %w", err)
	}
	return nil
}
