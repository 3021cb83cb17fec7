package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresInteractionsRepository struct {
	db     *sqlx.DB
	schema string
}

var interactionsColumns = []string{
	"id",
	"user_id",
	"organization_id",
	"feature",
	"delivered_at",
	"clicked_at",
	"dismissed_at",
	"time_to_interaction_seconds",
	"weekday",
	"hour",
}

func NewPostgresInteractionsRepository(db *sqlx.DB, schema string) *PostgresInteractionsRepository {
	return &PostgresInteractionsRepository{db: db, schema: schema}
}

// InsertDelivered writes the interaction row at delivery time. Clicks and
// dismissals arrive later and update it in place.
func (r *PostgresInteractionsRepository) InsertDelivered(
	ctx context.Context,
	interaction *models.NotificationInteraction,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.notification_interactions (
			id, user_id, organization_id, feature, delivered_at, weekday, hour
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`, r.schema)

	_, err := db.ExecContext(ctx, query,
		interaction.ID, interaction.UserID, interaction.OrgID, interaction.Feature,
		interaction.DeliveredAt, interaction.Weekday, interaction.Hour)
	if err != nil {
		return fmt.Errorf("failed to insert delivered interaction: %w", err)
	}
	return nil
}

// MarkClicked stamps the most recent un-clicked delivery of a feature to this
// user. The first interaction wins; replays are no-ops.
func (r *PostgresInteractionsRepository) MarkClicked(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	feature models.FeatureKey,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.notification_interactions
		SET clicked_at = NOW(),
		    time_to_interaction_seconds = EXTRACT(EPOCH FROM NOW() - delivered_at)::int
		WHERE id = (
			SELECT id
			FROM %s.notification_interactions
			WHERE organization_id = $1
			  AND user_id = $2
			  AND feature = $3
			  AND clicked_at IS NULL
			  AND dismissed_at IS NULL
			ORDER BY delivered_at DESC
			LIMIT 1
		)`, r.schema, r.schema)

	if _, err := db.ExecContext(ctx, query, organizationID, userID, feature); err != nil {
		return fmt.Errorf("failed to mark interaction clicked: %w", err)
	}
	return nil
}

// MarkDismissed stamps the most recent un-interacted delivery of a feature.
func (r *PostgresInteractionsRepository) MarkDismissed(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	feature models.FeatureKey,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.notification_interactions
		SET dismissed_at = NOW(),
		    time_to_interaction_seconds = EXTRACT(EPOCH FROM NOW() - delivered_at)::int
		WHERE id = (
			SELECT id
			FROM %s.notification_interactions
			WHERE organization_id = $1
			  AND user_id = $2
			  AND feature = $3
			  AND clicked_at IS NULL
			  AND dismissed_at IS NULL
			ORDER BY delivered_at DESC
			LIMIT 1
		)`, r.schema, r.schema)

	if _, err := db.ExecContext(ctx, query, organizationID, userID, feature); err != nil {
		return fmt.Errorf("failed to mark interaction dismissed: %w", err)
	}
	return nil
}

// ListRecentInteractions returns the most recent interactions first, the
// order the fatigue computation expects.
func (r *PostgresInteractionsRepository) ListRecentInteractions(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	limit int,
) ([]*models.NotificationInteraction, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(interactionsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.notification_interactions
		WHERE organization_id = $1 AND user_id = $2
		ORDER BY delivered_at DESC
		LIMIT $3`, columnsStr, r.schema)

	var interactions []*models.NotificationInteraction
	if err := db.SelectContext(ctx, &interactions, query, organizationID, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent interactions: %w", err)
	}
	return interactions, nil
}
