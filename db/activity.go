package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresActivityRepository struct {
	db     *sqlx.DB
	schema string
}

var activityEventsColumns = []string{
	"id",
	"user_id",
	"organization_id",
	"source",
	"event_type",
	"occurred_at",
	"weekday",
	"hour",
	"session_id",
}

func NewPostgresActivityRepository(db *sqlx.DB, schema string) *PostgresActivityRepository {
	return &PostgresActivityRepository{db: db, schema: schema}
}

func (r *PostgresActivityRepository) InsertActivityEvent(
	ctx context.Context,
	event *models.ActivityEvent,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.activity_events (
			id, user_id, organization_id, source, event_type,
			occurred_at, weekday, hour, session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, r.schema)

	_, err := db.ExecContext(ctx, query,
		event.ID, event.UserID, event.OrgID, event.Source, event.Type,
		event.OccurredAt, event.Weekday, event.Hour, event.SessionID)
	if err != nil {
		return fmt.Errorf("failed to insert activity event: %w", err)
	}
	return nil
}

// ListActivityEventsSince returns a user's activity inside the metrics
// lookback window, oldest first.
func (r *PostgresActivityRepository) ListActivityEventsSince(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	since time.Time,
) ([]*models.ActivityEvent, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(activityEventsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.activity_events
		WHERE organization_id = $1 AND user_id = $2 AND occurred_at >= $3
		ORDER BY occurred_at`, columnsStr, r.schema)

	var events []*models.ActivityEvent
	if err := db.SelectContext(ctx, &events, query, organizationID, userID, since); err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	return events, nil
}

// InsertCommunicationEvent writes the CRM activity trail entry for an
// ingested call. Deduped on (user_id, external_id, source) so webhook replays
// do not double-write.
func (r *PostgresActivityRepository) InsertCommunicationEvent(
	ctx context.Context,
	event *models.CommunicationEvent,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.communication_events (
			id, user_id, organization_id, external_id, source, event_type,
			occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, external_id, source) DO NOTHING`, r.schema)

	_, err := db.ExecContext(ctx, query,
		event.ID, event.UserID, event.OrgID, event.ExternalID, event.Source,
		event.Type, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert communication event: %w", err)
	}
	return nil
}

// InsertOutboundActivity records a rep-initiated touch, deduped on
// (user_id, activity_type, outbound_type, original_activity_id).
func (r *PostgresActivityRepository) InsertOutboundActivity(
	ctx context.Context,
	activity *models.OutboundActivity,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.outbound_activities (
			id, user_id, organization_id, activity_type, outbound_type,
			original_activity_id, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id, activity_type, outbound_type, original_activity_id) DO NOTHING`, r.schema)

	_, err := db.ExecContext(ctx, query,
		activity.ID, activity.UserID, activity.OrgID, activity.Type,
		activity.OutboundType, activity.OriginalActivityID, activity.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbound activity: %w", err)
	}
	return nil
}

// UpsertIntegrationHeartbeat records the latest successful webhook delivery
// for an (org, provider) pair. Timestamps only move forward.
func (r *PostgresActivityRepository) UpsertIntegrationHeartbeat(
	ctx context.Context,
	heartbeat *models.IntegrationHeartbeat,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.integration_heartbeats (organization_id, provider, last_event_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, provider)
		DO UPDATE SET last_event_at = GREATEST(%[1]s.integration_heartbeats.last_event_at, EXCLUDED.last_event_at)`, r.schema)

	_, err := db.ExecContext(ctx, query, heartbeat.OrgID, heartbeat.Provider, heartbeat.LastEventAt)
	if err != nil {
		return fmt.Errorf("failed to upsert integration heartbeat: %w", err)
	}
	return nil
}
