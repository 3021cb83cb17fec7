package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresQueuedNotificationsRepository struct {
	db     *sqlx.DB
	schema string
}

var queuedNotificationsColumns = []string{
	"id",
	"user_id",
	"organization_id",
	"feature",
	"priority",
	"channel",
	"payload",
	"scheduled_for",
	"status",
	"attempts",
	"max_attempts",
	"last_attempt_at",
	"last_error",
	"dedupe_key",
	"created_at",
	"updated_at",
}

func NewPostgresQueuedNotificationsRepository(db *sqlx.DB, schema string) *PostgresQueuedNotificationsRepository {
	return &PostgresQueuedNotificationsRepository{db: db, schema: schema}
}

// EnqueueNotification inserts a deferred notification. When a dedupe key is
// set and a live row with the same key already exists, the insert is a no-op
// and the existing row is returned.
func (r *PostgresQueuedNotificationsRepository) EnqueueNotification(
	ctx context.Context,
	n *models.QueuedNotification,
) (*models.QueuedNotification, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	if n.DedupeKey != nil {
		existing, err := r.findLiveByDedupeKey(ctx, n.OrgID, *n.DedupeKey)
		if err != nil {
			return nil, err
		}
		if found, ok := existing.Get(); ok {
			return found, nil
		}
	}

	returningStr := strings.Join(queuedNotificationsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.queued_notifications (
			id, user_id, organization_id, feature, priority, channel, payload,
			scheduled_for, status, attempts, max_attempts, dedupe_key,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, $11, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	var inserted models.QueuedNotification
	err := db.QueryRowxContext(ctx, query,
		n.ID, n.UserID, n.OrgID, n.Feature, n.Priority, n.Channel, n.Payload,
		n.ScheduledFor, n.Status, n.MaxAttempts, n.DedupeKey).
		StructScan(&inserted)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return &inserted, nil
}

func (r *PostgresQueuedNotificationsRepository) findLiveByDedupeKey(
	ctx context.Context,
	organizationID models.OrgID,
	dedupeKey string,
) (mo.Option[*models.QueuedNotification], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(queuedNotificationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.queued_notifications
		WHERE organization_id = $1
		  AND dedupe_key = $2
		  AND status IN ('pending', 'scheduled')
		LIMIT 1`, columnsStr, r.schema)

	var n models.QueuedNotification
	err := db.GetContext(ctx, &n, query, organizationID, dedupeKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.QueuedNotification](), nil
		}
		return mo.None[*models.QueuedNotification](), fmt.Errorf("failed to find queued notification by dedupe key: %w", err)
	}
	return mo.Some(&n), nil
}

// LeaseDueBatch claims up to limit due notifications for one drain pass.
// FOR UPDATE SKIP LOCKED keeps concurrent drainers from double-claiming a row.
// Attempts are incremented at lease time so a crash mid-send still counts
// against the retry budget.
func (r *PostgresQueuedNotificationsRepository) LeaseDueBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*models.QueuedNotification, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(queuedNotificationsColumns, ", ")
	query := fmt.Sprintf(`
		UPDATE %s.queued_notifications
		SET attempts = attempts + 1,
		    last_attempt_at = $1,
		    updated_at = NOW()
		WHERE id IN (
			SELECT id
			FROM %s.queued_notifications
			WHERE status IN ('pending', 'scheduled')
			  AND scheduled_for <= $1
			  AND attempts < max_attempts
			ORDER BY
				CASE priority
					WHEN 'urgent' THEN 0
					WHEN 'high' THEN 1
					WHEN 'normal' THEN 2
					ELSE 3
				END,
				scheduled_for
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, r.schema, r.schema, returningStr)

	var leased []*models.QueuedNotification
	if err := db.SelectContext(ctx, &leased, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to lease due notifications: %w", err)
	}
	return leased, nil
}

// SettleNotification moves a leased notification to its post-attempt state.
// Rows already in a terminal state are never overwritten.
func (r *PostgresQueuedNotificationsRepository) SettleNotification(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
	status models.QueuedNotificationStatus,
	lastError *string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.queued_notifications
		SET status = $3,
		    last_error = $4,
		    updated_at = NOW()
		WHERE id = $1
		  AND organization_id = $2
		  AND status NOT IN ('sent', 'cancelled')`, r.schema)

	if _, err := db.ExecContext(ctx, query, id, organizationID, status, lastError); err != nil {
		return fmt.Errorf("failed to settle queued notification: %w", err)
	}
	return nil
}

// RescheduleNotification pushes a still-live notification to a later instant,
// used when the policy engine defers a leased row again.
func (r *PostgresQueuedNotificationsRepository) RescheduleNotification(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
	scheduledFor time.Time,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.queued_notifications
		SET scheduled_for = $3,
		    status = 'scheduled',
		    updated_at = NOW()
		WHERE id = $1
		  AND organization_id = $2
		  AND status NOT IN ('sent', 'cancelled')`, r.schema)

	if _, err := db.ExecContext(ctx, query, id, organizationID, scheduledFor); err != nil {
		return fmt.Errorf("failed to reschedule queued notification: %w", err)
	}
	return nil
}

// CountPendingForUser returns how many live notifications a user has waiting,
// an input to the batching decision.
func (r *PostgresQueuedNotificationsRepository) CountPendingForUser(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (int, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.queued_notifications
		WHERE organization_id = $1
		  AND user_id = $2
		  AND status IN ('pending', 'scheduled')`, r.schema)

	var count int
	if err := db.GetContext(ctx, &count, query, organizationID, userID); err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return count, nil
}

// FailExhaustedNotifications marks rows whose retry budget ran out so drains
// stop picking them up.
func (r *PostgresQueuedNotificationsRepository) FailExhaustedNotifications(
	ctx context.Context,
) (int64, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.queued_notifications
		SET status = 'failed',
		    updated_at = NOW()
		WHERE status IN ('pending', 'scheduled')
		  AND attempts >= max_attempts`, r.schema)

	result, err := db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted notifications: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}
