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

type PostgresTranscriptQueueRepository struct {
	db     *sqlx.DB
	schema string
}

var transcriptQueueColumns = []string{
	"call_id",
	"organization_id",
	"attempts",
	"max_attempts",
	"priority",
	"last_attempt_at",
	"last_error",
	"leased_until",
	"created_at",
}

func NewPostgresTranscriptQueueRepository(db *sqlx.DB, schema string) *PostgresTranscriptQueueRepository {
	return &PostgresTranscriptQueueRepository{db: db, schema: schema}
}

// EnqueueTranscriptFetch adds a call to the transcript retry queue. Re-queuing
// an already-queued call is a no-op, so webhook replays cannot reset the
// attempt counter.
func (r *PostgresTranscriptQueueRepository) EnqueueTranscriptFetch(
	ctx context.Context,
	item *models.TranscriptQueueItem,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.transcript_queue (
			call_id, organization_id, attempts, max_attempts, priority, created_at
		) VALUES ($1, $2, 0, $3, $4, NOW())
		ON CONFLICT (call_id) DO NOTHING`, r.schema)

	_, err := db.ExecContext(ctx, query, item.CallID, item.OrgID, item.MaxAttempts, item.Priority)
	if err != nil {
		return fmt.Errorf("failed to enqueue transcript fetch: %w", err)
	}
	return nil
}

// LeaseBatch claims up to limit unleased queue items for one worker tick,
// highest priority and oldest first. The lease keeps overlapping ticks from
// fetching the same transcript twice.
func (r *PostgresTranscriptQueueRepository) LeaseBatch(
	ctx context.Context,
	now time.Time,
	leaseFor time.Duration,
	limit int,
) ([]*models.TranscriptQueueItem, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(transcriptQueueColumns, ", ")
	query := fmt.Sprintf(`
		UPDATE %s.transcript_queue
		SET leased_until = $2
		WHERE call_id IN (
			SELECT call_id
			FROM %s.transcript_queue
			WHERE attempts < max_attempts
			  AND (leased_until IS NULL OR leased_until <= $1)
			ORDER BY
				CASE priority
					WHEN 'urgent' THEN 0
					WHEN 'high' THEN 1
					WHEN 'normal' THEN 2
					ELSE 3
				END,
				created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, r.schema, r.schema, returningStr)

	var leased []*models.TranscriptQueueItem
	if err := db.SelectContext(ctx, &leased, query, now, now.Add(leaseFor), limit); err != nil {
		return nil, fmt.Errorf("failed to lease transcript queue batch: %w", err)
	}
	return leased, nil
}

// RecordAttemptFailure bumps the attempt counter after a failed fetch and
// releases the lease so a later tick can retry.
func (r *PostgresTranscriptQueueRepository) RecordAttemptFailure(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	attemptErr string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.transcript_queue
		SET attempts = attempts + 1,
		    last_attempt_at = NOW(),
		    last_error = $3,
		    leased_until = NULL
		WHERE call_id = $1 AND organization_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, callID, organizationID, attemptErr); err != nil {
		return fmt.Errorf("failed to record transcript attempt failure: %w", err)
	}
	return nil
}

// DeleteQueueItem removes a call from the queue once its transcript fetch
// succeeded or its retry budget is exhausted.
func (r *PostgresTranscriptQueueRepository) DeleteQueueItem(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		DELETE FROM %s.transcript_queue
		WHERE call_id = $1 AND organization_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, callID, organizationID); err != nil {
		return fmt.Errorf("failed to delete transcript queue item: %w", err)
	}
	return nil
}

// CountQueued returns the live queue depth, exposed for ops visibility.
func (r *PostgresTranscriptQueueRepository) CountQueued(ctx context.Context) (int, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s.transcript_queue
		WHERE attempts < max_attempts`, r.schema)

	var count int
	if err := db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("failed to count queued transcripts: %w", err)
	}
	return count, nil
}
