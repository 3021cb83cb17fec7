package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresReengagementRepository struct {
	db     *sqlx.DB
	schema string
}

// DBReengagementAttempts tracks the per-user re-engagement attempt budget.
type DBReengagementAttempts struct {
	UserID        string       `db:"user_id"`
	OrgID         models.OrgID `db:"organization_id"`
	Segment       string       `db:"segment"`
	Attempts      int          `db:"attempts"`
	LastAttemptAt *time.Time   `db:"last_attempt_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

var reengagementColumns = []string{
	"user_id",
	"organization_id",
	"segment",
	"attempts",
	"last_attempt_at",
	"updated_at",
}

func NewPostgresReengagementRepository(db *sqlx.DB, schema string) *PostgresReengagementRepository {
	return &PostgresReengagementRepository{db: db, schema: schema}
}

// GetAttemptState returns the attempt history for a user in their current
// segment. A missing row means no attempts yet.
func (r *PostgresReengagementRepository) GetAttemptState(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	segment models.Segment,
) (*DBReengagementAttempts, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(reengagementColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.reengagement_attempts
		WHERE organization_id = $1 AND user_id = $2 AND segment = $3`, columnsStr, r.schema)

	var state DBReengagementAttempts
	err := db.GetContext(ctx, &state, query, organizationID, userID, segment)
	if err != nil {
		if err == sql.ErrNoRows {
			return &DBReengagementAttempts{
				UserID:  userID,
				OrgID:   organizationID,
				Segment: string(segment),
			}, nil
		}
		return nil, fmt.Errorf("failed to get reengagement attempt state: %w", err)
	}
	return &state, nil
}

// RecordAttempt bumps the attempt counter for a user's current segment.
// Moving to a different segment starts a fresh budget.
func (r *PostgresReengagementRepository) RecordAttempt(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	segment models.Segment,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.reengagement_attempts (
			user_id, organization_id, segment, attempts, last_attempt_at, updated_at
		) VALUES ($1, $2, $3, 1, NOW(), NOW())
		ON CONFLICT (user_id, organization_id, segment)
		DO UPDATE SET
			attempts = %[1]s.reengagement_attempts.attempts + 1,
			last_attempt_at = NOW(),
			updated_at = NOW()`, r.schema)

	if _, err := db.ExecContext(ctx, query, userID, organizationID, segment); err != nil {
		return fmt.Errorf("failed to record reengagement attempt: %w", err)
	}
	return nil
}

// ResetAttempts clears a user's attempt history after they came back.
func (r *PostgresReengagementRepository) ResetAttempts(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		DELETE FROM %s.reengagement_attempts
		WHERE organization_id = $1 AND user_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, organizationID, userID); err != nil {
		return fmt.Errorf("failed to reset reengagement attempts: %w", err)
	}
	return nil
}
