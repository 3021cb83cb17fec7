package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresCallsRepository struct {
	db     *sqlx.DB
	schema string
}

var callsColumns = []string{
	"id",
	"organization_id",
	"provider",
	"external_id",
	"direction",
	"status",
	"started_at",
	"ended_at",
	"duration_seconds",
	"from_number",
	"to_number",
	"agent_email",
	"owner_user_id",
	"owner_email",
	"recording_url",
	"transcript_text",
	"transcript_json",
	"transcript_status",
	"created_at",
	"updated_at",
}

func NewPostgresCallsRepository(db *sqlx.DB, schema string) *PostgresCallsRepository {
	return &PostgresCallsRepository{db: db, schema: schema}
}

// UpsertCallByExternalID inserts or refreshes a call keyed on
// (organization_id, provider, external_id). Webhook replays land on the same
// row. Returns the stored call and whether the row was newly inserted, which
// gates the once-per-call side effects downstream.
func (r *PostgresCallsRepository) UpsertCallByExternalID(
	ctx context.Context,
	call *models.Call,
) (*models.Call, bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(callsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.calls (
			id, organization_id, provider, external_id, direction, status,
			started_at, ended_at, duration_seconds, from_number, to_number,
			agent_email, owner_user_id, owner_email, recording_url,
			transcript_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		ON CONFLICT (organization_id, provider, external_id)
		DO UPDATE SET
			direction = EXCLUDED.direction,
			status = COALESCE(EXCLUDED.status, %[1]s.calls.status),
			started_at = COALESCE(EXCLUDED.started_at, %[1]s.calls.started_at),
			ended_at = COALESCE(EXCLUDED.ended_at, %[1]s.calls.ended_at),
			duration_seconds = COALESCE(EXCLUDED.duration_seconds, %[1]s.calls.duration_seconds),
			from_number = COALESCE(EXCLUDED.from_number, %[1]s.calls.from_number),
			to_number = COALESCE(EXCLUDED.to_number, %[1]s.calls.to_number),
			agent_email = COALESCE(EXCLUDED.agent_email, %[1]s.calls.agent_email),
			owner_user_id = COALESCE(EXCLUDED.owner_user_id, %[1]s.calls.owner_user_id),
			owner_email = COALESCE(EXCLUDED.owner_email, %[1]s.calls.owner_email),
			recording_url = COALESCE(EXCLUDED.recording_url, %[1]s.calls.recording_url),
			updated_at = NOW()
		RETURNING %s, (xmax = 0) AS inserted`, r.schema, returningStr)

	type upsertedCall struct {
		models.Call
		Inserted bool `db:"inserted"`
	}
	var row upsertedCall
	err := db.QueryRowxContext(ctx, query,
		call.ID, call.OrgID, call.Provider, call.ExternalID, call.Direction, call.Status,
		call.StartedAt, call.EndedAt, call.DurationSeconds, call.FromNumber, call.ToNumber,
		call.AgentEmail, call.OwnerUserID, call.OwnerEmail, call.RecordingURL,
		call.TranscriptStatus).
		StructScan(&row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert call: %w", err)
	}
	return &row.Call, row.Inserted, nil
}

func (r *PostgresCallsRepository) GetCallByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Call], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(callsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.calls
		WHERE id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var call models.Call
	err := db.GetContext(ctx, &call, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Call](), nil
		}
		return mo.None[*models.Call](), fmt.Errorf("failed to get call: %w", err)
	}
	return mo.Some(&call), nil
}

// UpdateCallTranscript stores a fetched transcript and flips the status.
func (r *PostgresCallsRepository) UpdateCallTranscript(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	transcriptText string,
	transcriptJSON json.RawMessage,
	status models.TranscriptStatus,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.calls
		SET transcript_text = $3,
		    transcript_json = $4,
		    transcript_status = $5,
		    updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, r.schema)

	_, err := db.ExecContext(ctx, query, callID, organizationID, transcriptText, transcriptJSON, status)
	if err != nil {
		return fmt.Errorf("failed to update call transcript: %w", err)
	}
	return nil
}

// SetCallTranscriptStatus flips just the transcript status, used when a fetch
// is queued or permanently abandoned.
func (r *PostgresCallsRepository) SetCallTranscriptStatus(
	ctx context.Context,
	organizationID models.OrgID,
	callID string,
	status models.TranscriptStatus,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.calls
		SET transcript_status = $3,
		    updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, callID, organizationID, status); err != nil {
		return fmt.Errorf("failed to set call transcript status: %w", err)
	}
	return nil
}
