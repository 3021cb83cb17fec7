package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/mo"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

// ErrDuplicateSentRecord is returned when another dispatcher already recorded
// the same (feature, org, recipient, entity, window bucket) send.
var ErrDuplicateSentRecord = errors.New("sent record already exists")

type PostgresSentLogRepository struct {
	db     *sqlx.DB
	schema string
}

var sentLogColumns = []string{
	"id",
	"feature",
	"organization_id",
	"recipient_id",
	"entity_id",
	"window_bucket",
	"sent_at",
	"slack_ts",
	"channel_id",
}

func NewPostgresSentLogRepository(db *sqlx.DB, schema string) *PostgresSentLogRepository {
	return &PostgresSentLogRepository{db: db, schema: schema}
}

// InsertSentRecord writes the dedupe record for a delivered notification. The
// table carries a unique constraint on (feature, organization_id,
// recipient_id, entity_id, window_bucket), so concurrent dispatchers racing on
// the same send collapse into one row and the loser gets
// ErrDuplicateSentRecord.
func (r *PostgresSentLogRepository) InsertSentRecord(
	ctx context.Context,
	record *models.SentRecord,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	returningStr := strings.Join(sentLogColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.sent_log (
			id, feature, organization_id, recipient_id, entity_id,
			window_bucket, sent_at, slack_ts, channel_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, r.schema, returningStr)

	err := db.QueryRowxContext(ctx, query,
		record.ID, record.Feature, record.OrgID, record.SlackUserID, record.EntityID,
		record.WindowBucket, record.SentAt, record.SlackTS, record.ChannelID).
		StructScan(record)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSentRecord
		}
		return fmt.Errorf("failed to insert sent record: %w", err)
	}
	return nil
}

// FindRecentSent returns the most recent send for a (feature, recipient,
// entity) tuple inside the given window. A zero window means "ever", used for
// features deduped forever.
func (r *PostgresSentLogRepository) FindRecentSent(
	ctx context.Context,
	organizationID models.OrgID,
	feature models.FeatureKey,
	slackUserID string,
	entityID string,
	window time.Duration,
) (mo.Option[*models.SentRecord], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(sentLogColumns, ", ")

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.sent_log
		WHERE organization_id = $1
		  AND feature = $2
		  AND recipient_id = $3
		  AND entity_id = $4`, columnsStr, r.schema)
	args := []any{organizationID, feature, slackUserID, entityID}
	if window > 0 {
		query += ` AND sent_at >= $5`
		args = append(args, time.Now().UTC().Add(-window))
	}
	query += `
		ORDER BY sent_at DESC
		LIMIT 1`

	var record models.SentRecord
	err := db.GetContext(ctx, &record, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.SentRecord](), nil
		}
		return mo.None[*models.SentRecord](), fmt.Errorf("failed to find recent sent record: %w", err)
	}
	return mo.Some(&record), nil
}

// SentCounts is the rate-limit snapshot for one recipient.
type SentCounts struct {
	HourCount  int        `db:"hour_count"`
	DayCount   int        `db:"day_count"`
	LastSentAt *time.Time `db:"last_sent_at"`
}

// CountSentSince returns how many notifications a recipient has received in
// the current hour and day windows, plus the last send instant for cooldown
// checks. hourStart and dayStart come from the caller's clock so the policy
// engine stays testable.
func (r *PostgresSentLogRepository) CountSentSince(
	ctx context.Context,
	organizationID models.OrgID,
	slackUserID string,
	hourStart time.Time,
	dayStart time.Time,
) (*SentCounts, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) FILTER (WHERE sent_at >= $3) AS hour_count,
			COUNT(*) FILTER (WHERE sent_at >= $4) AS day_count,
			MAX(sent_at) AS last_sent_at
		FROM %s.sent_log
		WHERE organization_id = $1 AND recipient_id = $2`, r.schema)

	var counts SentCounts
	if err := db.GetContext(ctx, &counts, query, organizationID, slackUserID, hourStart, dayStart); err != nil {
		return nil, fmt.Errorf("failed to count sent notifications: %w", err)
	}
	return &counts, nil
}
