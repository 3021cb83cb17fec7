package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresUserMetricsRepository struct {
	db     *sqlx.DB
	schema string
}

// DBUserMetrics represents the database schema for the user_metrics table.
// Scores and activity patterns are stored as JSON blobs.
type DBUserMetrics struct {
	ID                         string       `db:"id"`
	UserID                     string       `db:"user_id"`
	OrgID                      models.OrgID `db:"organization_id"`
	ScoresJSON                 []byte       `db:"scores_json"`
	Segment                    string       `db:"segment"`
	PatternsJSON               []byte       `db:"patterns_json"`
	FatigueScore               int          `db:"fatigue_score"`
	FatigueLevel               string       `db:"fatigue_level"`
	PreferredFrequency         string       `db:"preferred_frequency"`
	AvgDailySessions           float64      `db:"avg_daily_sessions"`
	NotificationsSinceFeedback int          `db:"notifications_since_feedback"`
	LastFeedbackRequestedAt    *time.Time   `db:"last_feedback_requested_at"`
	LastActivityAt             *time.Time   `db:"last_activity_at"`
	UpdatedAt                  time.Time    `db:"updated_at"`
}

// dbPatterns is the shape of the patterns_json column.
type dbPatterns struct {
	PeakHour           *int          `json:"peak_hour,omitempty"`
	TypicalActiveHours map[int][]int `json:"typical_active_hours"`
}

var userMetricsColumns = []string{
	"id",
	"user_id",
	"organization_id",
	"scores_json",
	"segment",
	"patterns_json",
	"fatigue_score",
	"fatigue_level",
	"preferred_frequency",
	"avg_daily_sessions",
	"notifications_since_feedback",
	"last_feedback_requested_at",
	"last_activity_at",
	"updated_at",
}

func NewPostgresUserMetricsRepository(db *sqlx.DB, schema string) *PostgresUserMetricsRepository {
	return &PostgresUserMetricsRepository{db: db, schema: schema}
}

func dbUserMetricsToModel(row *DBUserMetrics) (*models.UserMetrics, error) {
	var scores models.EngagementScores
	if len(row.ScoresJSON) > 0 {
		if err := json.Unmarshal(row.ScoresJSON, &scores); err != nil {
			return nil, fmt.Errorf("failed to decode scores for user %s: %w", row.UserID, err)
		}
	}
	var patterns dbPatterns
	if len(row.PatternsJSON) > 0 {
		if err := json.Unmarshal(row.PatternsJSON, &patterns); err != nil {
			return nil, fmt.Errorf("failed to decode patterns for user %s: %w", row.UserID, err)
		}
	}
	if patterns.TypicalActiveHours == nil {
		patterns.TypicalActiveHours = map[int][]int{}
	}

	return &models.UserMetrics{
		ID:                         row.ID,
		UserID:                     row.UserID,
		OrgID:                      row.OrgID,
		Scores:                     scores,
		Segment:                    models.Segment(row.Segment),
		FatigueScore:               row.FatigueScore,
		FatigueLevel:               models.FatigueLevel(row.FatigueLevel),
		PreferredFrequency:         models.PreferredFrequency(row.PreferredFrequency),
		TypicalActiveHours:         patterns.TypicalActiveHours,
		PeakHour:                   patterns.PeakHour,
		AvgDailySessions:           row.AvgDailySessions,
		NotificationsSinceFeedback: row.NotificationsSinceFeedback,
		LastFeedbackRequestedAt:    row.LastFeedbackRequestedAt,
		LastActivityAt:             row.LastActivityAt,
		UpdatedAt:                  row.UpdatedAt,
	}, nil
}

func modelToDBUserMetrics(m *models.UserMetrics) (*DBUserMetrics, error) {
	scoresJSON, err := json.Marshal(m.Scores)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scores: %w", err)
	}
	patternsJSON, err := json.Marshal(dbPatterns{
		PeakHour:           m.PeakHour,
		TypicalActiveHours: m.TypicalActiveHours,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode patterns: %w", err)
	}

	return &DBUserMetrics{
		ID:                         m.ID,
		UserID:                     m.UserID,
		OrgID:                      m.OrgID,
		ScoresJSON:                 scoresJSON,
		Segment:                    string(m.Segment),
		PatternsJSON:               patternsJSON,
		FatigueScore:               m.FatigueScore,
		FatigueLevel:               string(m.FatigueLevel),
		PreferredFrequency:         string(m.PreferredFrequency),
		AvgDailySessions:           m.AvgDailySessions,
		NotificationsSinceFeedback: m.NotificationsSinceFeedback,
		LastFeedbackRequestedAt:    m.LastFeedbackRequestedAt,
		LastActivityAt:             m.LastActivityAt,
	}, nil
}

func (r *PostgresUserMetricsRepository) GetUserMetrics(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (mo.Option[*models.UserMetrics], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(userMetricsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.user_metrics
		WHERE user_id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var row DBUserMetrics
	err := db.GetContext(ctx, &row, query, userID, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.UserMetrics](), nil
		}
		return mo.None[*models.UserMetrics](), fmt.Errorf("failed to get user metrics: %w", err)
	}

	converted, err := dbUserMetricsToModel(&row)
	if err != nil {
		return mo.None[*models.UserMetrics](), err
	}
	return mo.Some(converted), nil
}

// UpsertUserMetrics writes the full derived state for one user, keyed on
// (user_id, organization_id).
func (r *PostgresUserMetricsRepository) UpsertUserMetrics(
	ctx context.Context,
	m *models.UserMetrics,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	row, err := modelToDBUserMetrics(m)
	if err != nil {
		return fmt.Errorf("failed to convert user metrics to db model: %w", err)
	}

	returningStr := strings.Join(userMetricsColumns, ", ")
	query := fmt.Sprintf(`
		INSERT INTO %s.user_metrics (
			id, user_id, organization_id, scores_json, segment, patterns_json,
			fatigue_score, fatigue_level, preferred_frequency, avg_daily_sessions,
			notifications_since_feedback, last_feedback_requested_at, last_activity_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (user_id, organization_id)
		DO UPDATE SET
			scores_json = EXCLUDED.scores_json,
			segment = EXCLUDED.segment,
			patterns_json = EXCLUDED.patterns_json,
			fatigue_score = EXCLUDED.fatigue_score,
			fatigue_level = EXCLUDED.fatigue_level,
			preferred_frequency = EXCLUDED.preferred_frequency,
			avg_daily_sessions = EXCLUDED.avg_daily_sessions,
			notifications_since_feedback = EXCLUDED.notifications_since_feedback,
			last_feedback_requested_at = EXCLUDED.last_feedback_requested_at,
			last_activity_at = EXCLUDED.last_activity_at,
			updated_at = NOW()
		RETURNING %s`, r.schema, returningStr)

	var returned DBUserMetrics
	err = db.QueryRowxContext(ctx, query,
		row.ID, row.UserID, row.OrgID, row.ScoresJSON, row.Segment, row.PatternsJSON,
		row.FatigueScore, row.FatigueLevel, row.PreferredFrequency, row.AvgDailySessions,
		row.NotificationsSinceFeedback, row.LastFeedbackRequestedAt, row.LastActivityAt).
		StructScan(&returned)
	if err != nil {
		return fmt.Errorf("failed to upsert user metrics: %w", err)
	}

	converted, err := dbUserMetricsToModel(&returned)
	if err != nil {
		return fmt.Errorf("failed to convert upserted user metrics: %w", err)
	}
	*m = *converted
	return nil
}

// IncrementNotificationsSinceFeedback bumps the counter used by the feedback
// request gate.
func (r *PostgresUserMetricsRepository) IncrementNotificationsSinceFeedback(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.user_metrics
		SET notifications_since_feedback = notifications_since_feedback + 1,
		    updated_at = NOW()
		WHERE user_id = $1 AND organization_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, userID, organizationID); err != nil {
		return fmt.Errorf("failed to increment notifications since feedback: %w", err)
	}
	return nil
}

// MarkFeedbackRequested resets the feedback counters after a feedback prompt
// went out.
func (r *PostgresUserMetricsRepository) MarkFeedbackRequested(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.user_metrics
		SET notifications_since_feedback = 0,
		    last_feedback_requested_at = NOW(),
		    updated_at = NOW()
		WHERE user_id = $1 AND organization_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, userID, organizationID); err != nil {
		return fmt.Errorf("failed to mark feedback requested: %w", err)
	}
	return nil
}
