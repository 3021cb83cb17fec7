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

type PostgresFeatureSettingsRepository struct {
	db     *sqlx.DB
	schema string
}

// DBFeatureSettings represents the database schema for the
// notification_feature_settings table. Thresholds and enabled categories are
// stored as JSON.
type DBFeatureSettings struct {
	OrgID                 models.OrgID `db:"organization_id"`
	Feature               string       `db:"feature"`
	Enabled               bool         `db:"enabled"`
	ChannelID             *string      `db:"channel_id"`
	DeliveryMethod        string       `db:"delivery_method"`
	ScheduleTimezone      string       `db:"schedule_timezone"`
	ThresholdsJSON        []byte       `db:"thresholds_json"`
	EnabledCategoriesJSON []byte       `db:"enabled_categories_json"`
	CreatedAt             sql.NullTime `db:"created_at"`
	UpdatedAt             sql.NullTime `db:"updated_at"`
}

var featureSettingsColumns = []string{
	"organization_id",
	"feature",
	"enabled",
	"channel_id",
	"delivery_method",
	"schedule_timezone",
	"thresholds_json",
	"enabled_categories_json",
	"created_at",
	"updated_at",
}

func NewPostgresFeatureSettingsRepository(db *sqlx.DB, schema string) *PostgresFeatureSettingsRepository {
	return &PostgresFeatureSettingsRepository{db: db, schema: schema}
}

func dbFeatureSettingsToModel(row *DBFeatureSettings) (*models.NotificationFeatureSettings, error) {
	settings := &models.NotificationFeatureSettings{
		OrgID:            row.OrgID,
		Feature:          models.FeatureKey(row.Feature),
		Enabled:          row.Enabled,
		ChannelID:        row.ChannelID,
		DeliveryMethod:   models.DeliveryMethod(row.DeliveryMethod),
		ScheduleTimezone: row.ScheduleTimezone,
	}
	if len(row.ThresholdsJSON) > 0 {
		if err := json.Unmarshal(row.ThresholdsJSON, &settings.Thresholds); err != nil {
			return nil, fmt.Errorf("failed to decode thresholds for feature %s: %w", row.Feature, err)
		}
	}
	if len(row.EnabledCategoriesJSON) > 0 {
		if err := json.Unmarshal(row.EnabledCategoriesJSON, &settings.EnabledCategories); err != nil {
			return nil, fmt.Errorf("failed to decode enabled categories for feature %s: %w", row.Feature, err)
		}
	}
	if row.CreatedAt.Valid {
		settings.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		settings.UpdatedAt = row.UpdatedAt.Time
	}
	return settings, nil
}

func (r *PostgresFeatureSettingsRepository) GetFeatureSettings(
	ctx context.Context,
	organizationID models.OrgID,
	feature models.FeatureKey,
) (mo.Option[*models.NotificationFeatureSettings], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(featureSettingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.notification_feature_settings
		WHERE organization_id = $1 AND feature = $2`, columnsStr, r.schema)

	var row DBFeatureSettings
	err := db.GetContext(ctx, &row, query, organizationID, feature)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.NotificationFeatureSettings](), nil
		}
		return mo.None[*models.NotificationFeatureSettings](), fmt.Errorf("failed to get feature settings: %w", err)
	}

	converted, err := dbFeatureSettingsToModel(&row)
	if err != nil {
		return mo.None[*models.NotificationFeatureSettings](), err
	}
	return mo.Some(converted), nil
}

func (r *PostgresFeatureSettingsRepository) UpsertFeatureSettings(
	ctx context.Context,
	settings *models.NotificationFeatureSettings,
) error {
	db := dbtx.GetTransactional(ctx, r.db)

	thresholdsJSON, err := json.Marshal(settings.Thresholds)
	if err != nil {
		return fmt.Errorf("failed to encode thresholds: %w", err)
	}
	categoriesJSON, err := json.Marshal(settings.EnabledCategories)
	if err != nil {
		return fmt.Errorf("failed to encode enabled categories: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.notification_feature_settings (
			organization_id, feature, enabled, channel_id, delivery_method,
			schedule_timezone, thresholds_json, enabled_categories_json,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (organization_id, feature)
		DO UPDATE SET
			enabled = EXCLUDED.enabled,
			channel_id = EXCLUDED.channel_id,
			delivery_method = EXCLUDED.delivery_method,
			schedule_timezone = EXCLUDED.schedule_timezone,
			thresholds_json = EXCLUDED.thresholds_json,
			enabled_categories_json = EXCLUDED.enabled_categories_json,
			updated_at = NOW()`, r.schema)

	_, err = db.ExecContext(ctx, query,
		settings.OrgID, settings.Feature, settings.Enabled, settings.ChannelID,
		settings.DeliveryMethod, settings.ScheduleTimezone, thresholdsJSON, categoriesJSON)
	if err != nil {
		return fmt.Errorf("failed to upsert feature settings: %w", err)
	}
	return nil
}

// ListOrgsWithFeatureEnabled returns the org IDs whose settings row for a
// feature exists and is enabled, the fan-out set for one scheduled job.
func (r *PostgresFeatureSettingsRepository) ListOrgsWithFeatureEnabled(
	ctx context.Context,
	feature models.FeatureKey,
) ([]models.OrgID, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT organization_id
		FROM %s.notification_feature_settings
		WHERE feature = $1 AND enabled = TRUE
		ORDER BY organization_id`, r.schema)

	var orgIDs []models.OrgID
	if err := db.SelectContext(ctx, &orgIDs, query, feature); err != nil {
		return nil, fmt.Errorf("failed to list orgs with feature enabled: %w", err)
	}
	return orgIDs, nil
}
