package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresOrganizationsRepository struct {
	db     *sqlx.DB
	schema string
}

var organizationsColumns = []string{
	"id",
	"name",
	"slack_team_id",
	"slack_bot_token",
	"schedule_timezone",
	"deactivated_at",
	"created_at",
	"updated_at",
}

func NewPostgresOrganizationsRepository(db *sqlx.DB, schema string) *PostgresOrganizationsRepository {
	return &PostgresOrganizationsRepository{db: db, schema: schema}
}

func (r *PostgresOrganizationsRepository) GetOrganizationByID(
	ctx context.Context,
	id models.OrgID,
) (mo.Option[*models.Organization], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(organizationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organizations
		WHERE id = $1`, columnsStr, r.schema)

	var org models.Organization
	err := db.GetContext(ctx, &org, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Organization](), nil
		}
		return mo.None[*models.Organization](), fmt.Errorf("failed to get organization: %w", err)
	}
	return mo.Some(&org), nil
}

// GetOrganizationBySlackTeamID resolves the org a Slack workspace belongs to.
// Inbound interaction events only carry the team id.
func (r *PostgresOrganizationsRepository) GetOrganizationBySlackTeamID(
	ctx context.Context,
	teamID string,
) (mo.Option[*models.Organization], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(organizationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organizations
		WHERE slack_team_id = $1
		  AND deactivated_at IS NULL`, columnsStr, r.schema)

	var org models.Organization
	err := db.GetContext(ctx, &org, query, teamID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Organization](), nil
		}
		return mo.None[*models.Organization](), fmt.Errorf("failed to get organization by team: %w", err)
	}
	return mo.Some(&org), nil
}

// ListOrganizationsWithWorkspace returns active orgs that have a connected
// Slack workspace, the population every scheduled job fans out over.
func (r *PostgresOrganizationsRepository) ListOrganizationsWithWorkspace(
	ctx context.Context,
) ([]*models.Organization, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(organizationsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.organizations
		WHERE slack_team_id IS NOT NULL
		  AND slack_bot_token IS NOT NULL
		  AND deactivated_at IS NULL
		ORDER BY created_at`, columnsStr, r.schema)

	var orgs []*models.Organization
	if err := db.SelectContext(ctx, &orgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organizations with workspace: %w", err)
	}
	return orgs, nil
}
