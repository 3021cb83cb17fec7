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

// PostgresCRMRepository is a read-only projection over the CRM tables. The
// engine never mutates deals, meetings, or companies; it only reads them to
// evaluate triggers and assemble message context.
type PostgresCRMRepository struct {
	db     *sqlx.DB
	schema string
}

var dealsColumns = []string{
	"id",
	"organization_id",
	"company_id",
	"owner_user_id",
	"name",
	"stage",
	"amount",
	"health",
	"risk",
	"clarity",
	"champion_name",
	"last_activity_at",
	"updated_at",
}

var meetingsColumns = []string{
	"id",
	"organization_id",
	"deal_id",
	"call_id",
	"organizer_user_id",
	"title",
	"starts_at",
	"ends_at",
	"has_recording",
	"transcript_status",
}

func NewPostgresCRMRepository(db *sqlx.DB, schema string) *PostgresCRMRepository {
	return &PostgresCRMRepository{db: db, schema: schema}
}

func (r *PostgresCRMRepository) GetDealByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Deal], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(dealsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.deals
		WHERE id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var deal models.Deal
	err := db.GetContext(ctx, &deal, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Deal](), nil
		}
		return mo.None[*models.Deal](), fmt.Errorf("failed to get deal: %w", err)
	}
	return mo.Some(&deal), nil
}

// ListOpenDeals returns every deal not in a closed stage, the candidate set
// for the momentum nudge job. Trigger evaluation happens in Go so the rules
// stay testable.
func (r *PostgresCRMRepository) ListOpenDeals(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Deal, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(dealsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.deals
		WHERE organization_id = $1
		  AND stage NOT IN ('closed_won', 'closed_lost')
		ORDER BY amount DESC`, columnsStr, r.schema)

	var deals []*models.Deal
	if err := db.SelectContext(ctx, &deals, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list open deals: %w", err)
	}
	return deals, nil
}

// ListOpenDealsByOwner scopes the open-deal set to one rep, used by the
// morning brief and re-engagement content lookups.
func (r *PostgresCRMRepository) ListOpenDealsByOwner(
	ctx context.Context,
	organizationID models.OrgID,
	ownerUserID string,
) ([]*models.Deal, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(dealsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.deals
		WHERE organization_id = $1
		  AND owner_user_id = $2
		  AND stage NOT IN ('closed_won', 'closed_lost')
		ORDER BY amount DESC`, columnsStr, r.schema)

	var deals []*models.Deal
	if err := db.SelectContext(ctx, &deals, query, organizationID, ownerUserID); err != nil {
		return nil, fmt.Errorf("failed to list open deals by owner: %w", err)
	}
	return deals, nil
}

func (r *PostgresCRMRepository) GetMeetingByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Meeting], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(meetingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.meetings
		WHERE id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var meeting models.Meeting
	err := db.GetContext(ctx, &meeting, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Meeting](), nil
		}
		return mo.None[*models.Meeting](), fmt.Errorf("failed to get meeting: %w", err)
	}
	return mo.Some(&meeting), nil
}

// ListMeetingsStartingBetween returns meetings whose start falls in
// [from, to), the window scan behind meeting prep.
func (r *PostgresCRMRepository) ListMeetingsStartingBetween(
	ctx context.Context,
	organizationID models.OrgID,
	from, to time.Time,
) ([]*models.Meeting, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(meetingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.meetings
		WHERE organization_id = $1
		  AND starts_at >= $2
		  AND starts_at < $3
		ORDER BY starts_at`, columnsStr, r.schema)

	var meetings []*models.Meeting
	if err := db.SelectContext(ctx, &meetings, query, organizationID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list meetings starting between: %w", err)
	}
	return meetings, nil
}

// ListMeetingsForUserBetween scopes the window scan to one organizer.
func (r *PostgresCRMRepository) ListMeetingsForUserBetween(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	from, to time.Time,
) ([]*models.Meeting, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(meetingsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.meetings
		WHERE organization_id = $1
		  AND organizer_user_id = $2
		  AND starts_at >= $3
		  AND starts_at < $4
		ORDER BY starts_at`, columnsStr, r.schema)

	var meetings []*models.Meeting
	if err := db.SelectContext(ctx, &meetings, query, organizationID, userID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list meetings for user: %w", err)
	}
	return meetings, nil
}

func (r *PostgresCRMRepository) GetCompanyByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Company], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		SELECT id, organization_id, name, domain
		FROM %s.companies
		WHERE id = $1 AND organization_id = $2`, r.schema)

	var company models.Company
	err := db.GetContext(ctx, &company, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Company](), nil
		}
		return mo.None[*models.Company](), fmt.Errorf("failed to get company: %w", err)
	}
	return mo.Some(&company), nil
}
