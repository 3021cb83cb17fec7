package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	dbtx "use60backend/db/tx"
	"use60backend/models"
)

type PostgresRecipientsRepository struct {
	db     *sqlx.DB
	schema string
}

var recipientsColumns = []string{
	"organization_id",
	"user_id",
	"slack_user_id",
	"email",
	"name",
}

func NewPostgresRecipientsRepository(db *sqlx.DB, schema string) *PostgresRecipientsRepository {
	return &PostgresRecipientsRepository{db: db, schema: schema}
}

func (r *PostgresRecipientsRepository) GetRecipientByUserID(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (mo.Option[*models.Recipient], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(recipientsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.notification_recipients
		WHERE organization_id = $1 AND user_id = $2`, columnsStr, r.schema)

	var recipient models.Recipient
	err := db.GetContext(ctx, &recipient, query, organizationID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Recipient](), nil
		}
		return mo.None[*models.Recipient](), fmt.Errorf("failed to get recipient: %w", err)
	}
	return mo.Some(&recipient), nil
}

// GetRecipientBySlackUserID maps an inbound Slack interaction back to the
// product user it belongs to.
func (r *PostgresRecipientsRepository) GetRecipientBySlackUserID(
	ctx context.Context,
	organizationID models.OrgID,
	slackUserID string,
) (mo.Option[*models.Recipient], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(recipientsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.notification_recipients
		WHERE organization_id = $1 AND slack_user_id = $2`, columnsStr, r.schema)

	var recipient models.Recipient
	err := db.GetContext(ctx, &recipient, query, organizationID, slackUserID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.Recipient](), nil
		}
		return mo.None[*models.Recipient](), fmt.Errorf("failed to get recipient by slack user id: %w", err)
	}
	return mo.Some(&recipient), nil
}

func (r *PostgresRecipientsRepository) ListRecipientsByOrg(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Recipient, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(recipientsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.notification_recipients
		WHERE organization_id = $1
		ORDER BY user_id`, columnsStr, r.schema)

	var recipients []*models.Recipient
	if err := db.SelectContext(ctx, &recipients, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	return recipients, nil
}

func (r *PostgresRecipientsRepository) UpsertRecipient(
	ctx context.Context,
	recipient *models.Recipient,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		INSERT INTO %s.notification_recipients (
			organization_id, user_id, slack_user_id, email, name
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (organization_id, user_id)
		DO UPDATE SET
			slack_user_id = EXCLUDED.slack_user_id,
			email = EXCLUDED.email,
			name = EXCLUDED.name`, r.schema)

	_, err := db.ExecContext(ctx, query,
		recipient.OrgID, recipient.UserID, recipient.SlackUserID, recipient.Email, recipient.Name)
	if err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}
	return nil
}
