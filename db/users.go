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

type PostgresUsersRepository struct {
	db     *sqlx.DB
	schema string
}

var usersColumns = []string{
	"id",
	"organization_id",
	"email",
	"name",
	"timezone",
	"last_app_active_at",
	"last_chat_active_at",
	"last_login_at",
	"deactivated_at",
	"created_at",
	"updated_at",
}

func NewPostgresUsersRepository(db *sqlx.DB, schema string) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db, schema: schema}
}

func (r *PostgresUsersRepository) GetUserByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.User], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(usersColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.users
		WHERE id = $1 AND organization_id = $2`, columnsStr, r.schema)

	var user models.User
	err := db.GetContext(ctx, &user, query, id, organizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.User](), nil
		}
		return mo.None[*models.User](), fmt.Errorf("failed to get user: %w", err)
	}
	return mo.Some(&user), nil
}

// GetUserByEmail resolves a user within an org by email, used by webhook
// ingest for owner resolution. Membership in another org is not a match.
func (r *PostgresUsersRepository) GetUserByEmail(
	ctx context.Context,
	organizationID models.OrgID,
	email string,
) (mo.Option[*models.User], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(usersColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.users
		WHERE organization_id = $1 AND LOWER(email) = LOWER($2)`, columnsStr, r.schema)

	var user models.User
	err := db.GetContext(ctx, &user, query, organizationID, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.User](), nil
		}
		return mo.None[*models.User](), fmt.Errorf("failed to get user by email: %w", err)
	}
	return mo.Some(&user), nil
}

func (r *PostgresUsersRepository) ListActiveUsersByOrg(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.User, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(usersColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.users
		WHERE organization_id = $1 AND deactivated_at IS NULL
		ORDER BY created_at`, columnsStr, r.schema)

	var users []*models.User
	if err := db.SelectContext(ctx, &users, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return users, nil
}

// TouchLastAppActive bumps the user's last app activity timestamp if the
// given instant is newer than the stored one.
func (r *PostgresUsersRepository) TouchLastAppActive(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	at string,
) error {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`
		UPDATE %s.users
		SET last_app_active_at = GREATEST(COALESCE(last_app_active_at, 'epoch'::timestamptz), $3::timestamptz),
		    updated_at = NOW()
		WHERE id = $1 AND organization_id = $2`, r.schema)

	if _, err := db.ExecContext(ctx, query, userID, organizationID, at); err != nil {
		return fmt.Errorf("failed to touch last app active: %w", err)
	}
	return nil
}
