package users

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

type UsersService struct {
	usersRepo *db.PostgresUsersRepository
}

func NewUsersService(repo *db.PostgresUsersRepository) *UsersService {
	return &UsersService{usersRepo: repo}
}

func (s *UsersService) GetUserByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.User], error) {
	log.Printf("📋 Starting to get user by ID: %s", id)

	if id == "" {
		return mo.None[*models.User](), fmt.Errorf("user ID cannot be empty")
	}

	user, err := s.usersRepo.GetUserByID(ctx, organizationID, id)
	if err != nil {
		return mo.None[*models.User](), fmt.Errorf("failed to get user: %w", err)
	}

	log.Printf("📋 Completed successfully - user found: %t", user.IsPresent())
	return user, nil
}

func (s *UsersService) GetUserByEmail(
	ctx context.Context,
	organizationID models.OrgID,
	email string,
) (mo.Option[*models.User], error) {
	log.Printf("📋 Starting to get user by email for org: %s", organizationID)

	if email == "" {
		return mo.None[*models.User](), fmt.Errorf("email cannot be empty")
	}

	user, err := s.usersRepo.GetUserByEmail(ctx, organizationID, email)
	if err != nil {
		return mo.None[*models.User](), fmt.Errorf("failed to get user by email: %w", err)
	}

	log.Printf("📋 Completed successfully - user found: %t", user.IsPresent())
	return user, nil
}

func (s *UsersService) ListActiveUsersByOrg(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.User, error) {
	log.Printf("📋 Starting to list active users for org: %s", organizationID)

	users, err := s.usersRepo.ListActiveUsersByOrg(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	log.Printf("📋 Completed successfully - found %d active users", len(users))
	return users, nil
}

func (s *UsersService) TouchLastAppActive(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	at time.Time,
) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}

	if err := s.usersRepo.TouchLastAppActive(ctx, organizationID, userID, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to touch last app active: %w", err)
	}
	return nil
}
