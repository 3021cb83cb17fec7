package organizations

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

type OrganizationsService struct {
	orgsRepo *db.PostgresOrganizationsRepository
}

func NewOrganizationsService(repo *db.PostgresOrganizationsRepository) *OrganizationsService {
	return &OrganizationsService{orgsRepo: repo}
}

func (s *OrganizationsService) GetOrganizationByID(
	ctx context.Context,
	id models.OrgID,
) (mo.Option[*models.Organization], error) {
	log.Printf("📋 Starting to get organization by ID: %s", id)

	if id == "" {
		return mo.None[*models.Organization](), fmt.Errorf("organization ID cannot be empty")
	}

	org, err := s.orgsRepo.GetOrganizationByID(ctx, id)
	if err != nil {
		return mo.None[*models.Organization](), fmt.Errorf("failed to get organization: %w", err)
	}

	log.Printf("📋 Completed successfully - organization found: %t", org.IsPresent())
	return org, nil
}

func (s *OrganizationsService) GetOrganizationBySlackTeamID(
	ctx context.Context,
	teamID string,
) (mo.Option[*models.Organization], error) {
	if teamID == "" {
		return mo.None[*models.Organization](), fmt.Errorf("slack team ID cannot be empty")
	}

	org, err := s.orgsRepo.GetOrganizationBySlackTeamID(ctx, teamID)
	if err != nil {
		return mo.None[*models.Organization](), fmt.Errorf("failed to get organization by team: %w", err)
	}
	return org, nil
}

func (s *OrganizationsService) ListOrganizationsWithWorkspace(
	ctx context.Context,
) ([]*models.Organization, error) {
	log.Printf("📋 Starting to list organizations with connected workspace")

	orgs, err := s.orgsRepo.ListOrganizationsWithWorkspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations with workspace: %w", err)
	}

	log.Printf("📋 Completed successfully - found %d organizations", len(orgs))
	return orgs, nil
}
