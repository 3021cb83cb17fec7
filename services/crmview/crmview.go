package crmview

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

// CRMViewService is the engine's read-only window into CRM data. It never
// mutates deals, meetings, or companies.
type CRMViewService struct {
	crmRepo *db.PostgresCRMRepository
	now     func() time.Time
}

func NewCRMViewService(repo *db.PostgresCRMRepository, now func() time.Time) *CRMViewService {
	if now == nil {
		now = time.Now
	}
	return &CRMViewService{crmRepo: repo, now: now}
}

func (s *CRMViewService) GetDealByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Deal], error) {
	deal, err := s.crmRepo.GetDealByID(ctx, organizationID, id)
	if err != nil {
		return mo.None[*models.Deal](), fmt.Errorf("failed to get deal: %w", err)
	}
	return deal, nil
}

func (s *CRMViewService) ListOpenDeals(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Deal, error) {
	deals, err := s.crmRepo.ListOpenDeals(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open deals: %w", err)
	}
	return deals, nil
}

func (s *CRMViewService) ListOpenDealsByOwner(
	ctx context.Context,
	organizationID models.OrgID,
	ownerUserID string,
) ([]*models.Deal, error) {
	deals, err := s.crmRepo.ListOpenDealsByOwner(ctx, organizationID, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open deals by owner: %w", err)
	}
	return deals, nil
}

// ListDealsNeedingNudge filters the open deals down to the momentum-nudge
// candidates.
func (s *CRMViewService) ListDealsNeedingNudge(
	ctx context.Context,
	organizationID models.OrgID,
) ([]*models.Deal, error) {
	log.Printf("📋 Starting to evaluate deal momentum triggers for org: %s", organizationID)

	deals, err := s.crmRepo.ListOpenDeals(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open deals: %w", err)
	}

	var candidates []*models.Deal
	for _, deal := range deals {
		if deal.NeedsMomentumNudge() {
			candidates = append(candidates, deal)
		}
	}

	log.Printf("📋 Completed successfully - %d of %d open deals need a nudge", len(candidates), len(deals))
	return candidates, nil
}

func (s *CRMViewService) GetMeetingByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Meeting], error) {
	meeting, err := s.crmRepo.GetMeetingByID(ctx, organizationID, id)
	if err != nil {
		return mo.None[*models.Meeting](), fmt.Errorf("failed to get meeting: %w", err)
	}
	return meeting, nil
}

func (s *CRMViewService) ListMeetingsStartingBetween(
	ctx context.Context,
	organizationID models.OrgID,
	from, to time.Time,
) ([]*models.Meeting, error) {
	meetings, err := s.crmRepo.ListMeetingsStartingBetween(ctx, organizationID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	return meetings, nil
}

func (s *CRMViewService) ListMeetingsForUserBetween(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
	from, to time.Time,
) ([]*models.Meeting, error) {
	meetings, err := s.crmRepo.ListMeetingsForUserBetween(ctx, organizationID, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings for user: %w", err)
	}
	return meetings, nil
}

func (s *CRMViewService) GetCompanyByID(
	ctx context.Context,
	organizationID models.OrgID,
	id string,
) (mo.Option[*models.Company], error) {
	company, err := s.crmRepo.GetCompanyByID(ctx, organizationID, id)
	if err != nil {
		return mo.None[*models.Company](), fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// GetReengagementContent gathers the content-driven triggers available for a
// user: an upcoming meeting within 7 days or a deal that moved recently.
func (s *CRMViewService) GetReengagementContent(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (models.ReengagementContent, error) {
	var content models.ReengagementContent
	now := s.now().UTC()

	meetings, err := s.crmRepo.ListMeetingsForUserBetween(ctx, organizationID, userID, now, now.AddDate(0, 0, 7))
	if err != nil {
		return content, fmt.Errorf("failed to list upcoming meetings: %w", err)
	}
	if len(meetings) > 0 {
		content.UpcomingMeeting = meetings[0]
	}

	deals, err := s.crmRepo.ListOpenDealsByOwner(ctx, organizationID, userID)
	if err != nil {
		return content, fmt.Errorf("failed to list owned deals: %w", err)
	}
	for _, deal := range deals {
		if deal.UpdatedAt.After(now.AddDate(0, 0, -7)) {
			content.DealUpdate = deal
			break
		}
	}

	return content, nil
}
