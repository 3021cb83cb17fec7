package jobs

import (
	"context"
	"fmt"
	"log"

	"use60backend/models"
	"use60backend/usecases/dispatch"
)

// RunDealMomentum nudges deal owners about deals that are stalling, risky,
// or murky. Dedupe rides the sent-log cooldown window per deal.
func (u *JobsUseCase) RunDealMomentum(ctx context.Context, opts JobOptions) (JobResult, error) {
	log.Printf("📋 Starting deal momentum job")

	orgIDs, err := u.targetOrgs(ctx, models.FeatureDealMomentum, opts)
	if err != nil {
		return JobResult{}, err
	}

	result, err := u.forEachOrg(ctx, orgIDs, func(ctx context.Context, orgID models.OrgID) (JobResult, error) {
		return u.nudgesForOrg(ctx, orgID, opts)
	})
	if err != nil {
		return result, err
	}

	log.Printf("📋 Completed successfully - deal momentum: %d sent, %d skipped, %d failed",
		result.Sent, result.Skipped, result.Failed)
	return result, nil
}

func (u *JobsUseCase) nudgesForOrg(ctx context.Context, orgID models.OrgID, opts JobOptions) (JobResult, error) {
	deals, err := u.crmViewService.ListDealsNeedingNudge(ctx, orgID)
	if err != nil {
		return JobResult{}, fmt.Errorf("failed to list deals needing nudge: %w", err)
	}

	var candidates []*models.Deal
	for _, deal := range deals {
		if deal.OwnerUserID == nil || *deal.OwnerUserID == "" {
			continue
		}
		if opts.EntityID != "" && deal.ID != opts.EntityID {
			continue
		}
		if opts.UserID != "" && *deal.OwnerUserID != opts.UserID {
			continue
		}
		candidates = append(candidates, deal)
	}

	return forEachUser(ctx, candidates, func(ctx context.Context, deal *models.Deal) JobResult {
		var result JobResult
		outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
			Feature:      models.FeatureDealMomentum,
			OrgID:        orgID,
			UserID:       *deal.OwnerUserID,
			EntityID:     deal.ID,
			Manual:       opts.Manual,
			BuildContext: u.nudgeContext(orgID, deal),
		})
		if err != nil {
			log.Printf("❌ Failed to dispatch deal nudge for deal %s: %v", deal.ID, err)
			result.Failed++
			return result
		}
		result.count(outcome.Outcome)
		return result
	})
}

// nudgeContext describes why the deal tripped the momentum trigger.
func (u *JobsUseCase) nudgeContext(orgID models.OrgID, deal *models.Deal) dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		body := fmt.Sprintf("*%s* needs attention.", deal.Name)
		switch {
		case deal.Health == models.DealHealthStalled:
			body += " It has stalled."
		case deal.Health == models.DealHealthCritical || deal.Health == models.DealHealthWarning:
			body += fmt.Sprintf(" Health is %s.", deal.Health)
		case deal.Risk == models.DealRiskHigh || deal.Risk == models.DealRiskCritical:
			body += fmt.Sprintf(" Risk is %s.", deal.Risk)
		default:
			body += " Next steps are unclear."
		}

		fields := []models.MessageField{
			{Label: "Stage", Value: deal.Stage},
			{Label: "Amount", Value: formatAmount(deal.Amount)},
			{Label: "Health", Value: string(deal.Health)},
			{Label: "Risk", Value: string(deal.Risk)},
			{Label: "Clarity", Value: fmt.Sprintf("%d/100", deal.Clarity)},
		}
		if company := u.companyName(ctx, orgID, deal.CompanyID); company != "" {
			fields = append([]models.MessageField{{Label: "Company", Value: company}}, fields...)
		}

		model := &models.MessageModel{
			Feature:   models.FeatureDealMomentum,
			Category:  "deals",
			Type:      "deal_momentum_nudge",
			Title:     "Deal momentum check",
			Body:      body,
			Fields:    fields,
			ActionURL: u.siteURL + "/deals/" + deal.ID,
			Footer:    "Use60 deal momentum",
		}
		return model, nil
	}
}

func (u *JobsUseCase) companyName(ctx context.Context, orgID models.OrgID, companyID *string) string {
	if companyID == nil || *companyID == "" {
		return ""
	}
	maybeCompany, err := u.crmViewService.GetCompanyByID(ctx, orgID, *companyID)
	if err != nil {
		return ""
	}
	if company, ok := maybeCompany.Get(); ok {
		return company.Name
	}
	return ""
}
