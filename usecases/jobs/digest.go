package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"use60backend/models"
	"use60backend/usecases/dispatch"
)

// RunDailyDigest sends each org its one-per-day pipeline digest into the
// configured channel. The sent-log window (20h) keeps reruns idempotent.
func (u *JobsUseCase) RunDailyDigest(ctx context.Context, opts JobOptions) (JobResult, error) {
	log.Printf("📋 Starting daily digest job")

	orgIDs, err := u.targetOrgs(ctx, models.FeatureDailyDigest, opts)
	if err != nil {
		return JobResult{}, err
	}

	result, err := u.forEachOrg(ctx, orgIDs, func(ctx context.Context, orgID models.OrgID) (JobResult, error) {
		return u.digestForOrg(ctx, orgID, opts)
	})
	if err != nil {
		return result, err
	}

	log.Printf("📋 Completed successfully - daily digest: %d sent, %d skipped, %d failed",
		result.Sent, result.Skipped, result.Failed)
	return result, nil
}

// digestForOrg dispatches one digest for the org, addressed to the first
// mapped recipient so the pipeline has an engagement profile to gate on.
func (u *JobsUseCase) digestForOrg(ctx context.Context, orgID models.OrgID, opts JobOptions) (JobResult, error) {
	var result JobResult

	recipients, err := u.mappedRecipients(ctx, orgID, opts.UserID)
	if err != nil {
		return result, err
	}
	if len(recipients) == 0 {
		log.Printf("📋 No mapped recipients for organization %s, skipping digest", orgID)
		result.Skipped++
		return result, nil
	}

	outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
		Feature:      models.FeatureDailyDigest,
		OrgID:        orgID,
		UserID:       recipients[0].UserID,
		Manual:       opts.Manual,
		NoDefer:      opts.Manual,
		BuildContext: u.digestContext(orgID),
	})
	if err != nil {
		return result, err
	}
	result.count(outcome.Outcome)
	return result, nil
}

// digestContext summarizes the org's pipeline: open deals, total value, deals
// needing attention, and the day's meetings.
func (u *JobsUseCase) digestContext(orgID models.OrgID) dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		deals, err := u.crmViewService.ListOpenDeals(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to list open deals: %w", err)
		}
		nudgeable, err := u.crmViewService.ListDealsNeedingNudge(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("failed to list deals needing attention: %w", err)
		}
		now := u.clk.Now()
		meetings, err := u.crmViewService.ListMeetingsStartingBetween(ctx, orgID, now, now.Add(24*time.Hour))
		if err != nil {
			return nil, fmt.Errorf("failed to list meetings: %w", err)
		}

		pipeline := decimal.Zero
		for _, deal := range deals {
			pipeline = pipeline.Add(deal.Amount)
		}

		model := &models.MessageModel{
			Feature:  models.FeatureDailyDigest,
			Category: "digest",
			Type:     "daily_digest",
			Title:    "Daily pipeline digest",
			Body:     fmt.Sprintf("%d open deals worth %s in play.", len(deals), formatAmount(pipeline)),
			Fields: []models.MessageField{
				{Label: "Open deals", Value: fmt.Sprintf("%d", len(deals))},
				{Label: "Pipeline value", Value: formatAmount(pipeline)},
				{Label: "Needs attention", Value: fmt.Sprintf("%d", len(nudgeable))},
				{Label: "Meetings next 24h", Value: fmt.Sprintf("%d", len(meetings))},
			},
			ActionURL: u.siteURL + "/dashboard",
			Footer:    "Use60 daily digest",
		}
		return model, nil
	}
}

func formatAmount(amount decimal.Decimal) string {
	return "$" + amount.Round(0).String()
}
