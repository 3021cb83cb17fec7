package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"use60backend/clock"
	"use60backend/models"
	"use60backend/usecases/dispatch"
)

// briefHour is the local hour a morning brief targets.
const briefHour = 8

// RunMorningBrief sends each mapped user their per-day brief. The job runs
// hourly; a user is picked up on the tick that lands at 08:00 in their
// timezone. Manual runs ignore the hour gate.
func (u *JobsUseCase) RunMorningBrief(ctx context.Context, opts JobOptions) (JobResult, error) {
	log.Printf("📋 Starting morning brief job")

	orgIDs, err := u.targetOrgs(ctx, models.FeatureMorningBrief, opts)
	if err != nil {
		return JobResult{}, err
	}

	result, err := u.forEachOrg(ctx, orgIDs, func(ctx context.Context, orgID models.OrgID) (JobResult, error) {
		recipients, err := u.mappedRecipients(ctx, orgID, opts.UserID)
		if err != nil {
			return JobResult{}, err
		}
		return forEachUser(ctx, recipients, func(ctx context.Context, recipient *models.Recipient) JobResult {
			return u.briefForUser(ctx, orgID, recipient, opts)
		})
	})
	if err != nil {
		return result, err
	}

	log.Printf("📋 Completed successfully - morning brief: %d sent, %d skipped, %d failed",
		result.Sent, result.Skipped, result.Failed)
	return result, nil
}

func (u *JobsUseCase) briefForUser(
	ctx context.Context,
	orgID models.OrgID,
	recipient *models.Recipient,
	opts JobOptions,
) JobResult {
	var result JobResult

	timezone := "UTC"
	if maybeUser, err := u.usersService.GetUserByID(ctx, orgID, recipient.UserID); err == nil {
		if user, ok := maybeUser.Get(); ok && user.Timezone != "" {
			timezone = user.Timezone
		}
	}

	if !opts.Manual {
		localHour := u.clk.Now().In(clock.LoadLocation(timezone)).Hour()
		if localHour != briefHour {
			result.Skipped++
			return result
		}
	}

	outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
		Feature:      models.FeatureMorningBrief,
		OrgID:        orgID,
		UserID:       recipient.UserID,
		Manual:       opts.Manual,
		NoDefer:      true,
		BuildContext: u.briefContext(orgID, recipient.UserID, timezone),
	})
	if err != nil {
		log.Printf("❌ Failed to dispatch morning brief for user %s: %v", recipient.UserID, err)
		result.Failed++
		return result
	}
	result.count(outcome.Outcome)
	return result
}

// briefContext assembles the user's day: their meetings until midnight local
// and the state of their open deals.
func (u *JobsUseCase) briefContext(orgID models.OrgID, userID, timezone string) dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		now := u.clk.Now()
		dayStart := clock.StartOfDay(now, timezone)
		dayEnd := dayStart.Add(24 * time.Hour)

		meetings, err := u.crmViewService.ListMeetingsForUserBetween(ctx, orgID, userID, now, dayEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to list meetings: %w", err)
		}
		deals, err := u.crmViewService.ListOpenDealsByOwner(ctx, orgID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list owned deals: %w", err)
		}

		atRisk := 0
		for _, deal := range deals {
			if deal.NeedsMomentumNudge() {
				atRisk++
			}
		}

		body := fmt.Sprintf("You have %d meetings today and %d open deals.", len(meetings), len(deals))
		if len(meetings) > 0 {
			first := meetings[0]
			body += fmt.Sprintf("\nFirst up: *%s* at %s.",
				first.Title, first.StartsAt.In(clock.LoadLocation(timezone)).Format("15:04"))
		}

		model := &models.MessageModel{
			Feature:  models.FeatureMorningBrief,
			Category: "digest",
			Type:     "morning_brief",
			Title:    "Your morning brief",
			Body:     body,
			Fields: []models.MessageField{
				{Label: "Meetings today", Value: fmt.Sprintf("%d", len(meetings))},
				{Label: "Open deals", Value: fmt.Sprintf("%d", len(deals))},
				{Label: "Deals needing attention", Value: fmt.Sprintf("%d", atRisk)},
			},
			ActionURL: u.siteURL + "/today",
			Footer:    "Use60 morning brief",
		}
		return model, nil
	}
}
