package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"use60backend/models"
	"use60backend/usecases/dispatch"
)

const (
	// Meeting prep targets meetings starting 25 to 35 minutes out, so an
	// every-10-minutes cron tick sees each meeting exactly once.
	prepWindowStart = 25 * time.Minute
	prepWindowEnd   = 35 * time.Minute
)

// RunMeetingPrep sends the organizer a prep message shortly before each
// meeting. Dedupe is per meeting, forever: a rescheduled cron tick never
// re-sends.
func (u *JobsUseCase) RunMeetingPrep(ctx context.Context, opts JobOptions) (JobResult, error) {
	log.Printf("📋 Starting meeting prep job")

	orgIDs, err := u.targetOrgs(ctx, models.FeatureMeetingPrep, opts)
	if err != nil {
		return JobResult{}, err
	}

	result, err := u.forEachOrg(ctx, orgIDs, func(ctx context.Context, orgID models.OrgID) (JobResult, error) {
		return u.prepForOrg(ctx, orgID, opts)
	})
	if err != nil {
		return result, err
	}

	log.Printf("📋 Completed successfully - meeting prep: %d sent, %d skipped, %d failed",
		result.Sent, result.Skipped, result.Failed)
	return result, nil
}

func (u *JobsUseCase) prepForOrg(ctx context.Context, orgID models.OrgID, opts JobOptions) (JobResult, error) {
	now := u.clk.Now()
	meetings, err := u.crmViewService.ListMeetingsStartingBetween(
		ctx, orgID, now.Add(prepWindowStart), now.Add(prepWindowEnd))
	if err != nil {
		return JobResult{}, fmt.Errorf("failed to list upcoming meetings: %w", err)
	}

	var candidates []*models.Meeting
	for _, meeting := range meetings {
		if meeting.OrganizerUserID == nil || *meeting.OrganizerUserID == "" {
			continue
		}
		if opts.EntityID != "" && meeting.ID != opts.EntityID {
			continue
		}
		if opts.UserID != "" && *meeting.OrganizerUserID != opts.UserID {
			continue
		}
		candidates = append(candidates, meeting)
	}

	return forEachUser(ctx, candidates, func(ctx context.Context, meeting *models.Meeting) JobResult {
		var result JobResult
		outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
			Feature:      models.FeatureMeetingPrep,
			OrgID:        orgID,
			UserID:       *meeting.OrganizerUserID,
			EntityID:     meeting.ID,
			Manual:       opts.Manual,
			NoDefer:      true,
			BuildContext: u.prepContext(orgID, meeting),
		})
		if err != nil {
			log.Printf("❌ Failed to dispatch meeting prep for meeting %s: %v", meeting.ID, err)
			result.Failed++
			return result
		}
		result.count(outcome.Outcome)
		return result
	})
}

// prepContext assembles the meeting prep card: time, attendees, and the
// linked deal when one exists.
func (u *JobsUseCase) prepContext(orgID models.OrgID, meeting *models.Meeting) dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		fields := []models.MessageField{
			{Label: "Starts", Value: meeting.StartsAt.UTC().Format("15:04 MST")},
			{Label: "Attendees", Value: fmt.Sprintf("%d", len(meeting.AttendeeEmails))},
		}

		if meeting.DealID != nil {
			maybeDeal, err := u.crmViewService.GetDealByID(ctx, orgID, *meeting.DealID)
			if err != nil {
				return nil, fmt.Errorf("failed to load linked deal: %w", err)
			}
			if deal, ok := maybeDeal.Get(); ok {
				fields = append(fields,
					models.MessageField{Label: "Deal", Value: deal.Name},
					models.MessageField{Label: "Stage", Value: deal.Stage},
					models.MessageField{Label: "Amount", Value: formatAmount(deal.Amount)},
				)
			}
		}

		model := &models.MessageModel{
			Feature:   models.FeatureMeetingPrep,
			Category:  "meetings",
			Type:      "meeting_prep",
			Title:     fmt.Sprintf("Meeting in 30 minutes: %s", meeting.Title),
			Body:      "Here is what you need before you join.",
			Fields:    fields,
			ActionURL: u.siteURL + "/meetings/" + meeting.ID,
			Footer:    "Use60 meeting prep",
		}
		return model, nil
	}
}
