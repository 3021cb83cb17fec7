package jobs

import (
	"context"
	"fmt"
	"log"

	"use60backend/engagement"
	"use60backend/models"
	"use60backend/usecases/dispatch"
)

// RunMetricsRefresh recomputes every user's engagement metrics, resets
// re-engagement budgets for users who came back, and asks the long-quiet
// ones for notification feedback. Sent counts feedback requests; refreshes
// themselves are not dispatches.
func (u *JobsUseCase) RunMetricsRefresh(ctx context.Context, opts JobOptions) (JobResult, error) {
	log.Printf("📋 Starting metrics refresh job")

	var orgIDs []models.OrgID
	if opts.OrgID != "" {
		orgIDs = []models.OrgID{opts.OrgID}
	} else {
		orgs, err := u.organizationsService.ListOrganizationsWithWorkspace(ctx)
		if err != nil {
			return JobResult{}, fmt.Errorf("failed to list organizations: %w", err)
		}
		for _, org := range orgs {
			orgIDs = append(orgIDs, org.ID)
		}
	}

	result, err := u.forEachOrg(ctx, orgIDs, func(ctx context.Context, orgID models.OrgID) (JobResult, error) {
		users, err := u.usersService.ListActiveUsersByOrg(ctx, orgID)
		if err != nil {
			return JobResult{}, fmt.Errorf("failed to list active users: %w", err)
		}
		var targets []*models.User
		for _, user := range users {
			if opts.UserID != "" && user.ID != opts.UserID {
				continue
			}
			targets = append(targets, user)
		}
		return forEachUser(ctx, targets, func(ctx context.Context, user *models.User) JobResult {
			return u.refreshUser(ctx, orgID, user, opts)
		})
	})
	if err != nil {
		return result, err
	}

	log.Printf("📋 Completed successfully - metrics refresh: %d feedback requests sent, %d skipped, %d failed",
		result.Sent, result.Skipped, result.Failed)
	return result, nil
}

// activeSegments are the segments whose users get their re-engagement
// attempt budget back.
var activeSegments = map[models.Segment]bool{
	models.SegmentPowerUser: true,
	models.SegmentRegular:   true,
	models.SegmentCasual:    true,
}

func (u *JobsUseCase) refreshUser(
	ctx context.Context,
	orgID models.OrgID,
	user *models.User,
	opts JobOptions,
) JobResult {
	var result JobResult

	metrics, err := u.userMetricsService.RefreshUserMetrics(ctx, orgID, user.ID)
	if err != nil {
		log.Printf("❌ Failed to refresh metrics for user %s: %v", user.ID, err)
		result.Failed++
		return result
	}

	if activeSegments[metrics.Segment] {
		if err := u.reengagementService.ResetAttempts(ctx, orgID, user.ID); err != nil {
			log.Printf("⚠️ Failed to reset re-engagement attempts for user %s: %v", user.ID, err)
		}
	}

	if !engagement.ShouldRequestFeedback(metrics, u.clk.Now(), u.cfg) {
		result.Skipped++
		return result
	}

	outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
		Feature:      models.FeatureFeedbackRequest,
		OrgID:        orgID,
		UserID:       user.ID,
		Manual:       opts.Manual,
		NoDefer:      true,
		BuildContext: u.feedbackContext(),
	})
	if err != nil {
		log.Printf("❌ Failed to dispatch feedback request for user %s: %v", user.ID, err)
		result.Failed++
		return result
	}
	result.count(outcome.Outcome)

	if outcome.Outcome == models.DispatchDelivered {
		if err := u.userMetricsService.MarkFeedbackRequested(ctx, orgID, user.ID); err != nil {
			log.Printf("⚠️ Failed to mark feedback requested for user %s: %v", user.ID, err)
		}
	}
	return result
}

func (u *JobsUseCase) feedbackContext() dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		model := &models.MessageModel{
			Feature:  models.FeatureFeedbackRequest,
			Category: "engagement",
			Type:     "feedback_request",
			Title:    "How are these notifications working for you?",
			Body:     "A 30-second check-in helps us send you less noise and more signal.",
			Actions: []models.MessageAction{
				{Label: "Give feedback", URL: u.siteURL + "/feedback", Style: "primary"},
				{Label: "Adjust settings", URL: u.siteURL + "/settings/notifications"},
			},
			Footer: "Use60",
		}
		return model, nil
	}
}
