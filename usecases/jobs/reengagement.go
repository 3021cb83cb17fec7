package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"

	"use60backend/engagement"
	"use60backend/models"
	"use60backend/usecases/dispatch"
)

// reengagementCandidate is one eligible user with everything the dispatch
// needs, ranked by priority score.
type reengagementCandidate struct {
	recipient        *models.Recipient
	segment          models.Segment
	notificationType string
	contentDriven    bool
	content          models.ReengagementContent
	score            int
}

// RunReengagement evaluates every mapped user against the re-engagement
// gates and reaches out to the eligible ones, highest priority score first.
// Users whose channel selection lands on email are left to the email system.
func (u *JobsUseCase) RunReengagement(ctx context.Context, opts JobOptions) (JobResult, error) {
	log.Printf("📋 Starting re-engagement job")

	orgIDs, err := u.targetOrgs(ctx, models.FeatureReengagement, opts)
	if err != nil {
		return JobResult{}, err
	}

	result, err := u.forEachOrg(ctx, orgIDs, func(ctx context.Context, orgID models.OrgID) (JobResult, error) {
		return u.reengageOrg(ctx, orgID, opts)
	})
	if err != nil {
		return result, err
	}

	log.Printf("📋 Completed successfully - re-engagement: %d sent, %d skipped, %d failed",
		result.Sent, result.Skipped, result.Failed)
	return result, nil
}

func (u *JobsUseCase) reengageOrg(ctx context.Context, orgID models.OrgID, opts JobOptions) (JobResult, error) {
	var result JobResult

	recipients, err := u.mappedRecipients(ctx, orgID, opts.UserID)
	if err != nil {
		return result, err
	}

	var candidates []*reengagementCandidate
	for _, recipient := range recipients {
		candidate, err := u.evaluateCandidate(ctx, orgID, recipient)
		if err != nil {
			log.Printf("⚠️ Failed to evaluate re-engagement for user %s: %v", recipient.UserID, err)
			result.Failed++
			continue
		}
		if candidate == nil {
			result.Skipped++
			continue
		}
		candidates = append(candidates, candidate)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	dispatched, err := forEachUser(ctx, candidates, func(ctx context.Context, c *reengagementCandidate) JobResult {
		return u.reengageUser(ctx, orgID, c, opts)
	})
	result.add(dispatched)
	return result, err
}

// evaluateCandidate runs the eligibility gates for one user. A nil candidate
// means not eligible today.
func (u *JobsUseCase) evaluateCandidate(
	ctx context.Context,
	orgID models.OrgID,
	recipient *models.Recipient,
) (*reengagementCandidate, error) {
	maybeMetrics, err := u.userMetricsService.GetUserMetrics(ctx, orgID, recipient.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user metrics: %w", err)
	}
	metrics, ok := maybeMetrics.Get()
	if !ok {
		return nil, nil
	}
	if _, eligible := u.cfg.Reengagement[metrics.Segment]; !eligible {
		return nil, nil
	}

	attempts, lastAttemptAt, err := u.reengagementService.GetAttemptState(ctx, orgID, recipient.UserID, metrics.Segment)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt state: %w", err)
	}

	now := u.clk.Now()
	daysInactive := 999.0
	if metrics.LastActivityAt != nil {
		daysInactive = now.Sub(*metrics.LastActivityAt).Hours() / 24
	}

	state := engagement.ReengagementState{
		Attempts:      attempts,
		LastAttemptAt: lastAttemptAt,
		DaysInactive:  daysInactive,
	}
	if !engagement.IsReengagementCandidate(metrics.Segment, state, now, u.cfg) {
		return nil, nil
	}

	if engagement.SelectReengagementChannel(metrics.Segment, true) != models.ChannelChat {
		log.Printf("📋 User %s routes to email outreach, skipping chat re-engagement", recipient.UserID)
		return nil, nil
	}

	content, err := u.crmViewService.GetReengagementContent(ctx, orgID, recipient.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load re-engagement content: %w", err)
	}
	notificationType, contentDriven := engagement.SelectTrigger(content, metrics.Segment, u.cfg)

	return &reengagementCandidate{
		recipient:        recipient,
		segment:          metrics.Segment,
		notificationType: notificationType,
		contentDriven:    contentDriven,
		content:          content,
		score:            engagement.ReengagementPriorityScore(metrics.Scores.Overall, attempts, contentDriven, daysInactive),
	}, nil
}

func (u *JobsUseCase) reengageUser(
	ctx context.Context,
	orgID models.OrgID,
	c *reengagementCandidate,
	opts JobOptions,
) JobResult {
	var result JobResult

	outcome, err := u.dispatcher.Dispatch(ctx, dispatch.Request{
		Feature:      models.FeatureReengagement,
		OrgID:        orgID,
		UserID:       c.recipient.UserID,
		Manual:       opts.Manual,
		NoDefer:      true,
		BuildContext: u.reengagementContext(c),
	})
	if err != nil {
		log.Printf("❌ Failed to dispatch re-engagement for user %s: %v", c.recipient.UserID, err)
		result.Failed++
		return result
	}
	result.count(outcome.Outcome)

	if outcome.Outcome == models.DispatchDelivered {
		if err := u.reengagementService.RecordAttempt(ctx, orgID, c.recipient.UserID, c.segment); err != nil {
			log.Printf("⚠️ Failed to record re-engagement attempt for user %s: %v", c.recipient.UserID, err)
		}
	}
	return result
}

// reengagementContext renders the selected trigger into a message. Content
// triggers lead with the concrete hook; default triggers fall back to a
// generic nudge.
func (u *JobsUseCase) reengagementContext(c *reengagementCandidate) dispatch.ContextBuilder {
	return func(ctx context.Context) (*models.MessageModel, error) {
		title := "We have been busy while you were away"
		body := "Your pipeline kept moving. Take a look at what changed."

		switch c.notificationType {
		case "upcoming_meeting":
			meeting := c.content.UpcomingMeeting
			title = fmt.Sprintf("Upcoming meeting: %s", meeting.Title)
			body = fmt.Sprintf("*%s* starts %s. Your prep notes are ready.",
				meeting.Title, meeting.StartsAt.UTC().Format("Mon Jan 2 at 15:04 MST"))
		case "deal_update":
			deal := c.content.DealUpdate
			title = fmt.Sprintf("Movement on %s", deal.Name)
			body = fmt.Sprintf("*%s* (%s, %s) changed since your last visit.",
				deal.Name, deal.Stage, formatAmount(deal.Amount))
		case "champion_change":
			title = "A champion changed on one of your deals"
			body = *c.content.ChampionChange
		case "new_email_summary":
			title = "New email activity on your accounts"
			body = *c.content.NewEmailSummary
		case "win_back":
			title = "Your pipeline is waiting"
			body = "It has been a while. Here is a fresh look at where your deals stand."
		case "whats_new", "pipeline_summary", "feature_highlight":
			// Default segment triggers keep the generic copy.
		}

		model := &models.MessageModel{
			Feature:   models.FeatureReengagement,
			Category:  "engagement",
			Type:      c.notificationType,
			Title:     title,
			Body:      body,
			ActionURL: u.siteURL + "/dashboard",
			Footer:    "Use60",
			Metadata: map[string]any{
				"segment":        string(c.segment),
				"priority_score": c.score,
				"content_driven": c.contentDriven,
			},
		}
		return model, nil
	}
}
