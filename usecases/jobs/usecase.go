package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"use60backend/clock"
	"use60backend/engagement"
	"use60backend/models"
	"use60backend/services"
	"use60backend/usecases/dispatch"
)

const (
	// orgPoolSize bounds how many organizations a job works concurrently.
	orgPoolSize = 5
	// userPoolSize bounds per-org user fan-out.
	userPoolSize = 3
	// interBatchPause spaces batches to stay under upstream rate limits.
	interBatchPause = time.Second
)

// Dispatcher is the slice of the dispatch pipeline the jobs need. Satisfied
// by *dispatch.DispatchUseCase.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (models.DispatchResult, error)
}

// JobOptions narrows a job run. Zero values mean "everything"; a manual run
// (admin-triggered) bypasses dedupe.
type JobOptions struct {
	OrgID    models.OrgID `json:"orgId,omitempty"`
	UserID   string       `json:"userId,omitempty"`
	EntityID string       `json:"entityId,omitempty"`
	Manual   bool         `json:"manual,omitempty"`
}

// JobResult aggregates dispatch outcomes across one job run.
type JobResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (r *JobResult) add(other JobResult) {
	r.Sent += other.Sent
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

func (r *JobResult) count(outcome models.DispatchOutcome) {
	switch outcome {
	case models.DispatchDelivered:
		r.Sent++
	case models.DispatchSkipped:
		r.Skipped++
	case models.DispatchFailed:
		r.Failed++
	}
}

// JobsUseCase owns the scheduled notification jobs: digests, briefs, meeting
// prep, deal nudges, re-engagement, and the daily metrics refresh.
type JobsUseCase struct {
	organizationsService   services.OrganizationsService
	usersService           services.UsersService
	featureSettingsService services.FeatureSettingsService
	recipientsService      services.RecipientsService
	userMetricsService     services.UserMetricsService
	crmViewService         services.CRMViewService
	reengagementService    services.ReengagementService
	dispatcher             Dispatcher
	cfg                    engagement.Config
	clk                    clock.Clock
	siteURL                string
}

// NewJobsUseCase creates a new instance of JobsUseCase
func NewJobsUseCase(
	organizationsService services.OrganizationsService,
	usersService services.UsersService,
	featureSettingsService services.FeatureSettingsService,
	recipientsService services.RecipientsService,
	userMetricsService services.UserMetricsService,
	crmViewService services.CRMViewService,
	reengagementService services.ReengagementService,
	dispatcher Dispatcher,
	cfg engagement.Config,
	clk clock.Clock,
	siteURL string,
) *JobsUseCase {
	return &JobsUseCase{
		organizationsService:   organizationsService,
		usersService:           usersService,
		featureSettingsService: featureSettingsService,
		recipientsService:      recipientsService,
		userMetricsService:     userMetricsService,
		crmViewService:         crmViewService,
		reengagementService:    reengagementService,
		dispatcher:             dispatcher,
		cfg:                    cfg,
		clk:                    clk,
		siteURL:                siteURL,
	}
}

// targetOrgs resolves the orgs a feature job should visit: the single org of
// a narrowed run, otherwise every org with the feature enabled.
func (u *JobsUseCase) targetOrgs(
	ctx context.Context,
	feature models.FeatureKey,
	opts JobOptions,
) ([]models.OrgID, error) {
	if opts.OrgID != "" {
		return []models.OrgID{opts.OrgID}, nil
	}
	orgIDs, err := u.featureSettingsService.ListOrgsWithFeatureEnabled(ctx, feature)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs with %s enabled: %w", feature, err)
	}
	return orgIDs, nil
}

// forEachOrg fans a job out over orgs in bounded batches with a pause in
// between. Per-org failures are counted, not fatal: one broken org must not
// starve the rest of the run.
func (u *JobsUseCase) forEachOrg(
	ctx context.Context,
	orgIDs []models.OrgID,
	fn func(ctx context.Context, orgID models.OrgID) (JobResult, error),
) (JobResult, error) {
	var total JobResult
	for start := 0; start < len(orgIDs); start += orgPoolSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if start > 0 {
			time.Sleep(interBatchPause)
		}

		end := start + orgPoolSize
		if end > len(orgIDs) {
			end = len(orgIDs)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, orgID := range orgIDs[start:end] {
			wg.Add(1)
			go func(orgID models.OrgID) {
				defer wg.Done()
				result, err := fn(ctx, orgID)
				mu.Lock()
				defer mu.Unlock()
				total.add(result)
				if err != nil {
					log.Printf("❌ Job failed for organization %s: %v", orgID, err)
					total.Failed++
				}
			}(orgID)
		}
		wg.Wait()
	}
	return total, nil
}

// forEachUser fans work out over an org's users in small bounded batches.
func forEachUser[T any](
	ctx context.Context,
	items []T,
	fn func(ctx context.Context, item T) JobResult,
) (JobResult, error) {
	var total JobResult
	for start := 0; start < len(items); start += userPoolSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if start > 0 {
			time.Sleep(interBatchPause)
		}

		end := start + userPoolSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, item := range items[start:end] {
			wg.Add(1)
			go func(item T) {
				defer wg.Done()
				result := fn(ctx, item)
				mu.Lock()
				defer mu.Unlock()
				total.add(result)
			}(item)
		}
		wg.Wait()
	}
	return total, nil
}

// mappedRecipients returns the org's recipients that have a Slack mapping,
// optionally narrowed to one user.
func (u *JobsUseCase) mappedRecipients(
	ctx context.Context,
	orgID models.OrgID,
	onlyUserID string,
) ([]*models.Recipient, error) {
	all, err := u.recipientsService.ListRecipientsByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	var mapped []*models.Recipient
	for _, r := range all {
		if r.SlackUserID == nil || *r.SlackUserID == "" {
			continue
		}
		if onlyUserID != "" && r.UserID != onlyUserID {
			continue
		}
		mapped = append(mapped, r)
	}
	return mapped, nil
}
