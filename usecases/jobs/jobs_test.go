package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"use60backend/clock"
	"use60backend/engagement"
	"use60backend/models"
	"use60backend/services/crmview"
	"use60backend/services/featuresettings"
	"use60backend/services/organizations"
	"use60backend/services/recipients"
	"use60backend/services/reengagement"
	"use60backend/services/usermetrics"
	"use60backend/services/users"
	"use60backend/usecases/dispatch"
)

const (
	testOrgID  = models.OrgID("org_01JVNTCCN4CYZQ0B0F8Q4R7KT0")
	testUserID = "u_01JVNTCCN4CYZQ0B0F8Q4R7KT1"
)

// MockDispatcher is a mock implementation of the Dispatcher interface
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req dispatch.Request) (models.DispatchResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.DispatchResult), args.Error(1)
}

type jobsFixture struct {
	orgs         *organizations.MockOrganizationsService
	users        *users.MockUsersService
	settings     *featuresettings.MockFeatureSettingsService
	recipients   *recipients.MockRecipientsService
	metrics      *usermetrics.MockUserMetricsService
	crm          *crmview.MockCRMViewService
	reengagement *reengagement.MockReengagementService
	dispatcher   *MockDispatcher
	clk          *clock.FixedClock

	uc *JobsUseCase
}

func newJobsFixture(at time.Time) *jobsFixture {
	f := &jobsFixture{
		orgs:         new(organizations.MockOrganizationsService),
		users:        new(users.MockUsersService),
		settings:     new(featuresettings.MockFeatureSettingsService),
		recipients:   new(recipients.MockRecipientsService),
		metrics:      new(usermetrics.MockUserMetricsService),
		crm:          new(crmview.MockCRMViewService),
		reengagement: new(reengagement.MockReengagementService),
		dispatcher:   new(MockDispatcher),
		clk:          clock.NewFixedClock(at),
	}
	f.uc = NewJobsUseCase(
		f.orgs,
		f.users,
		f.settings,
		f.recipients,
		f.metrics,
		f.crm,
		f.reengagement,
		f.dispatcher,
		engagement.DefaultConfig(),
		f.clk,
		"https://app.use60.test",
	)
	return f
}

func mappedRecipient(userID, slackUserID string) *models.Recipient {
	return &models.Recipient{OrgID: testOrgID, UserID: userID, SlackUserID: &slackUserID}
}

func requestFor(feature models.FeatureKey) any {
	return mock.MatchedBy(func(req dispatch.Request) bool { return req.Feature == feature })
}

func TestRunDailyDigest_DispatchesOncePerOrg(t *testing.T) {
	f := newJobsFixture(time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC))

	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureDailyDigest).
		Return([]models.OrgID{testOrgID}, nil)
	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{
			mappedRecipient(testUserID, "U01"),
			mappedRecipient("u_2", "U02"),
		}, nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Feature == models.FeatureDailyDigest &&
			req.OrgID == testOrgID &&
			req.UserID == testUserID &&
			req.EntityID == ""
	})).Return(models.Delivered("ts", "C1"), nil).Once()

	result, err := f.uc.RunDailyDigest(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	f.dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestRunDailyDigest_NoMappedRecipients(t *testing.T) {
	f := newJobsFixture(time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC))

	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureDailyDigest).
		Return([]models.OrgID{testOrgID}, nil)
	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{{OrgID: testOrgID, UserID: testUserID}}, nil)

	result, err := f.uc.RunDailyDigest(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestDigestContext_SummarizesPipeline(t *testing.T) {
	f := newJobsFixture(time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC))

	f.crm.On("ListOpenDeals", mock.Anything, testOrgID).Return([]*models.Deal{
		{ID: "d1", Amount: decimal.NewFromInt(120000)},
		{ID: "d2", Amount: decimal.NewFromInt(80000)},
	}, nil)
	f.crm.On("ListDealsNeedingNudge", mock.Anything, testOrgID).Return([]*models.Deal{{ID: "d2"}}, nil)
	f.crm.On("ListMeetingsStartingBetween", mock.Anything, testOrgID, mock.Anything, mock.Anything).
		Return([]*models.Meeting{{ID: "m1"}}, nil)

	model, err := f.uc.digestContext(testOrgID)(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Daily pipeline digest", model.Title)
	assert.Contains(t, model.Body, "2 open deals")
	assert.Contains(t, model.Body, "$200000")
	require.Len(t, model.Fields, 4)
	assert.Equal(t, "1", model.Fields[2].Value)
}

func TestRunMorningBrief_HourGate(t *testing.T) {
	// 08:00 UTC: the UTC user is in their brief hour, the New York user
	// (03:00 local) is not.
	f := newJobsFixture(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))

	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureMorningBrief).
		Return([]models.OrgID{testOrgID}, nil)
	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{
			mappedRecipient(testUserID, "U01"),
			mappedRecipient("u_ny", "U02"),
		}, nil)
	f.users.On("GetUserByID", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(&models.User{ID: testUserID, Timezone: "UTC"}), nil)
	f.users.On("GetUserByID", mock.Anything, testOrgID, "u_ny").
		Return(mo.Some(&models.User{ID: "u_ny", Timezone: "America/New_York"}), nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Feature == models.FeatureMorningBrief && req.UserID == testUserID
	})).Return(models.Delivered("ts", "D1"), nil).Once()

	result, err := f.uc.RunMorningBrief(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	f.dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestRunMorningBrief_ManualBypassesHourGate(t *testing.T) {
	f := newJobsFixture(time.Date(2026, 3, 3, 15, 0, 0, 0, time.UTC))

	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{mappedRecipient(testUserID, "U01")}, nil)
	f.users.On("GetUserByID", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(&models.User{ID: testUserID, Timezone: "UTC"}), nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Manual && req.NoDefer
	})).Return(models.Delivered("ts", "D1"), nil).Once()

	result, err := f.uc.RunMorningBrief(context.Background(), JobOptions{
		OrgID:  testOrgID,
		UserID: testUserID,
		Manual: true,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	f.settings.AssertNotCalled(t, "ListOrgsWithFeatureEnabled", mock.Anything, mock.Anything)
}

func TestRunMeetingPrep_TargetsWindowedMeetingsWithOrganizers(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newJobsFixture(now)

	organizer := testUserID
	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureMeetingPrep).
		Return([]models.OrgID{testOrgID}, nil)
	f.crm.On("ListMeetingsStartingBetween", mock.Anything, testOrgID,
		now.Add(prepWindowStart), now.Add(prepWindowEnd)).
		Return([]*models.Meeting{
			{ID: "m1", OrgID: testOrgID, Title: "Demo with Acme", StartsAt: now.Add(30 * time.Minute), OrganizerUserID: &organizer},
			{ID: "m2", OrgID: testOrgID, Title: "No organizer", StartsAt: now.Add(30 * time.Minute)},
		}, nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Feature == models.FeatureMeetingPrep &&
			req.EntityID == "m1" &&
			req.UserID == testUserID
	})).Return(models.Delivered("ts", "D1"), nil).Once()

	result, err := f.uc.RunMeetingPrep(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	f.dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestRunDealMomentum_DispatchesPerOwnedDeal(t *testing.T) {
	f := newJobsFixture(time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC))

	owner := testUserID
	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureDealMomentum).
		Return([]models.OrgID{testOrgID}, nil)
	f.crm.On("ListDealsNeedingNudge", mock.Anything, testOrgID).Return([]*models.Deal{
		{ID: "d1", OwnerUserID: &owner, Name: "Acme expansion", Stage: "negotiation",
			Amount: decimal.NewFromInt(90000), Health: models.DealHealthStalled, Risk: models.DealRiskMedium, Clarity: 70},
		{ID: "d2", Name: "Ownerless", Health: models.DealHealthCritical},
	}, nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Feature == models.FeatureDealMomentum && req.EntityID == "d1"
	})).Return(models.Skipped(models.SkipReasonCooldown), nil).Once()

	result, err := f.uc.RunDealMomentum(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	f.dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}

func atRiskMetrics(lastActivity time.Time) *models.UserMetrics {
	return &models.UserMetrics{
		UserID:         testUserID,
		OrgID:          testOrgID,
		Scores:         models.EngagementScores{Overall: 60},
		Segment:        models.SegmentAtRisk,
		FatigueLevel:   models.FatigueLevelLow,
		LastActivityAt: &lastActivity,
	}
}

func TestRunReengagement_EligibleAtRiskUser(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	f := newJobsFixture(now)

	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureReengagement).
		Return([]models.OrgID{testOrgID}, nil)
	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{mappedRecipient(testUserID, "U01")}, nil)
	// 6 days inactive: past the at_risk trigger (5 days).
	f.metrics.On("GetUserMetrics", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(atRiskMetrics(now.Add(-6*24*time.Hour))), nil)
	f.reengagement.On("GetAttemptState", mock.Anything, testOrgID, testUserID, models.SegmentAtRisk).
		Return(0, nil, nil)
	f.crm.On("GetReengagementContent", mock.Anything, testOrgID, testUserID).
		Return(models.ReengagementContent{}, nil)
	f.dispatcher.On("Dispatch", mock.Anything, mock.MatchedBy(func(req dispatch.Request) bool {
		return req.Feature == models.FeatureReengagement && req.UserID == testUserID
	})).Return(models.Delivered("ts", "D1"), nil).Once()
	f.reengagement.On("RecordAttempt", mock.Anything, testOrgID, testUserID, models.SegmentAtRisk).
		Return(nil).Once()

	result, err := f.uc.RunReengagement(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	f.reengagement.AssertCalled(t, "RecordAttempt", mock.Anything, testOrgID, testUserID, models.SegmentAtRisk)
}

func TestRunReengagement_ExhaustedAttemptsSkipped(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	f := newJobsFixture(now)

	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureReengagement).
		Return([]models.OrgID{testOrgID}, nil)
	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{mappedRecipient(testUserID, "U01")}, nil)
	f.metrics.On("GetUserMetrics", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(atRiskMetrics(now.Add(-6*24*time.Hour))), nil)
	// at_risk allows 3 attempts; all spent.
	f.reengagement.On("GetAttemptState", mock.Anything, testOrgID, testUserID, models.SegmentAtRisk).
		Return(3, nil, nil)

	result, err := f.uc.RunReengagement(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRunReengagement_DormantRoutesToEmail(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	f := newJobsFixture(now)

	lastActivity := now.Add(-20 * 24 * time.Hour)
	metrics := atRiskMetrics(lastActivity)
	metrics.Segment = models.SegmentDormant

	f.settings.On("ListOrgsWithFeatureEnabled", mock.Anything, models.FeatureReengagement).
		Return([]models.OrgID{testOrgID}, nil)
	f.recipients.On("ListRecipientsByOrg", mock.Anything, testOrgID).
		Return([]*models.Recipient{mappedRecipient(testUserID, "U01")}, nil)
	f.metrics.On("GetUserMetrics", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(metrics), nil)
	f.reengagement.On("GetAttemptState", mock.Anything, testOrgID, testUserID, models.SegmentDormant).
		Return(0, nil, nil)

	result, err := f.uc.RunReengagement(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	f.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRunMetricsRefresh_FeedbackAndBudgetReset(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newJobsFixture(now)

	f.orgs.On("ListOrganizationsWithWorkspace", mock.Anything).
		Return([]*models.Organization{{ID: testOrgID}}, nil)
	f.users.On("ListActiveUsersByOrg", mock.Anything, testOrgID).
		Return([]*models.User{
			{ID: testUserID, OrgID: testOrgID},
			{ID: "u_quiet", OrgID: testOrgID},
		}, nil)

	// Active user: budget reset, enough notifications for a first feedback ask.
	f.metrics.On("RefreshUserMetrics", mock.Anything, testOrgID, testUserID).
		Return(&models.UserMetrics{
			UserID:                     testUserID,
			Segment:                    models.SegmentRegular,
			NotificationsSinceFeedback: 12,
		}, nil)
	f.reengagement.On("ResetAttempts", mock.Anything, testOrgID, testUserID).Return(nil).Once()
	f.dispatcher.On("Dispatch", mock.Anything, requestFor(models.FeatureFeedbackRequest)).
		Return(models.Delivered("ts", "D1"), nil).Once()
	f.metrics.On("MarkFeedbackRequested", mock.Anything, testOrgID, testUserID).Return(nil).Once()

	// Dormant user: no reset, not enough notifications.
	f.metrics.On("RefreshUserMetrics", mock.Anything, testOrgID, "u_quiet").
		Return(&models.UserMetrics{
			UserID:                     "u_quiet",
			Segment:                    models.SegmentDormant,
			NotificationsSinceFeedback: 2,
		}, nil)

	result, err := f.uc.RunMetricsRefresh(context.Background(), JobOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	f.reengagement.AssertNotCalled(t, "ResetAttempts", mock.Anything, testOrgID, "u_quiet")
	f.metrics.AssertCalled(t, "MarkFeedbackRequested", mock.Anything, testOrgID, testUserID)
}
