package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"use60backend/db"
	"use60backend/models"
)

func queuedItem(t *testing.T, feature models.FeatureKey, priority models.Priority) *models.QueuedNotification {
	t.Helper()
	payload, err := json.Marshal(queuedPayload{Model: testModel(feature), EntityID: "deal_1"})
	require.NoError(t, err)
	return &models.QueuedNotification{
		ID:           "qn_1",
		UserID:       testUserID,
		OrgID:        testOrgID,
		Feature:      feature,
		Priority:     priority,
		Channel:      models.ChannelSlack,
		Payload:      payload,
		ScheduledFor: testTuesdayMorning().Add(-time.Minute),
		Status:       models.QueuedStatusScheduled,
		Attempts:     1,
		MaxAttempts:  5,
	}
}

func TestDrainDueNotifications_DeliversAndSettles(t *testing.T) {
	f := newFixture(testTuesdayMorning())
	item := queuedItem(t, models.FeatureDealMomentum, models.PriorityNormal)

	f.notifications.On("LeaseDueBatch", mock.Anything, testTuesdayMorning(), drainBatchSize).
		Return([]*models.QueuedNotification{item}, nil)
	f.stubGates(models.FeatureDealMomentum, testMetrics())
	f.stubDelivery("D0456")
	f.notifications.On("SettleNotification", mock.Anything, testOrgID, "qn_1", models.QueuedStatusSent, (*string)(nil)).
		Return(nil)

	result, err := f.uc.DrainDueNotifications(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Zero(t, result.Failed)
	f.notifications.AssertCalled(t, "SettleNotification",
		mock.Anything, testOrgID, "qn_1", models.QueuedStatusSent, (*string)(nil))
}

func TestDrainDueNotifications_Empty(t *testing.T) {
	f := newFixture(testTuesdayMorning())
	f.notifications.On("LeaseDueBatch", mock.Anything, testTuesdayMorning(), drainBatchSize).
		Return([]*models.QueuedNotification{}, nil)

	result, err := f.uc.DrainDueNotifications(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Delivered)
	assert.Zero(t, result.Requeued)
}

func TestDrainDueNotifications_MalformedPayloadFails(t *testing.T) {
	f := newFixture(testTuesdayMorning())
	item := queuedItem(t, models.FeatureDealMomentum, models.PriorityNormal)
	item.Payload = json.RawMessage(`{"not": "a payload"}`)

	f.notifications.On("LeaseDueBatch", mock.Anything, testTuesdayMorning(), drainBatchSize).
		Return([]*models.QueuedNotification{item}, nil)
	f.notifications.On("SettleNotification", mock.Anything, testOrgID, "qn_1", models.QueuedStatusFailed, mock.Anything).
		Return(nil)

	result, err := f.uc.DrainDueNotifications(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestDrainDueNotifications_PolicyDeniedReschedules(t *testing.T) {
	f := newFixture(testTuesdayMorning())
	item := queuedItem(t, models.FeatureDealMomentum, models.PriorityNormal)

	f.notifications.On("LeaseDueBatch", mock.Anything, testTuesdayMorning(), drainBatchSize).
		Return([]*models.QueuedNotification{item}, nil)
	f.stubGates(models.FeatureDealMomentum, testMetrics())

	// Hourly limit exhausted: the row is pushed to the next allowed hour,
	// never re-enqueued as a second row.
	for _, call := range f.notifications.ExpectedCalls {
		if call.Method == "CountSentSince" {
			call.ReturnArguments = mock.Arguments{&db.SentCounts{HourCount: 2, DayCount: 2}, nil}
		}
	}
	f.notifications.On("RescheduleNotification", mock.Anything, testOrgID, "qn_1",
		time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)).Return(nil)

	result, err := f.uc.DrainDueNotifications(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Requeued)
	f.notifications.AssertNotCalled(t, "EnqueueNotification", mock.Anything, mock.Anything)
	f.slack.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDrainDueNotifications_CancelledWhenDeduped(t *testing.T) {
	f := newFixture(testTuesdayMorning())
	item := queuedItem(t, models.FeatureDealMomentum, models.PriorityNormal)

	f.notifications.On("LeaseDueBatch", mock.Anything, testTuesdayMorning(), drainBatchSize).
		Return([]*models.QueuedNotification{item}, nil)
	f.settings.On("GetFeatureSettings", mock.Anything, testOrgID, models.FeatureDealMomentum).
		Return(mo.Some(testSettings(models.FeatureDealMomentum)), nil)
	f.orgs.On("GetOrganizationByID", mock.Anything, testOrgID).
		Return(mo.Some(testOrganization()), nil)
	f.recipients.On("GetRecipientByUserID", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(testRecipient()), nil)
	f.metrics.On("GetUserMetrics", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(testMetrics()), nil)
	f.users.On("GetUserByID", mock.Anything, testOrgID, testUserID).
		Return(mo.Some(&models.User{ID: testUserID, Timezone: "UTC"}), nil)
	f.notifications.On("FindRecentSent", mock.Anything, testOrgID, models.FeatureDealMomentum, testSlackUserID, "deal_1", mock.Anything).
		Return(mo.Some(&models.SentRecord{ID: "sent_1"}), nil)
	f.notifications.On("SettleNotification", mock.Anything, testOrgID, "qn_1", models.QueuedStatusCancelled, mock.Anything).
		Return(nil)

	result, err := f.uc.DrainDueNotifications(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Cancelled)
}

func TestDrainDueNotifications_RetryableFailureReschedules(t *testing.T) {
	f := newFixture(testTuesdayMorning())
	item := queuedItem(t, models.FeatureDealMomentum, models.PriorityNormal)

	f.notifications.On("LeaseDueBatch", mock.Anything, testTuesdayMorning(), drainBatchSize).
		Return([]*models.QueuedNotification{item}, nil)
	f.stubGates(models.FeatureDealMomentum, testMetrics())
	f.slack.On("OpenDMChannel", mock.Anything, testSlackUserID).
		Return("", assertRetryableErr{})
	f.notifications.On("RescheduleNotification", mock.Anything, testOrgID, "qn_1", mock.Anything).
		Return(nil)

	result, err := f.uc.DrainDueNotifications(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Requeued)
	f.notifications.AssertCalled(t, "RescheduleNotification", mock.Anything, testOrgID, "qn_1",
		testTuesdayMorning().Add(time.Duration(item.Attempts)*retryDelayStep))
}

// assertRetryableErr is a stand-in network error.
type assertRetryableErr struct{}

func (assertRetryableErr) Error() string   { return "dial tcp: connection refused" }
func (assertRetryableErr) Timeout() bool   { return true }
func (assertRetryableErr) Temporary() bool { return true }
