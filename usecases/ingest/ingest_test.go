package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"use60backend/clock"
	"use60backend/config"
	"use60backend/models"
	"use60backend/services/activity"
	"use60backend/services/organizations"
	"use60backend/services/transcripts"
	"use60backend/services/users"
)

const (
	testOrgID        = models.OrgID("org_01JVNTCCN4CYZQ0B0F8Q4R7KT0")
	testUserID       = "u_01JVNTCCN4CYZQ0B0F8Q4R7KT1"
	testProxySecret  = "proxy-secret"
	testNativeSecret = "native-secret"
	testWebhookURL   = "https://api.use60.test/webhooks/telephony"
)

type ingestFixture struct {
	orgs        *organizations.MockOrganizationsService
	users       *users.MockUsersService
	activity    *activity.MockActivityService
	transcripts *transcripts.MockTranscriptsService
	clk         *clock.FixedClock

	uc *IngestUseCase
}

func newIngestFixture(at time.Time) *ingestFixture {
	f := &ingestFixture{
		orgs:        new(organizations.MockOrganizationsService),
		users:       new(users.MockUsersService),
		activity:    new(activity.MockActivityService),
		transcripts: new(transcripts.MockTranscriptsService),
		clk:         clock.NewFixedClock(at),
	}
	f.uc = NewIngestUseCase(
		f.orgs,
		f.users,
		f.activity,
		f.transcripts,
		config.TelephonyConfig{
			JustCallSecret: testNativeSecret,
			ProxySecret:    testProxySecret,
			WebhookURL:     testWebhookURL,
		},
		f.clk,
	)
	return f
}

func (f *ingestFixture) stubOrg() {
	f.orgs.On("GetOrganizationByID", mock.Anything, testOrgID).
		Return(mo.Some(&models.Organization{ID: testOrgID, Name: "Acme"}), nil)
}

func signProxy(timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(testProxySecret))
	mac.Write([]byte("v1:" + timestamp + ":"))
	mac.Write(body)
	return "v1=" + hex.EncodeToString(mac.Sum(nil))
}

func signNative(eventType, timestamp string) string {
	base := testNativeSecret + "|" + url.QueryEscape(testWebhookURL) + "|" + eventType + "|" + timestamp
	mac := hmac.New(sha256.New, []byte(testNativeSecret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func callBody(t *testing.T, eventType string, data map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{"type": eventType, "data": data})
	require.NoError(t, err)
	return body
}

func proxyRequest(now time.Time, body []byte) WebhookRequest {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	return WebhookRequest{
		OrgID:          testOrgID,
		Body:           body,
		ProxyTimestamp: timestamp,
		ProxySignature: signProxy(timestamp, body),
	}
}

func storedCall(direction models.CallDirection, owner *string) *models.Call {
	recording := "https://recordings.test/call_900.mp3"
	started := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	return &models.Call{
		ID:               "call_1",
		OrgID:            testOrgID,
		Provider:         "justcall",
		ExternalID:       "900",
		Direction:        direction,
		StartedAt:        &started,
		OwnerUserID:      owner,
		RecordingURL:     &recording,
		TranscriptStatus: models.TranscriptStatusMissing,
	}
}

func TestHandleCallWebhook_IngestsOutboundCall(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.stubOrg()

	owner := testUserID
	f.users.On("GetUserByEmail", mock.Anything, testOrgID, "rep@acme.com").
		Return(mo.Some(&models.User{ID: testUserID, OrgID: testOrgID}), nil)
	f.transcripts.On("UpsertCallFromEvent", mock.Anything, testOrgID,
		mock.MatchedBy(func(event *models.CanonicalCallEvent) bool {
			return event.ExternalID == "900" &&
				event.Direction == models.CallDirectionOutbound &&
				event.OwnerUserID != nil && *event.OwnerUserID == testUserID &&
				event.OwnerEmail != nil && *event.OwnerEmail == "rep@acme.com"
		})).
		Return(storedCall(models.CallDirectionOutbound, &owner), true, nil)
	f.transcripts.On("EnqueueTranscriptFetch", mock.Anything, testOrgID, "call_1", models.PriorityHigh).
		Return(nil).Once()
	f.activity.On("RecordCommunicationEvent", mock.Anything, mock.MatchedBy(func(event *models.CommunicationEvent) bool {
		return event.UserID == testUserID && event.ExternalID == "900" && event.Source == "justcall"
	})).Return(nil).Once()
	f.activity.On("RecordOutboundActivity", mock.Anything, mock.MatchedBy(func(a *models.OutboundActivity) bool {
		return a.Type == "outbound" && a.OutboundType == "call" && a.OriginalActivityID == "call_1"
	})).Return(nil).Once()
	f.users.On("TouchLastAppActive", mock.Anything, testOrgID, testUserID, mock.Anything).Return(nil).Once()
	f.activity.On("RecordIntegrationHeartbeat", mock.Anything, mock.MatchedBy(func(hb *models.IntegrationHeartbeat) bool {
		return hb.OrgID == testOrgID && hb.Provider == "justcall"
	})).Return(nil).Once()

	body := callBody(t, "call.completed", map[string]any{
		"call_id":          900,
		"direction":        "Outgoing",
		"call_status":      "completed",
		"duration_seconds": 412.7,
		"agent_email":      "Rep@Acme.com",
		"to_number":        "+15550100",
		"recording_url":    "https://recordings.test/call_900.mp3",
	})

	result, err := f.uc.HandleCallWebhook(context.Background(), proxyRequest(now, body))

	require.NoError(t, err)
	assert.False(t, result.Ignored)
	assert.Equal(t, "call_1", result.CallID)
	assert.True(t, result.NewCall)
	assert.True(t, result.TranscriptQueued)
	f.transcripts.AssertExpectations(t)
	f.activity.AssertExpectations(t)
}

func TestHandleCallWebhook_InboundWithoutAgent(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.stubOrg()

	call := storedCall(models.CallDirectionInbound, nil)
	call.RecordingURL = nil
	f.transcripts.On("UpsertCallFromEvent", mock.Anything, testOrgID, mock.Anything).
		Return(call, true, nil)
	f.activity.On("RecordIntegrationHeartbeat", mock.Anything, mock.Anything).Return(nil).Once()

	body := callBody(t, "call.completed", map[string]any{
		"call_id":   900,
		"direction": "Incoming",
	})

	result, err := f.uc.HandleCallWebhook(context.Background(), proxyRequest(now, body))

	require.NoError(t, err)
	assert.False(t, result.TranscriptQueued)
	f.activity.AssertNotCalled(t, "RecordCommunicationEvent", mock.Anything, mock.Anything)
	f.activity.AssertNotCalled(t, "RecordOutboundActivity", mock.Anything, mock.Anything)
	f.transcripts.AssertNotCalled(t, "EnqueueTranscriptFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallWebhook_ReplayDoesNotRequeueTranscript(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.stubOrg()

	call := storedCall(models.CallDirectionInbound, nil)
	call.TranscriptStatus = models.TranscriptStatusQueued
	f.transcripts.On("UpsertCallFromEvent", mock.Anything, testOrgID, mock.Anything).
		Return(call, false, nil)
	f.activity.On("RecordIntegrationHeartbeat", mock.Anything, mock.Anything).Return(nil)

	body := callBody(t, "call.completed", map[string]any{
		"call_id":       900,
		"direction":     "Incoming",
		"recording_url": "https://recordings.test/call_900.mp3",
	})

	result, err := f.uc.HandleCallWebhook(context.Background(), proxyRequest(now, body))

	require.NoError(t, err)
	assert.False(t, result.NewCall)
	assert.False(t, result.TranscriptQueued)
	f.transcripts.AssertNotCalled(t, "EnqueueTranscriptFetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallWebhook_NativeSignature(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.stubOrg()

	f.transcripts.On("UpsertCallFromEvent", mock.Anything, testOrgID, mock.Anything).
		Return(storedCall(models.CallDirectionInbound, nil), true, nil)
	f.transcripts.On("EnqueueTranscriptFetch", mock.Anything, testOrgID, "call_1", models.PriorityHigh).
		Return(nil)
	f.activity.On("RecordIntegrationHeartbeat", mock.Anything, mock.Anything).Return(nil)

	body := callBody(t, "call.completed", map[string]any{
		"call_id":   900,
		"direction": "Incoming",
	})
	timestamp := strconv.FormatInt(now.Unix(), 10)

	result, err := f.uc.HandleCallWebhook(context.Background(), WebhookRequest{
		OrgID:             testOrgID,
		Body:              body,
		ProviderTimestamp: timestamp,
		ProviderSignature: signNative("call.completed", timestamp),
	})

	require.NoError(t, err)
	assert.Equal(t, "call_1", result.CallID)
}

func TestHandleCallWebhook_RejectsBadSignature(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)

	body := callBody(t, "call.completed", map[string]any{"call_id": 900})
	req := proxyRequest(now, body)
	req.ProxySignature = "v1=" + hex.EncodeToString([]byte("not the signature"))

	_, err := f.uc.HandleCallWebhook(context.Background(), req)

	require.ErrorIs(t, err, ErrUnauthorized)
	f.transcripts.AssertNotCalled(t, "UpsertCallFromEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallWebhook_RejectsReplayedTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)

	body := callBody(t, "call.completed", map[string]any{"call_id": 900})
	req := proxyRequest(now.Add(-11*time.Minute), body)

	_, err := f.uc.HandleCallWebhook(context.Background(), req)

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHandleCallWebhook_MissingSignatureUnauthorized(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)

	body := callBody(t, "call.completed", map[string]any{"call_id": 900})

	_, err := f.uc.HandleCallWebhook(context.Background(), WebhookRequest{OrgID: testOrgID, Body: body})

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHandleCallWebhook_UnknownOrgUnauthorized(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.orgs.On("GetOrganizationByID", mock.Anything, testOrgID).
		Return(mo.None[*models.Organization](), nil)

	body := callBody(t, "call.completed", map[string]any{"call_id": 900})

	_, err := f.uc.HandleCallWebhook(context.Background(), proxyRequest(now, body))

	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestHandleCallWebhook_IgnoresNonCallEvent(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.stubOrg()

	body := callBody(t, "sms.received", map[string]any{"id": 41})

	result, err := f.uc.HandleCallWebhook(context.Background(), proxyRequest(now, body))

	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Equal(t, "unsupported_event_type", result.Reason)
	f.transcripts.AssertNotCalled(t, "UpsertCallFromEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCallWebhook_MissingExternalIDIgnored(t *testing.T) {
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	f := newIngestFixture(now)
	f.stubOrg()

	body := callBody(t, "call.completed", map[string]any{"direction": "Incoming"})

	result, err := f.uc.HandleCallWebhook(context.Background(), proxyRequest(now, body))

	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Equal(t, "missing_external_id", result.Reason)
}

func TestNormalizeCallEvent(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"call_id":          "jc-123",
		"direction":        "Incoming",
		"call_status":      "completed",
		"started_at":       "2026-03-03 09:30:00",
		"duration_seconds": -42.9,
		"agent_email":      " Rep@Acme.com ",
		"transcript":       "hello there",
	})
	require.NoError(t, err)

	event, err := normalizeCallEvent(raw)

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, "justcall", event.Provider)
	assert.Equal(t, "jc-123", event.ExternalID)
	assert.Equal(t, models.CallDirectionInbound, event.Direction)
	require.NotNil(t, event.DurationSeconds)
	assert.Equal(t, 0, *event.DurationSeconds, "negative durations clamp to zero")
	require.NotNil(t, event.StartedAt)
	assert.Equal(t, time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC), *event.StartedAt)
	require.NotNil(t, event.AgentEmail)
	assert.Equal(t, "rep@acme.com", *event.AgentEmail)
	require.NotNil(t, event.TranscriptText)
	assert.Equal(t, "hello there", *event.TranscriptText)
}

func TestNormalizeDirection(t *testing.T) {
	cases := map[string]models.CallDirection{
		"Incoming": models.CallDirectionInbound,
		"outbound": models.CallDirectionOutbound,
		"Internal": models.CallDirectionInternal,
		"sideways": models.CallDirectionUnknown,
		"":         models.CallDirectionUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalizeDirection(raw), fmt.Sprintf("direction %q", raw))
	}
}
