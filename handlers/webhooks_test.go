package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"use60backend/models"
	"use60backend/services/activity"
	"use60backend/services/organizations"
)

const (
	testSigningSecret = "slack-signing-secret"
	testTeamID        = "T0TEAM"
)

func signedInteractionRequest(t *testing.T, payload string) *http.Request {
	t.Helper()

	form := url.Values{"payload": {payload}}
	body := form.Encode()
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write([]byte("v0:" + timestamp + ":" + body))
	signature := "v0=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/slack/interactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)
	return req
}

func blockActionsPayload(actionID, value string) string {
	return fmt.Sprintf(`{
		"type": "block_actions",
		"team": {"id": %q},
		"user": {"id": "U01"},
		"actions": [{"action_id": %q, "value": %q}]
	}`, testTeamID, actionID, value)
}

func TestHandleSlackInteraction_RecordsClick(t *testing.T) {
	orgs := new(organizations.MockOrganizationsService)
	acts := new(activity.MockActivityService)
	h := NewWebhooksHandler(testSigningSecret, nil, orgs, acts)

	teamID := testTeamID
	orgs.On("GetOrganizationBySlackTeamID", mock.Anything, testTeamID).
		Return(mo.Some(&models.Organization{
			ID:          models.OrgID("org_1"),
			SlackTeamID: &teamID,
		}), nil)
	acts.On("RecordInteraction", mock.Anything, mock.MatchedBy(func(event *models.InteractionEvent) bool {
		return event.OrgID == models.OrgID("org_1") &&
			event.SlackUserID == "U01" &&
			event.Feature == models.FeatureDealMomentum &&
			event.Action == models.InteractionClicked
	})).Return(nil).Once()

	recorder := httptest.NewRecorder()
	h.HandleSlackInteraction(recorder, signedInteractionRequest(t,
		blockActionsPayload("deal_momentum_nudge_open", "deal_momentum_nudge")))

	assert.Equal(t, http.StatusOK, recorder.Code)
	acts.AssertExpectations(t)
}

func TestHandleSlackInteraction_DismissAction(t *testing.T) {
	orgs := new(organizations.MockOrganizationsService)
	acts := new(activity.MockActivityService)
	h := NewWebhooksHandler(testSigningSecret, nil, orgs, acts)

	orgs.On("GetOrganizationBySlackTeamID", mock.Anything, testTeamID).
		Return(mo.Some(&models.Organization{ID: models.OrgID("org_1")}), nil)
	acts.On("RecordInteraction", mock.Anything, mock.MatchedBy(func(event *models.InteractionEvent) bool {
		return event.Action == models.InteractionDismissed
	})).Return(nil).Once()

	recorder := httptest.NewRecorder()
	h.HandleSlackInteraction(recorder, signedInteractionRequest(t,
		blockActionsPayload("morning_brief_dismiss", "morning_brief")))

	assert.Equal(t, http.StatusOK, recorder.Code)
	acts.AssertExpectations(t)
}

func TestHandleSlackInteraction_BadSignature(t *testing.T) {
	orgs := new(organizations.MockOrganizationsService)
	acts := new(activity.MockActivityService)
	h := NewWebhooksHandler(testSigningSecret, nil, orgs, acts)

	req := signedInteractionRequest(t, blockActionsPayload("x_open", "daily_digest"))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")

	recorder := httptest.NewRecorder()
	h.HandleSlackInteraction(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	acts.AssertNotCalled(t, "RecordInteraction", mock.Anything, mock.Anything)
}

func TestHandleSlackInteraction_UnknownTeamIgnored(t *testing.T) {
	orgs := new(organizations.MockOrganizationsService)
	acts := new(activity.MockActivityService)
	h := NewWebhooksHandler(testSigningSecret, nil, orgs, acts)

	orgs.On("GetOrganizationBySlackTeamID", mock.Anything, testTeamID).
		Return(mo.None[*models.Organization](), nil)

	recorder := httptest.NewRecorder()
	h.HandleSlackInteraction(recorder, signedInteractionRequest(t,
		blockActionsPayload("daily_digest_open", "daily_digest")))

	assert.Equal(t, http.StatusOK, recorder.Code)
	acts.AssertNotCalled(t, "RecordInteraction", mock.Anything, mock.Anything)
}

func TestHandleSlackInteraction_UntrackedTypeAcknowledged(t *testing.T) {
	orgs := new(organizations.MockOrganizationsService)
	acts := new(activity.MockActivityService)
	h := NewWebhooksHandler(testSigningSecret, nil, orgs, acts)

	recorder := httptest.NewRecorder()
	h.HandleSlackInteraction(recorder, signedInteractionRequest(t,
		`{"type": "view_submission", "team": {"id": "T0TEAM"}}`))

	assert.Equal(t, http.StatusOK, recorder.Code)
	acts.AssertNotCalled(t, "RecordInteraction", mock.Anything, mock.Anything)
}
