package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"use60backend/models"
	"use60backend/services"
	"use60backend/usecases/ingest"
)

// WebhooksHandler terminates the two inbound event surfaces: telephony call
// webhooks and Slack interaction callbacks.
type WebhooksHandler struct {
	slackSigningSecret   string
	ingestUseCase        *ingest.IngestUseCase
	organizationsService services.OrganizationsService
	activityService      services.ActivityService
}

func NewWebhooksHandler(
	slackSigningSecret string,
	ingestUseCase *ingest.IngestUseCase,
	organizationsService services.OrganizationsService,
	activityService services.ActivityService,
) *WebhooksHandler {
	return &WebhooksHandler{
		slackSigningSecret:   slackSigningSecret,
		ingestUseCase:        ingestUseCase,
		organizationsService: organizationsService,
		activityService:      activityService,
	}
}

func (h *WebhooksHandler) SetupEndpoints(router *mux.Router) {
	log.Printf("🚀 Registering webhook endpoints")

	router.HandleFunc("/webhooks/telephony", h.HandleTelephonyWebhook).Methods("POST")
	log.Printf("✅ POST /webhooks/telephony endpoint registered")

	router.HandleFunc("/webhooks/slack/interactions", h.HandleSlackInteraction).Methods("POST")
	log.Printf("✅ POST /webhooks/slack/interactions endpoint registered")

	log.Printf("✅ All webhook endpoints registered successfully")
}

// HandleTelephonyWebhook receives provider call events. The token query
// parameter routes to the org; the signature headers authenticate the body.
func (h *WebhooksHandler) HandleTelephonyWebhook(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Telephony webhook received from %s", r.RemoteAddr)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("❌ Failed to read webhook body: %v", err)
		writeJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSONError(w, "missing token", http.StatusUnauthorized)
		return
	}

	result, err := h.ingestUseCase.HandleCallWebhook(r.Context(), ingest.WebhookRequest{
		OrgID:             models.OrgID(token),
		Body:              body,
		ProxyTimestamp:    r.Header.Get("X-Use60-Timestamp"),
		ProxySignature:    r.Header.Get("X-Use60-Signature"),
		ProviderTimestamp: r.Header.Get("x-justcall-request-timestamp"),
		ProviderSignature: r.Header.Get("x-justcall-signature"),
	})
	if err != nil {
		if errors.Is(err, ingest.ErrUnauthorized) {
			log.Printf("❌ Telephony webhook verification failed: %v", err)
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		log.Printf("❌ Telephony webhook processing failed: %v", err)
		writeJSONError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	writeJSON(w, result)
}

// HandleSlackInteraction receives Block Kit interaction callbacks (button
// clicks on delivered notifications) and feeds them into engagement tracking.
func (h *WebhooksHandler) HandleSlackInteraction(w http.ResponseWriter, r *http.Request) {
	log.Printf("📨 Slack interaction received from %s", r.RemoteAddr)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("❌ Failed to read interaction body: %v", err)
		writeJSONError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.verifySlackSignature(r, body); err != nil {
		log.Printf("❌ Slack signature verification failed: %v", err)
		writeJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	event, err := h.parseInteraction(r.Context(), body)
	if err != nil {
		log.Printf("❌ Failed to parse interaction payload: %v", err)
		writeJSONError(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if event == nil {
		// Interaction types we do not track still get a 200 so Slack
		// does not surface an error to the user.
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.activityService.RecordInteraction(r.Context(), event); err != nil {
		log.Printf("❌ Failed to record interaction: %v", err)
		writeJSONError(w, "failed to record interaction", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// verifySlackSignature verifies the authenticity of a Slack callback request
func (h *WebhooksHandler) verifySlackSignature(r *http.Request, body []byte) error {
	timestamp := r.Header.Get("X-Slack-Request-Timestamp")
	signature := r.Header.Get("X-Slack-Signature")

	if timestamp == "" || signature == "" {
		return fmt.Errorf("missing required headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp format: %v", err)
	}
	if time.Now().Unix()-ts > 300 { // 5 minutes
		return fmt.Errorf("request timestamp too old")
	}

	baseString := fmt.Sprintf("v0:%s:%s", timestamp, string(body))
	mac := hmac.New(sha256.New, []byte(h.slackSigningSecret))
	mac.Write([]byte(baseString))
	expectedSignature := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}

// interactionPayload is the subset of Slack's block_actions callback we use.
type interactionPayload struct {
	Type string `json:"type"`
	Team struct {
		ID string `json:"id"`
	} `json:"team"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Actions []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// parseInteraction maps the form-encoded callback to a normalized
// InteractionEvent. A nil event means nothing to track.
func (h *WebhooksHandler) parseInteraction(ctx context.Context, body []byte) (*models.InteractionEvent, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse form body: %w", err)
	}
	raw := values.Get("payload")
	if raw == "" {
		return nil, fmt.Errorf("missing payload field")
	}

	var payload interactionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if payload.Type != "block_actions" || len(payload.Actions) == 0 {
		return nil, nil
	}

	maybeOrg, err := h.organizationsService.GetOrganizationBySlackTeamID(ctx, payload.Team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve team: %w", err)
	}
	org, ok := maybeOrg.Get()
	if !ok {
		log.Printf("⚠️ Interaction from unknown Slack team %s - dropping", payload.Team.ID)
		return nil, nil
	}

	action := payload.Actions[0]
	kind := models.InteractionClicked
	if strings.HasSuffix(action.ActionID, "_dismiss") {
		kind = models.InteractionDismissed
	}

	return &models.InteractionEvent{
		OrgID:       org.ID,
		SlackUserID: payload.User.ID,
		Feature:     models.FeatureKey(action.Value),
		Action:      kind,
		OccurredAt:  time.Now().UTC(),
	}, nil
}
