package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"use60backend/clock"
	"use60backend/config"
	"use60backend/models"
	"use60backend/services"
)

// ErrUnauthorized is returned for any signature or replay failure. Handlers
// map it to a 401 without leaking which check failed.
var ErrUnauthorized = errors.New("webhook verification failed")

// WebhookRequest carries everything the handler extracted from an inbound
// telephony webhook. Exactly one signature scheme needs to verify.
type WebhookRequest struct {
	OrgID models.OrgID
	Body  []byte

	// Proxy scheme headers (X-Use60-Timestamp / X-Use60-Signature).
	ProxyTimestamp string
	ProxySignature string

	// Provider native headers (x-justcall-request-timestamp / x-justcall-signature).
	ProviderTimestamp string
	ProviderSignature string
}

// IngestResult is the webhook response body. Ignored events still return 2xx
// so the provider does not retry them.
type IngestResult struct {
	Ignored          bool   `json:"ignored,omitempty"`
	Reason           string `json:"reason,omitempty"`
	CallID           string `json:"call_id,omitempty"`
	NewCall          bool   `json:"new_call,omitempty"`
	TranscriptQueued bool   `json:"transcript_queued,omitempty"`
}

func ignored(reason string) *IngestResult {
	return &IngestResult{Ignored: true, Reason: reason}
}

// IngestUseCase normalizes inbound telephony webhooks into the call store and
// the shared activity trail.
type IngestUseCase struct {
	organizationsService services.OrganizationsService
	usersService         services.UsersService
	activityService      services.ActivityService
	transcriptsService   services.TranscriptsService
	telephony            config.TelephonyConfig
	clk                  clock.Clock
}

func NewIngestUseCase(
	organizationsService services.OrganizationsService,
	usersService services.UsersService,
	activityService services.ActivityService,
	transcriptsService services.TranscriptsService,
	telephony config.TelephonyConfig,
	clk clock.Clock,
) *IngestUseCase {
	return &IngestUseCase{
		organizationsService: organizationsService,
		usersService:         usersService,
		activityService:      activityService,
		transcriptsService:   transcriptsService,
		telephony:            telephony,
		clk:                  clk,
	}
}

// HandleCallWebhook verifies, normalizes, and applies one telephony webhook.
// Side effects are ordered and idempotent so provider retries are harmless.
func (u *IngestUseCase) HandleCallWebhook(ctx context.Context, req WebhookRequest) (*IngestResult, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode webhook envelope: %w", err)
	}

	if err := u.verifyRequest(req, envelope.Type); err != nil {
		return nil, err
	}

	maybeOrg, err := u.organizationsService.GetOrganizationByID(ctx, req.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}
	if _, ok := maybeOrg.Get(); !ok {
		return nil, fmt.Errorf("%w: unknown organization", ErrUnauthorized)
	}

	if !isCallEvent(envelope.Type) {
		log.Printf("📨 Ignoring non-call webhook event: %s", envelope.Type)
		return ignored("unsupported_event_type"), nil
	}

	event, err := normalizeCallEvent(envelope.Data)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return ignored("missing_external_id"), nil
	}

	return u.applyCallEvent(ctx, req.OrgID, event)
}

// verifyRequest accepts whichever signature scheme is present and configured.
// A request carrying neither is unauthorized.
func (u *IngestUseCase) verifyRequest(req WebhookRequest, eventType string) error {
	now := u.clk.Now()

	if req.ProxySignature != "" && u.telephony.ProxySecret != "" {
		return VerifyProxySignature(u.telephony.ProxySecret, req.ProxyTimestamp, req.ProxySignature, req.Body, now)
	}
	if req.ProviderSignature != "" && u.telephony.JustCallSecret != "" {
		return VerifyJustCallSignature(
			u.telephony.JustCallSecret, u.telephony.WebhookURL, eventType,
			req.ProviderTimestamp, req.ProviderSignature, now)
	}
	return fmt.Errorf("%w: no verifiable signature", ErrUnauthorized)
}

func (u *IngestUseCase) applyCallEvent(
	ctx context.Context,
	organizationID models.OrgID,
	event *models.CanonicalCallEvent,
) (*IngestResult, error) {
	u.resolveOwner(ctx, organizationID, event)

	call, inserted, err := u.transcriptsService.UpsertCallFromEvent(ctx, organizationID, event)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{CallID: call.ID, NewCall: inserted}

	if call.HasRecording() && !call.HasTranscript() && call.TranscriptStatus == models.TranscriptStatusMissing {
		spec := models.FeatureRegistry[models.FeatureMeetingDebrief]
		if err := u.transcriptsService.EnqueueTranscriptFetch(ctx, organizationID, call.ID, spec.DefaultPriority); err != nil {
			log.Printf("⚠️ Failed to enqueue transcript fetch for call %s: %v", call.ID, err)
		} else {
			result.TranscriptQueued = true
		}
	}

	occurredAt := u.clk.Now()
	if call.StartedAt != nil {
		occurredAt = *call.StartedAt
	}

	if call.OwnerUserID != nil {
		owner := *call.OwnerUserID
		if err := u.activityService.RecordCommunicationEvent(ctx, &models.CommunicationEvent{
			UserID:     owner,
			OrgID:      organizationID,
			ExternalID: call.ExternalID,
			Source:     call.Provider,
			Type:       "call",
			OccurredAt: occurredAt,
		}); err != nil {
			log.Printf("⚠️ Failed to record communication event for call %s: %v", call.ID, err)
		}

		if call.Direction == models.CallDirectionOutbound {
			if err := u.activityService.RecordOutboundActivity(ctx, &models.OutboundActivity{
				UserID:             owner,
				OrgID:              organizationID,
				Type:               "outbound",
				OutboundType:       "call",
				OriginalActivityID: call.ID,
				OccurredAt:         occurredAt,
			}); err != nil {
				log.Printf("⚠️ Failed to record outbound activity for call %s: %v", call.ID, err)
			}
		}

		if err := u.usersService.TouchLastAppActive(ctx, organizationID, owner, occurredAt); err != nil {
			log.Printf("⚠️ Failed to touch last active for user %s: %v", owner, err)
		}
	}

	if err := u.activityService.RecordIntegrationHeartbeat(ctx, &models.IntegrationHeartbeat{
		OrgID:       organizationID,
		Provider:    call.Provider,
		LastEventAt: u.clk.Now(),
	}); err != nil {
		log.Printf("⚠️ Failed to record integration heartbeat: %v", err)
	}

	log.Printf("📨 Ingested call %s (new: %t, transcript queued: %t)", call.ID, inserted, result.TranscriptQueued)
	return result, nil
}

// resolveOwner maps the agent email to a product user. A missing membership
// leaves the owner unset but keeps the email for later reconciliation.
func (u *IngestUseCase) resolveOwner(ctx context.Context, organizationID models.OrgID, event *models.CanonicalCallEvent) {
	if event.AgentEmail == nil {
		return
	}
	event.OwnerEmail = event.AgentEmail

	maybeUser, err := u.usersService.GetUserByEmail(ctx, organizationID, *event.AgentEmail)
	if err != nil {
		log.Printf("⚠️ Failed to look up agent %s: %v", *event.AgentEmail, err)
		return
	}
	if user, ok := maybeUser.Get(); ok {
		event.OwnerUserID = &user.ID
	}
}
