package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"use60backend/clients"
	"use60backend/clock"
	"use60backend/core"
	"use60backend/db"
	"use60backend/engagement"
	"use60backend/models"
	"use60backend/opsalert"
	"use60backend/services"
	"use60backend/slackblocks"
)

const (
	// slackTimeout bounds a single chat.postMessage / conversations.open call.
	slackTimeout = 10 * time.Second

	// deferThreshold is the minimum gain before a send is pushed to its
	// optimal hour instead of going out now.
	deferThreshold = 5 * time.Minute

	recordSentMaxAttempts = 3
)

// ContextBuilder assembles the typed message model for one dispatch. It is
// invoked only after every gate has passed, so expensive CRM reads happen
// for messages that will actually go out (or be queued).
type ContextBuilder func(ctx context.Context) (*models.MessageModel, error)

// SlackClientFactory builds a Slack client bound to one org's bot token.
type SlackClientFactory func(botToken string) clients.SlackClient

// Request describes one candidate notification dispatch.
type Request struct {
	Feature  models.FeatureKey
	OrgID    models.OrgID
	UserID   string
	EntityID string
	// Priority overrides the feature's registry default when non-empty.
	Priority models.Priority
	// Manual dispatches (admin-triggered) bypass dedupe.
	Manual bool
	// NoDefer disables the optimal-time deferral, forcing an immediate
	// delivery evaluation. Set by the queue drainer and manual triggers.
	NoDefer bool
	// BuildContext produces the message content. Required.
	BuildContext ContextBuilder

	// queuedID links a re-entered queued row so policy denials reschedule
	// it instead of enqueueing a second row.
	queuedID string
}

// DispatchUseCase runs the delivery pipeline for a single notification:
// settings gate, recipient mapping, dedupe, policy, render, Slack delivery,
// and the post-delivery bookkeeping.
type DispatchUseCase struct {
	organizationsService   services.OrganizationsService
	usersService           services.UsersService
	featureSettingsService services.FeatureSettingsService
	recipientsService      services.RecipientsService
	userMetricsService     services.UserMetricsService
	notificationsService   services.NotificationsService
	activityService        services.ActivityService
	inAppService           services.InAppNotificationsService
	slackClientFactory     SlackClientFactory
	cfg                    engagement.Config
	clk                    clock.Clock
}

// NewDispatchUseCase creates a new instance of DispatchUseCase
func NewDispatchUseCase(
	organizationsService services.OrganizationsService,
	usersService services.UsersService,
	featureSettingsService services.FeatureSettingsService,
	recipientsService services.RecipientsService,
	userMetricsService services.UserMetricsService,
	notificationsService services.NotificationsService,
	activityService services.ActivityService,
	inAppService services.InAppNotificationsService,
	slackClientFactory SlackClientFactory,
	cfg engagement.Config,
	clk clock.Clock,
) *DispatchUseCase {
	return &DispatchUseCase{
		organizationsService:   organizationsService,
		usersService:           usersService,
		featureSettingsService: featureSettingsService,
		recipientsService:      recipientsService,
		userMetricsService:     userMetricsService,
		notificationsService:   notificationsService,
		activityService:        activityService,
		inAppService:           inAppService,
		slackClientFactory:     slackClientFactory,
		cfg:                    cfg,
		clk:                    clk,
	}
}

// DedupeKey derives the stable queue dedupe key for one notification target.
func DedupeKey(feature models.FeatureKey, orgID models.OrgID, slackUserID, entityID string) string {
	sum := sha256.Sum256([]byte(string(feature) + string(orgID) + slackUserID + entityID))
	return hex.EncodeToString(sum[:])
}

// dispatchState carries the resolved inputs a dispatch accumulates while
// walking the pipeline gates.
type dispatchState struct {
	spec        models.FeatureSpec
	settings    *models.NotificationFeatureSettings
	org         *models.Organization
	slackUserID string
	metrics     *models.UserMetrics
	priority    models.Priority
	timezone    string
	now         time.Time
}

// Dispatch runs the full delivery pipeline for one notification and reports
// the outcome. Policy denials and optimal-time deferrals are not errors:
// they come back as Skipped results, with the denied candidate parked in the
// notification queue for later re-evaluation.
func (u *DispatchUseCase) Dispatch(ctx context.Context, req Request) (models.DispatchResult, error) {
	log.Printf("📋 Starting %s dispatch for user %s in organization %s", req.Feature, req.UserID, req.OrgID)

	spec, ok := models.FeatureRegistry[req.Feature]
	if !ok {
		return models.DispatchResult{}, fmt.Errorf("unknown feature: %s", req.Feature)
	}
	if req.BuildContext == nil {
		return models.DispatchResult{}, fmt.Errorf("dispatch request has no context builder")
	}

	// 1. Feature settings gate. No settings row means the org never enabled
	// the feature.
	maybeSettings, err := u.featureSettingsService.GetFeatureSettings(ctx, req.OrgID, req.Feature)
	if err != nil {
		return models.DispatchResult{}, fmt.Errorf("failed to get feature settings: %w", err)
	}
	settings, ok := maybeSettings.Get()
	if !ok || !settings.Enabled {
		log.Printf("📋 Skipping %s for user %s - feature disabled", req.Feature, req.UserID)
		return models.Skipped(models.SkipReasonFeatureDisabled), nil
	}
	if !settings.CategoryEnabled(spec.Category) {
		log.Printf("📋 Skipping %s for user %s - category %s disabled", req.Feature, req.UserID, spec.Category)
		return models.Skipped(models.SkipReasonCategoryDisabled), nil
	}

	// 2. Workspace and recipient mapping.
	maybeOrg, err := u.organizationsService.GetOrganizationByID(ctx, req.OrgID)
	if err != nil {
		return models.DispatchResult{}, fmt.Errorf("failed to get organization: %w", err)
	}
	org, ok := maybeOrg.Get()
	if !ok || !org.HasConnectedWorkspace() {
		log.Printf("📋 Skipping %s for organization %s - no connected workspace", req.Feature, req.OrgID)
		return models.Skipped(models.SkipReasonNoMapping), nil
	}

	maybeRecipient, err := u.recipientsService.GetRecipientByUserID(ctx, req.OrgID, req.UserID)
	if err != nil {
		return models.DispatchResult{}, fmt.Errorf("failed to get recipient: %w", err)
	}
	recipient, ok := maybeRecipient.Get()
	if !ok || recipient.SlackUserID == nil || *recipient.SlackUserID == "" {
		log.Printf("📋 Skipping %s for user %s - no Slack mapping", req.Feature, req.UserID)
		return models.Skipped(models.SkipReasonNoMapping), nil
	}
	if settings.DeliveryMethod == models.DeliveryMethodChannel &&
		(settings.ChannelID == nil || *settings.ChannelID == "") {
		log.Printf("📋 Skipping %s for organization %s - channel delivery without a channel", req.Feature, req.OrgID)
		return models.Skipped(models.SkipReasonNoMapping), nil
	}

	// 3. Engagement state. Needed by the dedupe window and every gate below.
	metrics, err := u.loadMetrics(ctx, req.OrgID, req.UserID)
	if err != nil {
		return models.DispatchResult{}, err
	}

	priority := req.Priority
	if priority == "" {
		priority = spec.DefaultPriority
	}
	priority = engagement.DowngradePriority(priority, metrics.FatigueLevel)

	st := &dispatchState{
		spec:        spec,
		settings:    settings,
		org:         org,
		slackUserID: *recipient.SlackUserID,
		metrics:     metrics,
		priority:    priority,
		timezone:    u.timezoneFor(ctx, req, settings),
		now:         u.clk.Now(),
	}

	// 4. Dedupe against the sent log.
	window := u.dedupeWindow(spec, priority, metrics)
	if !req.Manual {
		existing, err := u.notificationsService.FindRecentSent(
			ctx, req.OrgID, req.Feature, st.slackUserID, req.EntityID, window)
		if err != nil {
			return models.DispatchResult{}, fmt.Errorf("failed to check dedupe: %w", err)
		}
		if existing.IsPresent() {
			log.Printf("📋 Skipping %s for user %s - already sent within window", req.Feature, req.UserID)
			return models.Skipped(models.SkipReasonDeduped), nil
		}
	}

	// 5. Policy gates.
	in, err := u.deliveryInput(ctx, req, st)
	if err != nil {
		return models.DispatchResult{}, err
	}
	decision := engagement.EvaluateDelivery(u.cfg, in)
	if !decision.Allowed {
		return u.denyAndQueue(ctx, req, st, decision)
	}

	// 6. Optimal-time deferral. Urgent sends and drainer re-entries go now.
	if !req.NoDefer && priority != models.PriorityUrgent {
		opt := engagement.OptimalSendTime(u.cfg, in)
		if !opt.Immediate && opt.SendAt.Sub(st.now) > deferThreshold {
			return u.deferDispatch(ctx, req, st, opt.SendAt)
		}
	}

	// 7. Build content.
	model, err := req.BuildContext(ctx)
	if err != nil {
		return models.DispatchResult{}, fmt.Errorf("failed to build message context: %w", err)
	}
	if model == nil {
		log.Printf("📋 Skipping %s for user %s - nothing to say", req.Feature, req.UserID)
		return models.Skipped(models.SkipReasonNoContent), nil
	}

	return u.deliver(ctx, req, st, model)
}

// deliver renders the model and executes the delivery plus the post-delivery
// bookkeeping: sent log, in-app mirror, engagement log, feedback counter.
func (u *DispatchUseCase) deliver(
	ctx context.Context,
	req Request,
	st *dispatchState,
	model *models.MessageModel,
) (models.DispatchResult, error) {
	msg, err := slackblocks.Render(*model)
	if err != nil {
		return models.DispatchResult{}, fmt.Errorf("failed to render message: %w", err)
	}

	slackClient := u.slackClientFactory(*st.org.SlackBotToken)

	postCtx, cancel := context.WithTimeout(ctx, slackTimeout)
	defer cancel()

	channelID, err := u.resolveChannel(postCtx, slackClient, st)
	if err != nil {
		log.Printf("❌ Failed to resolve delivery channel for user %s: %v", req.UserID, err)
		return models.Failed(err.Error(), isRetryableSlackError(err)), nil
	}

	resp, err := slackClient.PostMessage(postCtx, channelID, msg)
	if err != nil {
		log.Printf("❌ Failed to deliver %s to user %s: %v", req.Feature, req.UserID, err)
		return models.Failed(err.Error(), isRetryableSlackError(err)), nil
	}

	result := models.Delivered(resp.Timestamp, resp.Channel)

	// Slack has acknowledged: the sent record must be written even if the
	// caller's context has since been cancelled.
	recordCtx := context.WithoutCancel(ctx)
	record := &models.SentRecord{
		ID:           core.NewID("sent"),
		Feature:      req.Feature,
		OrgID:        req.OrgID,
		SlackUserID:  st.slackUserID,
		EntityID:     req.EntityID,
		WindowBucket: windowBucket(st.now, u.dedupeWindow(st.spec, st.priority, st.metrics)),
		SentAt:       st.now,
		SlackTS:      resp.Timestamp,
		ChannelID:    resp.Channel,
	}
	if err := u.recordSentWithRetry(recordCtx, record); err != nil {
		if errors.Is(err, db.ErrDuplicateSentRecord) {
			log.Printf("⚠️ Concurrent dispatch already recorded %s for user %s", req.Feature, req.UserID)
			return models.Skipped(models.SkipReasonDeduped), nil
		}
		opsalert.Alert(req.OrgID, fmt.Sprintf(
			"Delivered %s notification to user %s (ts %s) but the sent record could not be written: %v",
			req.Feature, req.UserID, resp.Timestamp, err))
		log.Printf("❌ Sent %s to user %s but failed to record it: %v", req.Feature, req.UserID, err)
		result.Unrecorded = true
	}

	u.logEngagement(recordCtx, req, st)
	u.mirrorToInApp(recordCtx, req, model)

	if err := u.userMetricsService.IncrementNotificationsSinceFeedback(recordCtx, req.OrgID, req.UserID); err != nil {
		log.Printf("⚠️ Failed to bump feedback counter for user %s: %v", req.UserID, err)
	}

	log.Printf("📋 Completed successfully - delivered %s to user %s in channel %s", req.Feature, req.UserID, resp.Channel)
	return result, nil
}

// loadMetrics returns the user's engagement state, computing it on demand
// for users the daily refresh has not seen yet.
func (u *DispatchUseCase) loadMetrics(
	ctx context.Context,
	orgID models.OrgID,
	userID string,
) (*models.UserMetrics, error) {
	maybeMetrics, err := u.userMetricsService.GetUserMetrics(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user metrics: %w", err)
	}
	if metrics, ok := maybeMetrics.Get(); ok {
		return metrics, nil
	}

	metrics, err := u.userMetricsService.RefreshUserMetrics(ctx, orgID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute user metrics: %w", err)
	}
	return metrics, nil
}

// timezoneFor prefers the user's own timezone, then the org schedule
// timezone, then UTC.
func (u *DispatchUseCase) timezoneFor(
	ctx context.Context,
	req Request,
	settings *models.NotificationFeatureSettings,
) string {
	maybeUser, err := u.usersService.GetUserByID(ctx, req.OrgID, req.UserID)
	if err == nil {
		if user, ok := maybeUser.Get(); ok && user.Timezone != "" {
			return user.Timezone
		}
	}
	if settings.ScheduleTimezone != "" {
		return settings.ScheduleTimezone
	}
	return "UTC"
}

// dedupeWindow resolves the feature's dedupe window: registry override first,
// otherwise the effective cooldown. Zero means forever.
func (u *DispatchUseCase) dedupeWindow(
	spec models.FeatureSpec,
	priority models.Priority,
	metrics *models.UserMetrics,
) time.Duration {
	if spec.DedupeForever {
		return 0
	}
	if spec.DedupeWindow > 0 {
		return spec.DedupeWindow
	}
	return engagement.EffectiveCooldown(u.cfg, priority, metrics.FatigueLevel, metrics.Segment)
}

func windowBucket(now time.Time, window time.Duration) string {
	if window <= 0 {
		return "all"
	}
	return now.UTC().Truncate(window).Format(time.RFC3339)
}

func (u *DispatchUseCase) deliveryInput(
	ctx context.Context,
	req Request,
	st *dispatchState,
) (engagement.DeliveryInput, error) {
	loc := clock.LoadLocation(st.timezone)
	counts, err := u.notificationsService.CountSentSince(
		ctx, req.OrgID, st.slackUserID,
		clock.StartOfHour(st.now.In(loc)),
		clock.StartOfDay(st.now, st.timezone),
	)
	if err != nil {
		return engagement.DeliveryInput{}, fmt.Errorf("failed to count recent sends: %w", err)
	}

	pending, err := u.notificationsService.CountPendingForUser(ctx, req.OrgID, req.UserID)
	if err != nil {
		return engagement.DeliveryInput{}, fmt.Errorf("failed to count pending notifications: %w", err)
	}

	return engagement.DeliveryInput{
		Now:           st.now,
		Timezone:      st.timezone,
		Priority:      st.priority,
		Metrics:       st.metrics,
		CountThisHour: counts.HourCount,
		CountToday:    counts.DayCount,
		LastSentAt:    counts.LastSentAt,
		PendingCount:  pending,
	}, nil
}

// queuedPayload is what a parked notification carries through the queue: the
// fully built message model, frozen at decision time.
type queuedPayload struct {
	Model    *models.MessageModel `json:"model"`
	EntityID string               `json:"entity_id,omitempty"`
	Manual   bool                 `json:"manual,omitempty"`
}

// denyAndQueue reports a policy denial and parks the candidate for
// re-evaluation at the earliest instant it could pass. Re-entered queue rows
// are rescheduled by the drainer instead.
func (u *DispatchUseCase) denyAndQueue(
	ctx context.Context,
	req Request,
	st *dispatchState,
	decision engagement.DeliveryDecision,
) (models.DispatchResult, error) {
	result := models.Skipped(decision.Reason)
	if decision.NextAllowedAt != nil {
		next := decision.NextAllowedAt.UTC().Format(time.RFC3339)
		result.NextAllowedAt = &next
	}
	log.Printf("📋 Skipping %s for user %s - policy denied (%s)", req.Feature, req.UserID, decision.Reason)

	if req.queuedID != "" || decision.NextAllowedAt == nil {
		return result, nil
	}

	if err := u.parkNotification(ctx, req, st, *decision.NextAllowedAt); err != nil {
		log.Printf("⚠️ Failed to queue denied %s for user %s: %v", req.Feature, req.UserID, err)
	}
	return result, nil
}

// deferDispatch parks the candidate for its optimal send hour.
func (u *DispatchUseCase) deferDispatch(
	ctx context.Context,
	req Request,
	st *dispatchState,
	sendAt time.Time,
) (models.DispatchResult, error) {
	result := models.Skipped(models.SkipReasonDeferred)
	next := sendAt.UTC().Format(time.RFC3339)
	result.NextAllowedAt = &next

	if err := u.parkNotification(ctx, req, st, sendAt); err != nil {
		log.Printf("⚠️ Failed to defer %s for user %s: %v", req.Feature, req.UserID, err)
		return result, nil
	}
	log.Printf("📋 Deferred %s for user %s until %s", req.Feature, req.UserID, sendAt.Format(time.RFC3339))
	return result, nil
}

// parkNotification builds the message now and enqueues it for later delivery.
// Building eagerly freezes the content at decision time so the drainer needs
// no feature-specific context builders.
func (u *DispatchUseCase) parkNotification(
	ctx context.Context,
	req Request,
	st *dispatchState,
	scheduledFor time.Time,
) error {
	model, err := req.BuildContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to build message context: %w", err)
	}
	if model == nil {
		return nil
	}

	payload, err := json.Marshal(queuedPayload{Model: model, EntityID: req.EntityID, Manual: req.Manual})
	if err != nil {
		return fmt.Errorf("failed to encode queued payload: %w", err)
	}

	dedupeKey := DedupeKey(req.Feature, req.OrgID, st.slackUserID, req.EntityID)
	_, err = u.notificationsService.EnqueueNotification(ctx, &models.QueuedNotification{
		ID:           core.NewID("qn"),
		UserID:       req.UserID,
		OrgID:        req.OrgID,
		Feature:      req.Feature,
		Priority:     st.priority,
		Channel:      models.ChannelSlack,
		Payload:      payload,
		ScheduledFor: scheduledFor,
		Status:       models.QueuedStatusScheduled,
		DedupeKey:    &dedupeKey,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

func (u *DispatchUseCase) resolveChannel(
	ctx context.Context,
	slackClient clients.SlackClient,
	st *dispatchState,
) (string, error) {
	if st.settings.DeliveryMethod == models.DeliveryMethodChannel {
		return *st.settings.ChannelID, nil
	}
	channelID, err := slackClient.OpenDMChannel(ctx, st.slackUserID)
	if err != nil {
		return "", fmt.Errorf("failed to open DM channel: %w", err)
	}
	return channelID, nil
}

// recordSentWithRetry writes the sent record with bounded backoff (1s, 2s,
// 4s). Duplicate-key errors are final and returned immediately.
func (u *DispatchUseCase) recordSentWithRetry(ctx context.Context, record *models.SentRecord) error {
	var err error
	for attempt := 0; attempt < recordSentMaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		err = u.notificationsService.RecordSent(ctx, record)
		if err == nil || errors.Is(err, db.ErrDuplicateSentRecord) {
			return err
		}
		log.Printf("⚠️ Attempt %d to record sent notification failed: %v", attempt+1, err)
	}
	return err
}

// logEngagement appends the delivered interaction row that closes the fatigue
// loop. Failure is logged, not propagated.
func (u *DispatchUseCase) logEngagement(ctx context.Context, req Request, st *dispatchState) {
	err := u.activityService.RecordDelivered(ctx, &models.NotificationInteraction{
		UserID:      req.UserID,
		OrgID:       req.OrgID,
		Feature:     req.Feature,
		DeliveredAt: st.now.UTC(),
	})
	if err != nil {
		log.Printf("⚠️ Failed to log delivered interaction for user %s: %v", req.UserID, err)
	}
}

// mirrorToInApp writes the best-effort in-app copy of a delivered message.
func (u *DispatchUseCase) mirrorToInApp(ctx context.Context, req Request, model *models.MessageModel) {
	var metadata json.RawMessage
	if len(model.Metadata) > 0 {
		if encoded, err := json.Marshal(model.Metadata); err == nil {
			metadata = encoded
		}
	}

	err := u.inAppService.CreateInAppNotification(ctx, &models.InAppNotification{
		UserID:    req.UserID,
		OrgID:     req.OrgID,
		Category:  model.Category,
		Type:      model.Type,
		Title:     model.Title,
		Message:   model.Body,
		ActionURL: model.ActionURL,
		Metadata:  metadata,
	})
	if err != nil {
		log.Printf("⚠️ Failed to mirror %s to in-app inbox for user %s: %v", req.Feature, req.UserID, err)
	}
}

// isRetryableSlackError separates transient delivery failures (rate limits,
// network, 5xx) from permanent ones (bad channel, invalid auth).
func isRetryableSlackError(err error) bool {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "internal_error") ||
		strings.Contains(msg, "service_unavailable") ||
		strings.Contains(msg, "fatal_error")
}
