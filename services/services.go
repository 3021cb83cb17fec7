package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	BeginTransaction(ctx context.Context) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
}

// OrganizationsService defines the interface for organization-related operations
type OrganizationsService interface {
	GetOrganizationByID(ctx context.Context, id models.OrgID) (mo.Option[*models.Organization], error)
	GetOrganizationBySlackTeamID(ctx context.Context, teamID string) (mo.Option[*models.Organization], error)
	ListOrganizationsWithWorkspace(ctx context.Context) ([]*models.Organization, error)
}

// UsersService defines the interface for user-related operations
type UsersService interface {
	GetUserByID(ctx context.Context, organizationID models.OrgID, id string) (mo.Option[*models.User], error)
	GetUserByEmail(ctx context.Context, organizationID models.OrgID, email string) (mo.Option[*models.User], error)
	ListActiveUsersByOrg(ctx context.Context, organizationID models.OrgID) ([]*models.User, error)
	TouchLastAppActive(ctx context.Context, organizationID models.OrgID, userID string, at time.Time) error
}

// UserMetricsService defines the interface for derived engagement state
type UserMetricsService interface {
	GetUserMetrics(ctx context.Context, organizationID models.OrgID, userID string) (mo.Option[*models.UserMetrics], error)
	RefreshUserMetrics(ctx context.Context, organizationID models.OrgID, userID string) (*models.UserMetrics, error)
	IncrementNotificationsSinceFeedback(ctx context.Context, organizationID models.OrgID, userID string) error
	MarkFeedbackRequested(ctx context.Context, organizationID models.OrgID, userID string) error
}

// NotificationsService defines the interface for the sent log and the
// deferred notification queue
type NotificationsService interface {
	RecordSent(ctx context.Context, record *models.SentRecord) error
	FindRecentSent(
		ctx context.Context,
		organizationID models.OrgID,
		feature models.FeatureKey,
		slackUserID, entityID string,
		window time.Duration,
	) (mo.Option[*models.SentRecord], error)
	CountSentSince(
		ctx context.Context,
		organizationID models.OrgID,
		slackUserID string,
		hourStart, dayStart time.Time,
	) (*db.SentCounts, error)
	EnqueueNotification(ctx context.Context, n *models.QueuedNotification) (*models.QueuedNotification, error)
	LeaseDueBatch(ctx context.Context, now time.Time, limit int) ([]*models.QueuedNotification, error)
	SettleNotification(
		ctx context.Context,
		organizationID models.OrgID,
		id string,
		status models.QueuedNotificationStatus,
		lastError *string,
	) error
	RescheduleNotification(ctx context.Context, organizationID models.OrgID, id string, scheduledFor time.Time) error
	CountPendingForUser(ctx context.Context, organizationID models.OrgID, userID string) (int, error)
	FailExhaustedNotifications(ctx context.Context) (int64, error)
}

// FeatureSettingsService defines the interface for per-org feature configuration
type FeatureSettingsService interface {
	GetFeatureSettings(
		ctx context.Context,
		organizationID models.OrgID,
		feature models.FeatureKey,
	) (mo.Option[*models.NotificationFeatureSettings], error)
	UpsertFeatureSettings(ctx context.Context, settings *models.NotificationFeatureSettings) error
	ListOrgsWithFeatureEnabled(ctx context.Context, feature models.FeatureKey) ([]models.OrgID, error)
}

// RecipientsService defines the interface for chat delivery mappings
type RecipientsService interface {
	GetRecipientByUserID(ctx context.Context, organizationID models.OrgID, userID string) (mo.Option[*models.Recipient], error)
	GetRecipientBySlackUserID(
		ctx context.Context,
		organizationID models.OrgID,
		slackUserID string,
	) (mo.Option[*models.Recipient], error)
	ListRecipientsByOrg(ctx context.Context, organizationID models.OrgID) ([]*models.Recipient, error)
	UpsertRecipient(ctx context.Context, recipient *models.Recipient) error
}

// CRMViewService defines the read-only interface over CRM data
type CRMViewService interface {
	GetDealByID(ctx context.Context, organizationID models.OrgID, id string) (mo.Option[*models.Deal], error)
	ListOpenDeals(ctx context.Context, organizationID models.OrgID) ([]*models.Deal, error)
	ListOpenDealsByOwner(ctx context.Context, organizationID models.OrgID, ownerUserID string) ([]*models.Deal, error)
	ListDealsNeedingNudge(ctx context.Context, organizationID models.OrgID) ([]*models.Deal, error)
	GetMeetingByID(ctx context.Context, organizationID models.OrgID, id string) (mo.Option[*models.Meeting], error)
	ListMeetingsStartingBetween(
		ctx context.Context,
		organizationID models.OrgID,
		from, to time.Time,
	) ([]*models.Meeting, error)
	ListMeetingsForUserBetween(
		ctx context.Context,
		organizationID models.OrgID,
		userID string,
		from, to time.Time,
	) ([]*models.Meeting, error)
	GetCompanyByID(ctx context.Context, organizationID models.OrgID, id string) (mo.Option[*models.Company], error)
	GetReengagementContent(ctx context.Context, organizationID models.OrgID, userID string) (models.ReengagementContent, error)
}

// InAppNotificationsService defines the interface for the in-app inbox mirror
type InAppNotificationsService interface {
	CreateInAppNotification(ctx context.Context, n *models.InAppNotification) error
	ListUnreadForUser(
		ctx context.Context,
		organizationID models.OrgID,
		userID string,
		limit int,
	) ([]*models.InAppNotification, error)
	MarkRead(ctx context.Context, organizationID models.OrgID, userID string, id string) error
}

// ActivityService defines the interface for activity and interaction records
type ActivityService interface {
	RecordActivityEvent(ctx context.Context, event *models.ActivityEvent) error
	ListActivityEventsSince(
		ctx context.Context,
		organizationID models.OrgID,
		userID string,
		since time.Time,
	) ([]*models.ActivityEvent, error)
	RecordCommunicationEvent(ctx context.Context, event *models.CommunicationEvent) error
	RecordOutboundActivity(ctx context.Context, activity *models.OutboundActivity) error
	RecordIntegrationHeartbeat(ctx context.Context, heartbeat *models.IntegrationHeartbeat) error
	RecordDelivered(ctx context.Context, interaction *models.NotificationInteraction) error
	RecordInteraction(ctx context.Context, event *models.InteractionEvent) error
	ListRecentInteractions(
		ctx context.Context,
		organizationID models.OrgID,
		userID string,
		limit int,
	) ([]*models.NotificationInteraction, error)
}

// TranscriptsService defines the interface for the call store and transcript
// retry queue
type TranscriptsService interface {
	UpsertCallFromEvent(
		ctx context.Context,
		organizationID models.OrgID,
		event *models.CanonicalCallEvent,
	) (*models.Call, bool, error)
	GetCallByID(ctx context.Context, organizationID models.OrgID, id string) (mo.Option[*models.Call], error)
	EnqueueTranscriptFetch(ctx context.Context, organizationID models.OrgID, callID string, priority models.Priority) error
	LeaseTranscriptBatch(ctx context.Context, now time.Time, limit int) ([]*models.TranscriptQueueItem, error)
	StoreTranscript(
		ctx context.Context,
		organizationID models.OrgID,
		callID string,
		transcriptText string,
		transcriptJSON json.RawMessage,
	) error
	RecordFetchFailure(ctx context.Context, organizationID models.OrgID, callID string, attemptErr string) error
	AbandonTranscriptFetch(ctx context.Context, organizationID models.OrgID, callID string) error
}

// ReengagementService defines the interface for re-engagement attempt state
type ReengagementService interface {
	GetAttemptState(
		ctx context.Context,
		organizationID models.OrgID,
		userID string,
		segment models.Segment,
	) (attempts int, lastAttemptAt *time.Time, err error)
	RecordAttempt(ctx context.Context, organizationID models.OrgID, userID string, segment models.Segment) error
	ResetAttempts(ctx context.Context, organizationID models.OrgID, userID string) error
}
