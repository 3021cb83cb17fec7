package usermetrics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/samber/mo"

	"use60backend/core"
	"use60backend/db"
	"use60backend/engagement"
	"use60backend/models"
	"use60backend/services"
	"use60backend/utils"
)

const (
	metricsCacheSize = 4096
	metricsCacheTTL  = time.Hour

	// activityLookbackDays bounds the event window fed into the scorers.
	activityLookbackDays = 30
	// interactionsLimit is how much interaction history the scorers see.
	interactionsLimit = 100
)

type UserMetricsService struct {
	metricsRepo      *db.PostgresUserMetricsRepository
	activityRepo     *db.PostgresActivityRepository
	interactionsRepo *db.PostgresInteractionsRepository
	usersService     services.UsersService
	cfg              engagement.Config
	now              func() time.Time

	// cache keeps the dispatcher's hot path off the database. Refresh
	// invalidates the entry so a new segment is visible immediately.
	cache *expirable.LRU[string, *models.UserMetrics]
}

func NewUserMetricsService(
	metricsRepo *db.PostgresUserMetricsRepository,
	activityRepo *db.PostgresActivityRepository,
	interactionsRepo *db.PostgresInteractionsRepository,
	usersService services.UsersService,
	cfg engagement.Config,
	now func() time.Time,
) *UserMetricsService {
	if now == nil {
		now = time.Now
	}
	return &UserMetricsService{
		metricsRepo:      metricsRepo,
		activityRepo:     activityRepo,
		interactionsRepo: interactionsRepo,
		usersService:     usersService,
		cfg:              cfg,
		now:              now,
		cache:            expirable.NewLRU[string, *models.UserMetrics](metricsCacheSize, nil, metricsCacheTTL),
	}
}

func cacheKey(organizationID models.OrgID, userID string) string {
	return string(organizationID) + "/" + userID
}

func (s *UserMetricsService) GetUserMetrics(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (mo.Option[*models.UserMetrics], error) {
	if userID == "" {
		return mo.None[*models.UserMetrics](), fmt.Errorf("user ID cannot be empty")
	}

	if cached, ok := s.cache.Get(cacheKey(organizationID, userID)); ok {
		return mo.Some(cached), nil
	}

	metrics, err := s.metricsRepo.GetUserMetrics(ctx, organizationID, userID)
	if err != nil {
		return mo.None[*models.UserMetrics](), fmt.Errorf("failed to get user metrics: %w", err)
	}
	if m, ok := metrics.Get(); ok {
		s.cache.Add(cacheKey(organizationID, userID), m)
	}
	return metrics, nil
}

// RefreshUserMetrics recomputes the full derived state for one user from the
// activity and interaction history, enforcing segment transition legality
// against the previously stored segment.
func (s *UserMetricsService) RefreshUserMetrics(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) (*models.UserMetrics, error) {
	log.Printf("📋 Starting to refresh user metrics for user: %s", userID)

	maybeUser, err := s.usersService.GetUserByID(ctx, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user, ok := maybeUser.Get()
	if !ok {
		return nil, fmt.Errorf("user not found: %s", userID)
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -activityLookbackDays)

	events, err := s.activityRepo.ListActivityEventsSince(ctx, organizationID, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity events: %w", err)
	}
	interactions, err := s.interactionsRepo.ListRecentInteractions(ctx, organizationID, userID, interactionsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}

	eventVals := make([]models.ActivityEvent, len(events))
	for i, e := range events {
		eventVals[i] = *e
	}
	interactionVals := make([]models.NotificationInteraction, len(interactions))
	for i, in := range interactions {
		interactionVals[i] = *in
	}

	computed := engagement.ComputeMetrics(user, eventVals, interactionVals, now, s.cfg)

	previous, err := s.metricsRepo.GetUserMetrics(ctx, organizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get previous user metrics: %w", err)
	}

	metrics := &models.UserMetrics{
		ID:                 core.NewID("um"),
		UserID:             userID,
		OrgID:              organizationID,
		Scores:             computed.Scores,
		Segment:            computed.Segment,
		FatigueScore:       computed.FatigueScore,
		FatigueLevel:       computed.FatigueLevel,
		PreferredFrequency: computed.PreferredFrequency,
		TypicalActiveHours: computed.TypicalActiveHours,
		PeakHour:           computed.PeakHour,
		AvgDailySessions:   computed.AvgDailySessions,
	}

	if prev, hasPrev := previous.Get(); hasPrev {
		metrics.ID = prev.ID
		metrics.NotificationsSinceFeedback = prev.NotificationsSinceFeedback
		metrics.LastFeedbackRequestedAt = prev.LastFeedbackRequestedAt

		if !engagement.CanTransition(prev.Segment, computed.Segment) {
			// Illegal jumps indicate a data anomaly; keep the previous
			// segment and surface both values.
			log.Printf("⚠️ Rejecting illegal segment transition for user %s: %s -> %s", userID, prev.Segment, computed.Segment)
			metrics.Segment = prev.Segment
			metrics.PreferredFrequency = engagement.DerivePreferredFrequency(prev.Segment, computed.FatigueLevel)
		}
	}

	lastActivity := utils.LatestTime(user.LastAppActiveAt, user.LastChatActiveAt, user.LastLoginAt)
	for _, e := range events {
		if lastActivity == nil || e.OccurredAt.After(*lastActivity) {
			t := e.OccurredAt
			lastActivity = &t
		}
	}
	metrics.LastActivityAt = lastActivity

	if err := s.metricsRepo.UpsertUserMetrics(ctx, metrics); err != nil {
		return nil, fmt.Errorf("failed to upsert user metrics: %w", err)
	}
	s.cache.Remove(cacheKey(organizationID, userID))

	log.Printf("📋 Completed successfully - user %s is %s (overall %d, fatigue %d)",
		userID, metrics.Segment, metrics.Scores.Overall, metrics.FatigueScore)
	return metrics, nil
}

func (s *UserMetricsService) IncrementNotificationsSinceFeedback(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	if err := s.metricsRepo.IncrementNotificationsSinceFeedback(ctx, organizationID, userID); err != nil {
		return fmt.Errorf("failed to increment notifications since feedback: %w", err)
	}
	s.cache.Remove(cacheKey(organizationID, userID))
	return nil
}

func (s *UserMetricsService) MarkFeedbackRequested(
	ctx context.Context,
	organizationID models.OrgID,
	userID string,
) error {
	if err := s.metricsRepo.MarkFeedbackRequested(ctx, organizationID, userID); err != nil {
		return fmt.Errorf("failed to mark feedback requested: %w", err)
	}
	s.cache.Remove(cacheKey(organizationID, userID))
	return nil
}
