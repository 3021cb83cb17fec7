package featuresettings

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"use60backend/db"
	"use60backend/models"
)

type FeatureSettingsService struct {
	settingsRepo *db.PostgresFeatureSettingsRepository
}

func NewFeatureSettingsService(repo *db.PostgresFeatureSettingsRepository) *FeatureSettingsService {
	return &FeatureSettingsService{settingsRepo: repo}
}

func (s *FeatureSettingsService) GetFeatureSettings(
	ctx context.Context,
	organizationID models.OrgID,
	feature models.FeatureKey,
) (mo.Option[*models.NotificationFeatureSettings], error) {
	if _, known := models.FeatureRegistry[feature]; !known {
		return mo.None[*models.NotificationFeatureSettings](), fmt.Errorf("unknown feature: %s", feature)
	}

	settings, err := s.settingsRepo.GetFeatureSettings(ctx, organizationID, feature)
	if err != nil {
		return mo.None[*models.NotificationFeatureSettings](), fmt.Errorf("failed to get feature settings: %w", err)
	}
	return settings, nil
}

func (s *FeatureSettingsService) UpsertFeatureSettings(
	ctx context.Context,
	settings *models.NotificationFeatureSettings,
) error {
	log.Printf("📋 Starting to upsert settings for feature %s in org: %s", settings.Feature, settings.OrgID)

	if _, known := models.FeatureRegistry[settings.Feature]; !known {
		return fmt.Errorf("unknown feature: %s", settings.Feature)
	}
	if settings.DeliveryMethod != models.DeliveryMethodDM && settings.DeliveryMethod != models.DeliveryMethodChannel {
		return fmt.Errorf("invalid delivery method: %s", settings.DeliveryMethod)
	}
	if settings.DeliveryMethod == models.DeliveryMethodChannel &&
		(settings.ChannelID == nil || *settings.ChannelID == "") {
		return fmt.Errorf("channel delivery requires a channel ID")
	}

	if err := s.settingsRepo.UpsertFeatureSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to upsert feature settings: %w", err)
	}

	log.Printf("📋 Completed successfully - settings saved for feature: %s", settings.Feature)
	return nil
}

func (s *FeatureSettingsService) ListOrgsWithFeatureEnabled(
	ctx context.Context,
	feature models.FeatureKey,
) ([]models.OrgID, error) {
	orgIDs, err := s.settingsRepo.ListOrgsWithFeatureEnabled(ctx, feature)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs with feature enabled: %w", err)
	}
	return orgIDs, nil
}
