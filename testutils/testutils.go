package testutils

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"use60backend/config"
	"use60backend/db"
	"use60backend/models"
)

// LoadTestConfig loads configuration for integration tests from environment variables
func LoadTestConfig() (*config.AppConfig, error) {
	// Try to load environment variables from various possible locations
	_ = godotenv.Load("../.env.test") // From package directories
	_ = godotenv.Load(".env.test")    // From root directory
	_ = godotenv.Load()               // Default .env file

	databaseURL := os.Getenv("DB_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DB_URL is not set")
	}

	databaseSchema := os.Getenv("DB_SCHEMA")
	if databaseSchema == "" {
		return nil, fmt.Errorf("DB_SCHEMA is not set")
	}

	cronSecret := os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		cronSecret = "test-cron-secret"
	}

	return &config.AppConfig{
		DatabaseURL:    databaseURL,
		DatabaseSchema: databaseSchema,
		CronSecret:     cronSecret,
	}, nil
}

// CreateTestRecipient upserts a recipient with unique identifiers to avoid
// constraint violations across test runs.
func CreateTestRecipient(
	t *testing.T,
	recipientsRepo *db.PostgresRecipientsRepository,
	orgID models.OrgID,
) *models.Recipient {
	testUserID := uuid.New().String()
	slackUserID := "U" + uuid.New().String()[:8]
	recipient := &models.Recipient{
		OrgID:       orgID,
		UserID:      testUserID,
		SlackUserID: &slackUserID,
		Email:       fmt.Sprintf("test-%s@example.com", testUserID[:8]),
		Name:        "Test Recipient",
	}

	err := recipientsRepo.UpsertRecipient(context.Background(), recipient)
	require.NoError(t, err, "Failed to create test recipient")
	return recipient
}
