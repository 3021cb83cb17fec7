package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type SlackConfig struct {
	ClientID        string
	ClientSecret    string
	DefaultBotToken string
	SigningSecret   string
}

// IsConfigured returns true if all required Slack configuration is present
func (c SlackConfig) IsConfigured() bool {
	return c.ClientID != "" &&
		c.ClientSecret != "" &&
		c.SigningSecret != ""
	// Note: DefaultBotToken is optional - per-org tokens are preferred
}

type AnthropicConfig struct {
	APIKey string
}

// IsConfigured returns true if the insight provider can be called
func (c AnthropicConfig) IsConfigured() bool {
	return c.APIKey != ""
}

type TelephonyConfig struct {
	JustCallSecret string
	ProxySecret    string
	WebhookURL     string
	APIKey         string
	APISecret      string
}

// CanFetchTranscripts returns true if the provider API credentials are present
func (c TelephonyConfig) CanFetchTranscripts() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// IsConfigured returns true if at least one webhook auth mode can verify
func (c TelephonyConfig) IsConfigured() bool {
	return c.JustCallSecret != "" || c.ProxySecret != ""
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL    string
	DatabaseSchema string
	CronSecret     string
	Port           string // Optional with default "8080"

	CORSAllowedOrigins string // Optional with default "*"
	Environment        string
	SiteURL            string // Base URL for action links in messages
	AlertWebhookURL    string
	ServerLogsURL      string // Link embedded in operational alerts
	UseStrictConfig    bool   // If true, error when any integration is not fully configured

	// Integration configurations (grouped)
	SlackConfig     SlackConfig
	AnthropicConfig AnthropicConfig
	TelephonyConfig TelephonyConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	// Core required configuration
	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	cronSecret, err := getEnvRequired("CRON_SECRET")
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		// Core configuration
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		CronSecret:         cronSecret,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		SiteURL:            getEnvWithDefault("SITE_URL", "https://app.use60.com"),
		AlertWebhookURL:    getEnvWithDefault("SLACK_ALERT_WEBHOOK_URL", ""),
		ServerLogsURL:      getEnvWithDefault("SERVER_LOGS_URL", ""),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "false") == "true",

		// Slack configuration (optional)
		SlackConfig: SlackConfig{
			ClientID:        os.Getenv("SLACK_CLIENT_ID"),
			ClientSecret:    os.Getenv("SLACK_CLIENT_SECRET"),
			DefaultBotToken: os.Getenv("SLACK_BOT_TOKEN"),
			SigningSecret:   os.Getenv("SLACK_SIGNING_SECRET"),
		},

		// Anthropic configuration (optional)
		AnthropicConfig: AnthropicConfig{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		},

		// Telephony webhook configuration (optional)
		TelephonyConfig: TelephonyConfig{
			JustCallSecret: os.Getenv("JUSTCALL_WEBHOOK_SECRET"),
			ProxySecret:    os.Getenv("USE60_WEBHOOK_PROXY_SECRET"),
			WebhookURL:     os.Getenv("USE60_WEBHOOK_URL"),
			APIKey:         os.Getenv("JUSTCALL_API_KEY"),
			APISecret:      os.Getenv("JUSTCALL_API_SECRET"),
		},
	}

	// Log which integrations are configured
	if config.SlackConfig.IsConfigured() {
		log.Printf("✅ Slack integration configured")
	} else {
		log.Printf("⚠️ Slack integration not configured - Slack delivery will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("slack integration is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	if config.AnthropicConfig.IsConfigured() {
		log.Printf("✅ Anthropic insight provider configured")
	} else {
		log.Printf("⚠️ Anthropic insight provider not configured - heuristic summaries will be used")
	}

	if config.TelephonyConfig.IsConfigured() {
		log.Printf("✅ Telephony webhook verification configured")
	} else {
		log.Printf("⚠️ Telephony webhook secrets not configured - call ingest will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("telephony webhook is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	return config, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
