package opsalert

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"use60backend/models"
)

var (
	instance *OpsAlerter
	once     sync.Once
)

// OpsAlerter posts operational alerts to a Slack incoming webhook. It is
// best-effort: a failed alert is logged and dropped, never propagated.
type OpsAlerter struct {
	webhookURL  string
	environment string
	appName     string
	mu          sync.RWMutex
}

// Init initializes the global ops alerter instance
func Init(webhookURL, environment string) {
	once.Do(func() {
		instance = &OpsAlerter{
			webhookURL:  webhookURL,
			environment: environment,
			appName:     "Use60",
		}
	})
}

// Alert sends an operational alert message to Slack
func Alert(orgID models.OrgID, message string) {
	if instance == nil {
		log.Printf("⚠️ Ops alerter not initialized, skipping alert: %s", message)
		return
	}

	instance.send(orgID, message)
}

func (a *OpsAlerter) send(orgID models.OrgID, message string) {
	if a.webhookURL == "" {
		return // Ops alerts disabled
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	// Send alert asynchronously to avoid blocking
	go a.sendSlackAlert(orgID, message)
}

func (a *OpsAlerter) sendSlackAlert(orgID models.OrgID, message string) {
	// Build fields array
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Service:* %s", a.appName)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Environment:* %s", a.environment)},
	}

	// Add OrgID field if provided
	if orgID != "" {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*OrgID:* `%s`", string(orgID)),
		})
	}

	// Add timestamp
	fields = append(fields, map[string]any{
		"type": "mrkdwn",
		"text": fmt.Sprintf("*Timestamp:* %s", time.Now().Format("2006-01-02 15:04:05 UTC")),
	})

	payload := map[string]any{
		"blocks": []map[string]any{
			{
				"type":   "section",
				"fields": fields,
			},
			{
				"type": "section",
				"text": map[string]any{
					"type": "mrkdwn",
					"text": fmt.Sprintf("🚨 *Alert:*\n%s", message),
				},
			},
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ Failed to marshal ops alert payload: %v", err)
		return
	}

	// Create request with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", a.webhookURL, strings.NewReader(string(payloadBytes)))
	if err != nil {
		log.Printf("❌ Failed to create ops alert request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("❌ Failed to send ops alert: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ Ops alert failed with status: %d", resp.StatusCode)
		return
	}

	log.Printf("🚨 Ops alert sent: %s", message)
}
