package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"use60backend/models"
)

// OAuthV2Response represents our custom OAuth response with only needed fields
type OAuthV2Response struct {
	TeamID      string
	TeamName    string
	AccessToken string
}

// SlackOAuthClient defines the interface for Slack OAuth operations
type SlackOAuthClient interface {
	GetOAuthV2Response(httpClient *http.Client, clientID, clientSecret, code, redirectURL string) (*OAuthV2Response, error)
}

// SlackAuthTestResponse carries the bot identity returned by auth.test
type SlackAuthTestResponse struct {
	UserID string
	TeamID string
}

// SlackPostMessageResponse carries the delivery coordinates of a posted message
type SlackPostMessageResponse struct {
	Channel   string
	Timestamp string
}

// SlackMessage is a rendered, ready-to-post Slack message. BlocksJSON holds
// Block Kit blocks serialized by the renderer; Text is the fallback line.
type SlackMessage struct {
	Text       string
	BlocksJSON json.RawMessage
}

// SlackClient defines the interface for Slack API operations
type SlackClient interface {
	SlackOAuthClient

	// Bot operations
	AuthTest() (*SlackAuthTestResponse, error)

	// Conversation operations
	OpenDMChannel(ctx context.Context, slackUserID string) (channelID string, err error)

	// Message operations
	PostMessage(ctx context.Context, channelID string, msg SlackMessage) (*SlackPostMessageResponse, error)
}

// InsightClient defines the interface for the transcript insight provider
type InsightClient interface {
	// SummarizeTranscript produces a debrief summary for a finished call.
	SummarizeTranscript(ctx context.Context, req models.InsightRequest) (*models.CallInsights, error)
}

// TranscriptClient defines the interface for fetching call transcripts from
// the telephony provider
type TranscriptClient interface {
	FetchTranscript(ctx context.Context, externalCallID string) (*models.FetchedTranscript, error)
}

// TranscriptFetchStatusError is returned when the provider answers with a
// non-2xx status. The worker folds the status code into the retry record.
type TranscriptFetchStatusError struct {
	StatusCode int
}

func (e *TranscriptFetchStatusError) Error() string {
	return fmt.Sprintf("transcript fetch failed with status %d", e.StatusCode)
}
