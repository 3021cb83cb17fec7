package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"

	"use60backend/clients"
)

// SlackClient implements the clients.SlackClient interface using the slack-go/slack SDK
type SlackClient struct {
	*slack.Client
}

// NewSlackClient creates a new Slack client with the provided auth token
func NewSlackClient(authToken string) clients.SlackClient {
	return &SlackClient{
		Client: slack.New(authToken),
	}
}

// NewSlackOAuthClient creates a new Slack client for OAuth operations only
// This can be used when you don't have an auth token yet
func NewSlackOAuthClient() clients.SlackOAuthClient {
	return &SlackClient{
		Client: slack.New(""), // Empty token for OAuth-only operations
	}
}

// GetOAuthV2Response exchanges an OAuth authorization code for access tokens
func (c *SlackClient) GetOAuthV2Response(
	httpClient *http.Client,
	clientID, clientSecret, code, redirectURL string,
) (*clients.OAuthV2Response, error) {
	slackResponse, err := slack.GetOAuthV2Response(httpClient, clientID, clientSecret, code, redirectURL)
	if err != nil {
		return nil, err
	}

	// Map Slack SDK response to our custom response struct
	return &clients.OAuthV2Response{
		TeamID:      slackResponse.Team.ID,
		TeamName:    slackResponse.Team.Name,
		AccessToken: slackResponse.AccessToken,
	}, nil
}

// AuthTest verifies the bot token and returns information about the bot
func (c *SlackClient) AuthTest() (*clients.SlackAuthTestResponse, error) {
	response, err := c.Client.AuthTest()
	if err != nil {
		return nil, err
	}

	return &clients.SlackAuthTestResponse{
		UserID: response.UserID,
		TeamID: response.TeamID,
	}, nil
}

// OpenDMChannel opens (or resumes) a direct message conversation with a user
// and returns the channel ID to post into.
func (c *SlackClient) OpenDMChannel(ctx context.Context, slackUserID string) (string, error) {
	channel, _, _, err := c.Client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{slackUserID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to open DM channel with user %s: %w", slackUserID, err)
	}
	return channel.ID, nil
}

// PostMessage sends a rendered message to a Slack channel. Block Kit blocks
// take precedence; the text is always attached as the notification fallback.
func (c *SlackClient) PostMessage(
	ctx context.Context,
	channelID string,
	msg clients.SlackMessage,
) (*clients.SlackPostMessageResponse, error) {
	var sdkOptions []slack.MsgOption
	if msg.Text != "" {
		sdkOptions = append(sdkOptions, slack.MsgOptionText(msg.Text, false))
	}
	if len(msg.BlocksJSON) > 0 {
		var blocks slack.Blocks
		if err := json.Unmarshal(msg.BlocksJSON, &blocks); err != nil {
			return nil, fmt.Errorf("failed to decode message blocks: %w", err)
		}
		sdkOptions = append(sdkOptions, slack.MsgOptionBlocks(blocks.BlockSet...))
	}

	channel, timestamp, err := c.Client.PostMessageContext(ctx, channelID, sdkOptions...)
	if err != nil {
		return nil, err
	}

	return &clients.SlackPostMessageResponse{
		Channel:   channel,
		Timestamp: timestamp,
	}, nil
}
