package slack

import (
	"context"
	"net/http"

	"github.com/stretchr/testify/mock"

	"use60backend/clients"
)

// MockSlackClient is a mock implementation of the clients.SlackClient interface
type MockSlackClient struct {
	mock.Mock
}

func (m *MockSlackClient) GetOAuthV2Response(
	httpClient *http.Client,
	clientID, clientSecret, code, redirectURL string,
) (*clients.OAuthV2Response, error) {
	args := m.Called(httpClient, clientID, clientSecret, code, redirectURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.OAuthV2Response), args.Error(1)
}

func (m *MockSlackClient) AuthTest() (*clients.SlackAuthTestResponse, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.SlackAuthTestResponse), args.Error(1)
}

func (m *MockSlackClient) OpenDMChannel(ctx context.Context, slackUserID string) (string, error) {
	args := m.Called(ctx, slackUserID)
	return args.String(0), args.Error(1)
}

func (m *MockSlackClient) PostMessage(
	ctx context.Context,
	channelID string,
	msg clients.SlackMessage,
) (*clients.SlackPostMessageResponse, error) {
	args := m.Called(ctx, channelID, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.SlackPostMessageResponse), args.Error(1)
}
