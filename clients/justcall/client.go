package justcall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"use60backend/clients"
	"use60backend/models"
)

const defaultBaseURL = "https://api.justcall.io/v2.1"

// JustCallClient implements the clients.TranscriptClient interface against
// the JustCall REST API.
type JustCallClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiSecret  string
}

// NewJustCallClient creates a new transcript client. apiKey and apiSecret are
// the JustCall API credential pair.
func NewJustCallClient(apiKey, apiSecret string) clients.TranscriptClient {
	return &JustCallClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
	}
}

// transcriptResponse is the subset of the JustCall transcription payload we
// consume.
type transcriptResponse struct {
	Data struct {
		CallID     json.Number `json:"call_id"`
		Transcript []struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		} `json:"transcript"`
	} `json:"data"`
}

// FetchTranscript pulls the transcription for one call. A 404 or an empty
// transcript yields an error so the retry queue keeps the item.
func (c *JustCallClient) FetchTranscript(
	ctx context.Context,
	externalCallID string,
) (*models.FetchedTranscript, error) {
	url := fmt.Sprintf("%s/calls/%s/transcription", c.baseURL, externalCallID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey+":"+c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transcript: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &clients.TranscriptFetchStatusError{StatusCode: resp.StatusCode}
	}

	var parsed transcriptResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode transcript response: %w", err)
	}

	var sb strings.Builder
	for _, segment := range parsed.Data.Transcript {
		if segment.Text == "" {
			continue
		}
		if segment.Speaker != "" {
			sb.WriteString(segment.Speaker)
			sb.WriteString(": ")
		}
		sb.WriteString(segment.Text)
		sb.WriteString("\n")
	}

	return &models.FetchedTranscript{
		Text: strings.TrimSpace(sb.String()),
		Raw:  json.RawMessage(body),
	}, nil
}
