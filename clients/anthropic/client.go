package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"use60backend/clients"
	"use60backend/models"
)

const summarySystemPrompt = `You are a sales call analyst. Given a call transcript, respond with a JSON object:
{"summary": "...", "key_points": ["..."], "action_items": ["..."], "sentiment": "positive|neutral|negative"}
Keep the summary under 3 sentences. Respond with JSON only.`

// maxTranscriptChars bounds the prompt size; longer transcripts are truncated
// from the front since openings carry the least signal.
const maxTranscriptChars = 24000

// AnthropicClient implements the clients.InsightClient interface using the
// Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a new insight client with the provided API key
func NewAnthropicClient(apiKey string) clients.InsightClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
	}
}

// SummarizeTranscript asks the model for a structured debrief. Responses that
// fail to parse fall back to the deterministic heuristic so a dispatch never
// fails on provider noise.
func (c *AnthropicClient) SummarizeTranscript(
	ctx context.Context,
	req models.InsightRequest,
) (*models.CallInsights, error) {
	transcript := req.TranscriptText
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[len(transcript)-maxTranscriptChars:]
	}

	prompt := fmt.Sprintf("Call: %s (%s, %d seconds)\n\nTranscript:\n%s",
		req.Title, req.Direction, req.DurationSeconds, transcript)

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaudeSonnet4_0,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: summarySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize transcript: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		sb.WriteString(block.Text)
	}

	insights, err := parseInsightsResponse(sb.String())
	if err != nil {
		log.Printf("⚠️ Failed to parse insight response, using heuristic fallback: %v", err)
		return HeuristicInsights(req), nil
	}
	insights.Source = "anthropic"
	return insights, nil
}

// parseInsightsResponse decodes the model's JSON reply, tolerating markdown
// code fences around the object.
func parseInsightsResponse(raw string) (*models.CallInsights, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	var insights models.CallInsights
	if err := json.Unmarshal([]byte(trimmed), &insights); err != nil {
		return nil, fmt.Errorf("invalid insight JSON: %w", err)
	}
	if insights.Summary == "" {
		return nil, fmt.Errorf("insight response missing summary")
	}
	return &insights, nil
}

// HeuristicInsights is the deterministic fallback used when no model is
// configured or the model reply is unusable.
func HeuristicInsights(req models.InsightRequest) *models.CallInsights {
	minutes := req.DurationSeconds / 60
	summary := fmt.Sprintf("%s call", req.Direction)
	if req.Title != "" {
		summary = req.Title
	}
	if minutes > 0 {
		summary = fmt.Sprintf("%s (%d min)", summary, minutes)
	}

	sentiment := "neutral"
	lowered := strings.ToLower(req.TranscriptText)
	positives := countAny(lowered, []string{"great", "perfect", "sounds good", "let's do it", "thank"})
	negatives := countAny(lowered, []string{"not interested", "too expensive", "cancel", "unfortunately"})
	if positives > negatives {
		sentiment = "positive"
	} else if negatives > positives {
		sentiment = "negative"
	}

	return &models.CallInsights{
		Summary:   summary,
		Sentiment: sentiment,
		Source:    "heuristic",
	}
}

func countAny(haystack string, needles []string) int {
	total := 0
	for _, n := range needles {
		total += strings.Count(haystack, n)
	}
	return total
}
