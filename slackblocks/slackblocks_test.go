package slackblocks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"use60backend/models"
)

func TestRender_FullModel(t *testing.T) {
	model := models.MessageModel{
		Feature:  models.FeatureMorningBrief,
		Category: "digest",
		Type:     "morning_brief",
		Title:    "Your morning brief",
		Body:     "**3 meetings** today\nFirst at 9:30",
		Fields: []models.MessageField{
			{Label: "Pipeline", Value: "$420,000"},
			{Label: "At risk", Value: "2 deals"},
		},
		Actions: []models.MessageAction{
			{Label: "Open dashboard", URL: "https://app.use60.com/dashboard", Style: "primary"},
		},
		Footer: "Sent by Use60",
	}

	msg, err := Render(model)
	require.NoError(t, err)

	assert.Equal(t, "Your morning brief: **3 meetings** today", msg.Text)

	var blocks []map[string]any
	require.NoError(t, json.Unmarshal(msg.BlocksJSON, &blocks))
	require.Len(t, blocks, 5)
	assert.Equal(t, "header", blocks[0]["type"])
	assert.Equal(t, "section", blocks[1]["type"])
	assert.Equal(t, "section", blocks[2]["type"])
	assert.Equal(t, "actions", blocks[3]["type"])
	assert.Equal(t, "context", blocks[4]["type"])
}

func TestRender_MarkdownConvertedInBody(t *testing.T) {
	msg, err := Render(models.MessageModel{
		Feature: models.FeatureDealMomentum,
		Title:   "Deal needs attention",
		Body:    "**Acme Corp** has stalled",
	})
	require.NoError(t, err)

	assert.Contains(t, string(msg.BlocksJSON), "*Acme Corp* has stalled")
	assert.NotContains(t, string(msg.BlocksJSON), "**Acme Corp**")
}

func TestRender_ActionURLFallbackButton(t *testing.T) {
	msg, err := Render(models.MessageModel{
		Feature:   models.FeatureMeetingPrep,
		Title:     "Meeting in 30 minutes",
		ActionURL: "https://app.use60.com/meetings/m_1",
	})
	require.NoError(t, err)
	assert.Contains(t, string(msg.BlocksJSON), "https://app.use60.com/meetings/m_1")
	assert.Contains(t, string(msg.BlocksJSON), `"actions"`)
}

func TestRender_TitleOnly(t *testing.T) {
	msg, err := Render(models.MessageModel{
		Feature: models.FeatureDailyDigest,
		Title:   "Daily digest",
	})
	require.NoError(t, err)
	assert.Equal(t, "Daily digest", msg.Text)
}

func TestRender_MissingTitleRejected(t *testing.T) {
	_, err := Render(models.MessageModel{Feature: models.FeatureDailyDigest})
	require.Error(t, err)
}

func TestRender_ManyFieldsSplitAcrossSections(t *testing.T) {
	fields := make([]models.MessageField, 14)
	for i := range fields {
		fields[i] = models.MessageField{Label: "L", Value: "V"}
	}
	msg, err := Render(models.MessageModel{
		Feature: models.FeatureDailyDigest,
		Title:   "Digest",
		Fields:  fields,
	})
	require.NoError(t, err)

	var blocks []map[string]any
	require.NoError(t, json.Unmarshal(msg.BlocksJSON, &blocks))
	// header + two field sections (10 + 4)
	require.Len(t, blocks, 3)
}
