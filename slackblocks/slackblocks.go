package slackblocks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"use60backend/clients"
	"use60backend/models"
	"use60backend/utils"
)

// maxFieldsPerSection is the Block Kit limit on section fields.
const maxFieldsPerSection = 10

// Render converts a channel-neutral message model into a ready-to-post Slack
// message: Block Kit blocks plus the plain-text notification fallback. It is
// a pure function; no Slack API calls happen here.
func Render(model models.MessageModel) (clients.SlackMessage, error) {
	if model.Title == "" {
		return clients.SlackMessage{}, fmt.Errorf("message model has no title")
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, model.Title, false, false)),
	}

	if model.Body != "" {
		body := utils.ConvertMarkdownToSlack(model.Body)
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, body, false, false), nil, nil))
	}

	if len(model.Fields) > 0 {
		blocks = append(blocks, fieldSections(model.Fields)...)
	}

	if buttons := actionButtons(model); len(buttons) > 0 {
		blocks = append(blocks, slack.NewActionBlock("", buttons...))
	}

	if model.Footer != "" {
		blocks = append(blocks, slack.NewContextBlock("",
			slack.NewTextBlockObject(slack.MarkdownType, model.Footer, false, false)))
	}

	blocksJSON, err := json.Marshal(slack.Blocks{BlockSet: blocks})
	if err != nil {
		return clients.SlackMessage{}, fmt.Errorf("failed to encode blocks: %w", err)
	}

	return clients.SlackMessage{
		Text:       fallbackText(model),
		BlocksJSON: blocksJSON,
	}, nil
}

func fieldSections(fields []models.MessageField) []slack.Block {
	var blocks []slack.Block
	for start := 0; start < len(fields); start += maxFieldsPerSection {
		end := start + maxFieldsPerSection
		if end > len(fields) {
			end = len(fields)
		}
		var objs []*slack.TextBlockObject
		for _, f := range fields[start:end] {
			objs = append(objs, slack.NewTextBlockObject(
				slack.MarkdownType, fmt.Sprintf("*%s*\n%s", f.Label, f.Value), false, false))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, objs, nil))
	}
	return blocks
}

func actionButtons(model models.MessageModel) []slack.BlockElement {
	var buttons []slack.BlockElement
	for i, action := range model.Actions {
		btn := slack.NewButtonBlockElement(
			fmt.Sprintf("%s_action_%d", model.Feature, i),
			string(model.Feature),
			slack.NewTextBlockObject(slack.PlainTextType, action.Label, false, false))
		btn.URL = action.URL
		switch action.Style {
		case "primary":
			btn.Style = slack.StylePrimary
		case "danger":
			btn.Style = slack.StyleDanger
		}
		buttons = append(buttons, btn)
	}

	if len(buttons) == 0 && model.ActionURL != "" {
		btn := slack.NewButtonBlockElement(
			fmt.Sprintf("%s_open", model.Feature),
			string(model.Feature),
			slack.NewTextBlockObject(slack.PlainTextType, "Open", false, false))
		btn.URL = model.ActionURL
		btn.Style = slack.StylePrimary
		buttons = append(buttons, btn)
	}
	return buttons
}

// fallbackText is the single-line notification preview shown by Slack when
// blocks cannot be rendered.
func fallbackText(model models.MessageModel) string {
	if model.Body == "" {
		return model.Title
	}
	firstLine := model.Body
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	return model.Title + ": " + firstLine
}
