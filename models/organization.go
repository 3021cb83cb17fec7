package models

import (
	"time"
)

type OrgID string

type Organization struct {
	ID               OrgID      `db:"id"                 json:"id"`
	Name             string     `db:"name"               json:"name"`
	SlackTeamID      *string    `db:"slack_team_id"      json:"slack_team_id,omitempty"`
	SlackBotToken    *string    `db:"slack_bot_token"    json:"-"`
	ScheduleTimezone string     `db:"schedule_timezone"  json:"schedule_timezone"`
	DeactivatedAt    *time.Time `db:"deactivated_at"     json:"deactivated_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"         json:"updated_at"`
}

// HasConnectedWorkspace reports whether the org has a usable Slack workspace connection.
func (o *Organization) HasConnectedWorkspace() bool {
	return o.SlackTeamID != nil && *o.SlackTeamID != "" &&
		o.SlackBotToken != nil && *o.SlackBotToken != ""
}
