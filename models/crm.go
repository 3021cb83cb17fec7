package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DealHealth string

const (
	DealHealthHealthy  DealHealth = "healthy"
	DealHealthWarning  DealHealth = "warning"
	DealHealthCritical DealHealth = "critical"
	DealHealthStalled  DealHealth = "stalled"
)

type DealRisk string

const (
	DealRiskLow      DealRisk = "low"
	DealRiskMedium   DealRisk = "medium"
	DealRiskHigh     DealRisk = "high"
	DealRiskCritical DealRisk = "critical"
)

// Deal is a read-only projection of the CRM deal row. The engine never
// mutates business fields; it only reads them to evaluate triggers and
// assemble message context.
type Deal struct {
	ID             string          `db:"id"               json:"id"`
	OrgID          OrgID           `db:"organization_id"  json:"organization_id"`
	CompanyID      *string         `db:"company_id"       json:"company_id,omitempty"`
	OwnerUserID    *string         `db:"owner_user_id"    json:"owner_user_id,omitempty"`
	Name           string          `db:"name"             json:"name"`
	Stage          string          `db:"stage"            json:"stage"`
	Amount         decimal.Decimal `db:"amount"           json:"amount"`
	Health         DealHealth      `db:"health"           json:"health"`
	Risk           DealRisk        `db:"risk"             json:"risk"`
	Clarity        int             `db:"clarity"          json:"clarity"`
	ChampionName   *string         `db:"champion_name"    json:"champion_name,omitempty"`
	LastActivityAt *time.Time      `db:"last_activity_at" json:"last_activity_at,omitempty"`
	UpdatedAt      time.Time       `db:"updated_at"       json:"updated_at"`
}

// NeedsMomentumNudge evaluates the deal momentum trigger: unhealthy, risky,
// or murky deals get a nudge.
func (d *Deal) NeedsMomentumNudge() bool {
	switch d.Health {
	case DealHealthWarning, DealHealthCritical, DealHealthStalled:
		return true
	}
	if d.Risk == DealRiskHigh || d.Risk == DealRiskCritical {
		return true
	}
	return d.Clarity < 50
}

type Meeting struct {
	ID               string           `db:"id"                json:"id"`
	OrgID            OrgID            `db:"organization_id"   json:"organization_id"`
	DealID           *string          `db:"deal_id"           json:"deal_id,omitempty"`
	CallID           *string          `db:"call_id"           json:"call_id,omitempty"`
	OrganizerUserID  *string          `db:"organizer_user_id" json:"organizer_user_id,omitempty"`
	Title            string           `db:"title"             json:"title"`
	StartsAt         time.Time        `db:"starts_at"         json:"starts_at"`
	EndsAt           *time.Time       `db:"ends_at"           json:"ends_at,omitempty"`
	AttendeeEmails   []string         `db:"-"                 json:"attendee_emails,omitempty"`
	HasRecording     bool             `db:"has_recording"     json:"has_recording"`
	TranscriptStatus TranscriptStatus `db:"transcript_status" json:"transcript_status"`
}

type Company struct {
	ID     string  `db:"id"              json:"id"`
	OrgID  OrgID   `db:"organization_id" json:"organization_id"`
	Name   string  `db:"name"            json:"name"`
	Domain *string `db:"domain"          json:"domain,omitempty"`
}

// ReengagementContent carries the content-driven triggers available for a
// user. The trigger selector prefers these, in struct order, over the
// segment's default notification type.
type ReengagementContent struct {
	UpcomingMeeting *Meeting `json:"upcoming_meeting,omitempty"`
	DealUpdate      *Deal    `json:"deal_update,omitempty"`
	ChampionChange  *string  `json:"champion_change,omitempty"`
	NewEmailSummary *string  `json:"new_email_summary,omitempty"`
}
