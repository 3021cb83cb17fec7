package models

import (
	"time"
)

type User struct {
	ID               string     `db:"id"                  json:"id"`
	OrgID            OrgID      `db:"organization_id"     json:"organization_id"`
	Email            string     `db:"email"               json:"email"`
	Name             string     `db:"name"                json:"name"`
	Timezone         string     `db:"timezone"            json:"timezone"`
	LastAppActiveAt  *time.Time `db:"last_app_active_at"  json:"last_app_active_at,omitempty"`
	LastChatActiveAt *time.Time `db:"last_chat_active_at" json:"last_chat_active_at,omitempty"`
	LastLoginAt      *time.Time `db:"last_login_at"       json:"last_login_at,omitempty"`
	DeactivatedAt    *time.Time `db:"deactivated_at"      json:"deactivated_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at"          json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"          json:"updated_at"`
}
