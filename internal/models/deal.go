package models

import "time"

// Deal is a lead's position in the sales pipeline as seen by follow-up alerting.
type Deal struct {
	ID                       string     `json:"id"`
	LeadID                   string     `json:"lead_id"`
	Name                     string     `json:"name"`
	BusinessType             string     `json:"business_type"`
	Phase                    string     `json:"phase"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at,omitempty"`
	LastContact              *time.Time `json:"last_contact,omitempty"`
	LastActivity             *time.Time `json:"last_activity,omitempty"`
	FollowUpNotificationSent bool       `json:"follow_up_notification_sent"`
}

// FollowUpAlert is derived on every evaluation pass and never persisted.
type FollowUpAlert struct {
	DealID             string `json:"deal_id"`
	LeadName           string `json:"lead_name"`
	DaysWithoutContact int    `json:"days_without_contact"`
	SuggestedMessage   string `json:"suggested_message"`
	Phase              string `json:"phase"`
}
