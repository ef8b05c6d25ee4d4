package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	NotificationPending  = "pending"
	NotificationSuccess  = "success"
	NotificationFailed   = "failed"
	NotificationSilenced = "silenced"
)

// Notification is one delivery attempt of a Task through a channel.
type Notification struct {
	ID        [16]byte  `json:"id"`
	RequestID [16]byte  `json:"request_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Type      string    `json:"type,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Status    string    `json:"status,omitempty"`
	LeadID    string    `json:"lead_id,omitempty"`
	DealID    string    `json:"deal_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MarshalJSON customizes JSON serialization for Notification to return UUIDs as strings.
func (n Notification) MarshalJSON() ([]byte, error) {
	type Alias Notification
	return json.Marshal(&struct {
		ID        string `json:"id"`
		RequestID string `json:"request_id"`
		*Alias
	}{
		ID:        uuid.UUID(n.ID).String(),
		RequestID: uuid.UUID(n.RequestID).String(),
		Alias:     (*Alias)(&n),
	})
}
