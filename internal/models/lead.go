package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a lead, deal or message does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a message id was already stored for the lead.
var ErrDuplicate = errors.New("already exists")

// Lead is an inbox conversation owner.
type Lead struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BusinessType string    `json:"business_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SlaStatus is the response-time classification of a lead's outstanding message.
type SlaStatus string

const (
	SlaOnTime  SlaStatus = "on_time"
	SlaAtRisk  SlaStatus = "at_risk"
	SlaOverdue SlaStatus = "overdue"
)

// LeadUrgency is a lead annotated with the values used to rank the inbox.
type LeadUrgency struct {
	Lead                 Lead      `json:"lead"`
	HoursWithoutResponse int       `json:"hours_without_response"`
	Critical             bool      `json:"critical"`
	Sla                  SlaStatus `json:"sla_status"`
}
